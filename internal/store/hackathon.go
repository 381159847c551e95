package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hackdash/apiserver/types"
)

// HackathonRepository handles persistence for hackathons. Round dates and
// participants are stored as JSONB documents.
type HackathonRepository struct {
	db *sql.DB
}

func NewHackathonRepository(db *sql.DB) *HackathonRepository {
	return &HackathonRepository{db: db}
}

const hackathonColumns = `id, title, status, current_stage, round_dates, participants, leader_email, deck_object_key, created_at, updated_at`

type hackathonRow struct {
	roundDates   []byte
	participants []byte
}

func scanHackathon(scan func(dest ...any) error) (types.Hackathon, error) {
	var h types.Hackathon
	var row hackathonRow
	err := scan(
		&h.ID,
		&h.Title,
		&h.Status,
		&h.CurrentStage,
		&row.roundDates,
		&row.participants,
		&h.LeaderEmail,
		&h.DeckObjectKey,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hackathon{}, ErrNotFound
		}
		return types.Hackathon{}, err
	}
	if len(row.roundDates) > 0 {
		if err := json.Unmarshal(row.roundDates, &h.RoundDates); err != nil {
			return types.Hackathon{}, err
		}
	}
	if len(row.participants) > 0 {
		if err := json.Unmarshal(row.participants, &h.Participants); err != nil {
			return types.Hackathon{}, err
		}
	}
	return h, nil
}

func (r *HackathonRepository) GetByID(ctx context.Context, id int) (types.Hackathon, error) {
	const query = `
		SELECT ` + hackathonColumns + `
		FROM hackathons
		WHERE id = $1`
	return scanHackathon(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *HackathonRepository) List(ctx context.Context) ([]types.Hackathon, error) {
	const query = `
		SELECT ` + hackathonColumns + `
		FROM hackathons
		ORDER BY id`
	return r.queryHackathons(ctx, query)
}

// ListSchedulable returns hackathons whose stage the scheduler may still
// advance, i.e. status upcoming or active.
func (r *HackathonRepository) ListSchedulable(ctx context.Context) ([]types.Hackathon, error) {
	const query = `
		SELECT ` + hackathonColumns + `
		FROM hackathons
		WHERE status IN ('upcoming', 'active')
		ORDER BY id`
	return r.queryHackathons(ctx, query)
}

func (r *HackathonRepository) queryHackathons(ctx context.Context, query string) ([]types.Hackathon, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hackathons []types.Hackathon
	for rows.Next() {
		h, err := scanHackathon(rows.Scan)
		if err != nil {
			return nil, err
		}
		hackathons = append(hackathons, h)
	}
	return hackathons, rows.Err()
}

func (r *HackathonRepository) Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	now := time.Now()
	h.CreatedAt = now
	h.UpdatedAt = now

	roundDates, participants, err := marshalDocuments(h)
	if err != nil {
		return types.Hackathon{}, err
	}

	const query = `
		INSERT INTO hackathons (title, status, current_stage, round_dates, participants, leader_email, deck_object_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		h.Title,
		h.Status,
		h.CurrentStage,
		roundDates,
		participants,
		h.LeaderEmail,
		h.DeckObjectKey,
		h.CreatedAt,
		h.UpdatedAt,
	).Scan(&h.ID); err != nil {
		return types.Hackathon{}, err
	}
	return h, nil
}

func (r *HackathonRepository) Update(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	h.UpdatedAt = time.Now()

	roundDates, participants, err := marshalDocuments(h)
	if err != nil {
		return types.Hackathon{}, err
	}

	const query = `
		UPDATE hackathons
		SET title = $1,
			status = $2,
			current_stage = $3,
			round_dates = $4,
			participants = $5,
			leader_email = $6,
			deck_object_key = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		h.Title,
		h.Status,
		h.CurrentStage,
		roundDates,
		participants,
		h.LeaderEmail,
		h.DeckObjectKey,
		h.UpdatedAt,
		h.ID,
	)
	if err != nil {
		return types.Hackathon{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Hackathon{}, err
	}
	if affected == 0 {
		return types.Hackathon{}, ErrNotFound
	}
	return h, nil
}

// AdvanceStage moves a hackathon from one stage to another as a single
// compare-and-set write. The update only applies while the stored stage
// still equals from and the hackathon is schedulable, so a stale caller
// can never regress or double-apply a transition.
func (r *HackathonRepository) AdvanceStage(ctx context.Context, id int, from, to types.Stage) error {
	const query = `
		UPDATE hackathons
		SET current_stage = $1, updated_at = $2
		WHERE id = $3
			AND current_stage = $4
			AND status IN ('upcoming', 'active')`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStageConflict
	}
	return nil
}

// SetDeckObjectKey records the object-storage key of the uploaded deck.
func (r *HackathonRepository) SetDeckObjectKey(ctx context.Context, id int, key string) error {
	const query = `
		UPDATE hackathons
		SET deck_object_key = $1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalDocuments(h types.Hackathon) (roundDates, participants []byte, err error) {
	dates := h.RoundDates
	if dates == nil {
		dates = types.RoundDates{}
	}
	roundDates, err = json.Marshal(dates)
	if err != nil {
		return nil, nil, err
	}

	members := h.Participants
	if members == nil {
		members = []string{}
	}
	participants, err = json.Marshal(members)
	if err != nil {
		return nil, nil, err
	}
	return roundDates, participants, nil
}
