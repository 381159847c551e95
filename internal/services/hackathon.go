package services

import (
	"context"

	"github.com/hackdash/apiserver/types"
)

// HackathonRepository defines persistence operations for hackathons.
type HackathonRepository interface {
	GetByID(ctx context.Context, id int) (types.Hackathon, error)
	List(ctx context.Context) ([]types.Hackathon, error)
	ListSchedulable(ctx context.Context) ([]types.Hackathon, error)
	Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error)
	Update(ctx context.Context, h types.Hackathon) (types.Hackathon, error)
	AdvanceStage(ctx context.Context, id int, from, to types.Stage) error
	SetDeckObjectKey(ctx context.Context, id int, key string) error
}

// HackathonService encapsulates hackathon use-cases.
type HackathonService struct {
	repo HackathonRepository
}

func NewHackathonService(repo HackathonRepository) *HackathonService {
	return &HackathonService{repo: repo}
}

func (s *HackathonService) Get(ctx context.Context, id int) (types.Hackathon, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *HackathonService) List(ctx context.Context) ([]types.Hackathon, error) {
	return s.repo.List(ctx)
}

func (s *HackathonService) ListSchedulable(ctx context.Context) ([]types.Hackathon, error) {
	return s.repo.ListSchedulable(ctx)
}

func (s *HackathonService) Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	if err := h.RoundDates.Validate(); err != nil {
		return types.Hackathon{}, err
	}
	if h.Status == "" {
		h.Status = types.StatusUpcoming
	}
	if h.CurrentStage == "" {
		h.CurrentStage = types.StageOrder[0]
	}
	return s.repo.Create(ctx, h)
}

func (s *HackathonService) Update(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	if err := h.RoundDates.Validate(); err != nil {
		return types.Hackathon{}, err
	}
	return s.repo.Update(ctx, h)
}

func (s *HackathonService) AdvanceStage(ctx context.Context, id int, from, to types.Stage) error {
	return s.repo.AdvanceStage(ctx, id, from, to)
}

func (s *HackathonService) SetDeckObjectKey(ctx context.Context, id int, key string) error {
	return s.repo.SetDeckObjectKey(ctx, id, key)
}
