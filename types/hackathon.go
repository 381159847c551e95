package types

import (
	"fmt"
	"time"
)

// Stage is one ordered phase of a hackathon's workflow.
// The order is fixed: ppt < round1 < round2 < semifinal < final.
type Stage string

const (
	StagePPT       Stage = "ppt"
	StageRound1    Stage = "round1"
	StageRound2    Stage = "round2"
	StageSemifinal Stage = "semifinal"
	StageFinal     Stage = "final"
)

// StageOrder lists all stages in workflow order.
var StageOrder = []Stage{StagePPT, StageRound1, StageRound2, StageSemifinal, StageFinal}

// Index returns the position of the stage in StageOrder, or -1 for an
// unknown stage.
func (s Stage) Index() int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether the stage is one of the defined stages.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Before reports whether the stage strictly precedes other in workflow order.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// HackathonStatus is the lifecycle state of a hackathon.
type HackathonStatus string

const (
	StatusUpcoming  HackathonStatus = "upcoming"
	StatusActive    HackathonStatus = "active"
	StatusCompleted HackathonStatus = "completed"
)

// Schedulable reports whether the scheduler may advance the hackathon's
// stage. Completed hackathons are frozen.
func (s HackathonStatus) Schedulable() bool {
	return s == StatusUpcoming || s == StatusActive
}

// RoundDates maps a stage to the deadline at which it begins. Stages with
// no entry are skipped when computing the current stage.
type RoundDates map[Stage]time.Time

// Validate checks that every key is a known stage and that the deadlines
// present are monotonic in workflow order. Stages may be omitted; omitted
// stages impose no ordering constraint.
func (d RoundDates) Validate() error {
	for stage := range d {
		if !stage.Valid() {
			return fmt.Errorf("unknown stage %q in round dates", stage)
		}
	}
	var prevStage Stage
	var prevDate time.Time
	havePrev := false
	for _, stage := range StageOrder {
		date, ok := d[stage]
		if !ok {
			continue
		}
		if havePrev && date.Before(prevDate) {
			return fmt.Errorf("round dates not monotonic: %s (%s) precedes %s (%s)",
				stage, date.Format(time.RFC3339), prevStage, prevDate.Format(time.RFC3339))
		}
		prevStage = stage
		prevDate = date
		havePrev = true
	}
	return nil
}

// Hackathon represents one tracked hackathon and its workflow position.
type Hackathon struct {
	ID            int             `json:"id" db:"id"`
	Title         string          `json:"title" db:"title"`
	Status        HackathonStatus `json:"status" db:"status"`
	CurrentStage  Stage           `json:"current_stage" db:"current_stage"`
	RoundDates    RoundDates      `json:"round_dates" db:"round_dates"`
	Participants  []string        `json:"participants" db:"participants"`
	LeaderEmail   string          `json:"leader_email" db:"leader_email"`
	DeckObjectKey string          `json:"deck_object_key,omitempty" db:"deck_object_key"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Recipients returns the distinct set of emails notified on a stage
// transition: all participants plus the leader.
func (h Hackathon) Recipients() []string {
	seen := make(map[string]struct{}, len(h.Participants)+1)
	recipients := make([]string, 0, len(h.Participants)+1)
	for _, email := range h.Participants {
		if _, ok := seen[email]; ok || email == "" {
			continue
		}
		seen[email] = struct{}{}
		recipients = append(recipients, email)
	}
	if h.LeaderEmail != "" {
		if _, ok := seen[h.LeaderEmail]; !ok {
			recipients = append(recipients, h.LeaderEmail)
		}
	}
	return recipients
}
