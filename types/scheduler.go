package types

import "time"

// StageTransition records one hackathon advancing from one stage to another
// for a single recipient.
type StageTransition struct {
	RecipientEmail string `json:"recipient_email"`
	HackathonID    int    `json:"hackathon_id"`
	HackathonTitle string `json:"hackathon_title"`
	OldStage       Stage  `json:"old_stage"`
	NewStage       Stage  `json:"new_stage"`
}

// DispatchReport is the partial-failure report returned by a notification
// dispatch. Failures are per-recipient and informational to the caller.
type DispatchReport struct {
	Sent   []string `json:"sent"`
	Failed []string `json:"failed"`
}

// HackathonTickResult is the outcome for one hackathon within a tick.
type HackathonTickResult struct {
	HackathonID int    `json:"hackathon_id"`
	Title       string `json:"title"`
	OldStage    Stage  `json:"old_stage"`
	NewStage    Stage  `json:"new_stage"`
	Updated     bool   `json:"updated"`
	Error       string `json:"error,omitempty"`
}

// TickResult summarizes one scheduler pass over all schedulable hackathons.
type TickResult struct {
	StartedAt    time.Time             `json:"started_at"`
	TotalChecked int                   `json:"total_checked"`
	TotalUpdated int                   `json:"total_updated"`
	PerHackathon []HackathonTickResult `json:"per_hackathon"`
	FailedIDs    []int                 `json:"failed_ids,omitempty"`
	DurationMs   int64                 `json:"duration_ms"`
}

// PendingHackathon describes a hackathon whose stored stage lags the stage
// implied by its round dates.
type PendingHackathon struct {
	HackathonID  int   `json:"hackathon_id"`
	CurrentStage Stage `json:"current_stage"`
	TargetStage  Stage `json:"target_stage"`
}

// SchedulerStatus is the read-only diagnostic view of the scheduler.
type SchedulerStatus struct {
	State        string             `json:"state"` // idle | running
	LastRun      *TickResult        `json:"last_run,omitempty"`
	SkippedTicks int64              `json:"skipped_ticks"`
	Pending      []PendingHackathon `json:"pending"`
	UpToDate     int                `json:"up_to_date"`
}
