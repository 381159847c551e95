package types

import "time"

// AllowlistStatus is the gate decision recorded for an email.
type AllowlistStatus string

const (
	AllowlistAllowed AllowlistStatus = "allowed"
	AllowlistBlocked AllowlistStatus = "blocked"
)

// Valid reports whether the status is one of the defined statuses.
func (s AllowlistStatus) Valid() bool {
	return s == AllowlistAllowed || s == AllowlistBlocked
}

// AllowlistEntry records whether an email may register or log in with the
// plain user role. The entry is independent of any account: an email can be
// allow-listed before registration, and an account can exist with no entry.
type AllowlistEntry struct {
	Email     string          `json:"email" db:"email"`
	Status    AllowlistStatus `json:"status" db:"status"`
	AddedBy   string          `json:"added_by" db:"added_by"`
	AddedAt   time.Time       `json:"added_at" db:"added_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
