package services

import (
	"context"
	"errors"

	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
)

// AllowlistRepository defines persistence operations for allow-list entries.
type AllowlistRepository interface {
	GetByEmail(ctx context.Context, email string) (types.AllowlistEntry, error)
	List(ctx context.Context) ([]types.AllowlistEntry, error)
	SetStatus(ctx context.Context, email string, status types.AllowlistStatus, addedBy string) (types.AllowlistEntry, error)
}

// AllowlistService gates registration and login on the email allow-list.
type AllowlistService struct {
	repo AllowlistRepository
}

func NewAllowlistService(repo AllowlistRepository) *AllowlistService {
	return &AllowlistService{repo: repo}
}

// Authorize checks whether an email may register or log in with the given
// role. Only plain users consult the list: admin and super_admin accounts
// are provisioned out-of-band and bypass it entirely. Absent entries and
// blocked entries both deny; only an explicit allowed entry grants access.
func (s *AllowlistService) Authorize(ctx context.Context, email string, role types.Role) error {
	if role.AtLeast(types.RoleAdmin) {
		return nil
	}

	entry, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.ErrEmailNotAllowed
		}
		return err
	}
	if entry.Status == types.AllowlistBlocked {
		return auth.ErrEmailBlocked
	}
	if entry.Status != types.AllowlistAllowed {
		return auth.ErrEmailNotAllowed
	}
	return nil
}

// IsAllowed reports whether the email has an explicit allowed entry.
func (s *AllowlistService) IsAllowed(ctx context.Context, email string) (bool, error) {
	err := s.Authorize(ctx, email, types.RoleUser)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, auth.ErrEmailNotAllowed) || errors.Is(err, auth.ErrEmailBlocked) {
		return false, nil
	}
	return false, err
}

func (s *AllowlistService) List(ctx context.Context) ([]types.AllowlistEntry, error) {
	return s.repo.List(ctx)
}

// SetStatus records the gate decision for an email. Idempotent: setting a
// status the entry already carries is a no-op success.
func (s *AllowlistService) SetStatus(ctx context.Context, email string, status types.AllowlistStatus, addedBy string) (types.AllowlistEntry, error) {
	return s.repo.SetStatus(ctx, NormalizeEmail(email), status, addedBy)
}
