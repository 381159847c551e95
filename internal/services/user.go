package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Deactivate(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Email = NormalizeEmail(user.Email)
	return s.repo.Create(ctx, user)
}

func (s *UserService) Update(ctx context.Context, user types.User) (types.User, error) {
	user.Email = NormalizeEmail(user.Email)
	return s.repo.Update(ctx, user)
}

func (s *UserService) Deactivate(ctx context.Context, id int) error {
	return s.repo.Deactivate(ctx, id)
}

// SetPassword hashes and stores a new password for the account. Used by the
// admin-forced reset path.
func (s *UserService) SetPassword(ctx context.Context, id int, password string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	_, err = s.repo.Update(ctx, user)
	return err
}

// EnsureBootstrap creates the seed super-admin account if it does not
// already exist. The bootstrap identity goes through the normal login and
// lookup path afterwards; it is a provisioning step, not an authentication
// special case.
func (s *UserService) EnsureBootstrap(ctx context.Context, email, name, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleSuperAdmin,
		PasswordHash: string(hashed),
		IsActive:     true,
	})
	return err
}

// NormalizeEmail lower-cases and trims an email for case-insensitive
// matching across users and the allow-list.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
