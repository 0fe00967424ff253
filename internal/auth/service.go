// Package auth is the credential service: password hashing, login, register
// and reset flows against whichever backend is configured, plus first-user
// role bootstrapping.
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

// ScriptAuth is Remote Store A's auth surface. When configured, its verdict
// is trusted entirely.
type ScriptAuth interface {
	Login(ctx context.Context, email, passwordHash string) (model.UserProfile, error)
	Register(ctx context.Context, email, passwordHash, name string) (model.UserProfile, error)
	RequestReset(ctx context.Context, email, resetLink string) error
	ConfirmReset(ctx context.Context, email, token, newPasswordHash string) error
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
}

// Directory is Remote Store B's credential and profile surface. Implemented
// by postgres.Store.
type Directory interface {
	VerifyCredentials(ctx context.Context, email, passwordHash string) (string, error)
	CreateAccount(ctx context.Context, id, email, passwordHash string) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	CreateResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, email, token string) error
	GetProfileByEmail(ctx context.Context, email string) (model.UserProfile, error)
	GetProfileByID(ctx context.Context, id string) (model.UserProfile, error)
	CountProfiles(ctx context.Context) (int, error)
	CreateProfile(ctx context.Context, profile model.UserProfile) error
	ListProfiles(ctx context.Context) ([]model.UserProfile, error)
	UpdateProfileRole(ctx context.Context, id string, role model.Role) error
	UpdateProfileStatus(ctx context.Context, id string, status model.UserStatus) error
	DeleteProfile(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// MockDirectory is the local fallback directory, a development convenience
// backed by the cache. Never production-safe. Implemented by cache.Cache.
type MockDirectory interface {
	Users() ([]model.UserProfile, error)
	SaveUsers(users []model.UserProfile) error
}

// SessionTerminator revokes every server-side session for an identity.
// Implemented by Sessions; nil disables termination.
type SessionTerminator interface {
	TerminateAll(ctx context.Context, email string) error
}

type Service struct {
	script    ScriptAuth    // nil when Store A is unset
	directory Directory     // nil when Store B is unset
	mock      MockDirectory // always present
	sessions  SessionTerminator
	origin    string // deployment origin for reset callback links
	resetTTL  time.Duration
	logf      func(format string, args ...interface{})
	now       func() time.Time
}

func NewService(script ScriptAuth, directory Directory, mock MockDirectory, sessions SessionTerminator, origin string, logf func(format string, args ...interface{})) *Service {
	if logf == nil {
		logf = log.Printf
	}
	return &Service{
		script:    script,
		directory: directory,
		mock:      mock,
		sessions:  sessions,
		origin:    origin,
		resetTTL:  time.Hour,
		logf:      logf,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies the identity against the first configured backend. The raw
// secret is hashed before anything else happens; only the digest travels.
// A profile with inactive status always fails, regardless of credentials,
// and loses any server-side session it still holds.
func (s *Service) Login(ctx context.Context, email, password string) (model.UserProfile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	passwordHash := HashPassword(password)

	// Demo bypass, kept for offline walkthroughs.
	if email == demoEmail && passwordHash == demoPasswordDigest {
		return model.UserProfile{
			ID:     "dev_admin",
			Email:  email,
			Name:   "System Admin",
			Role:   model.RoleSuperadmin,
			Status: model.StatusActive,
		}, nil
	}

	if s.script != nil {
		user, err := s.script.Login(ctx, email, passwordHash)
		if err != nil {
			return model.UserProfile{}, err
		}
		return s.admit(ctx, user)
	}

	if s.directory != nil {
		return s.loginDirectory(ctx, email, passwordHash)
	}

	return s.loginMock(ctx, email)
}

func (s *Service) loginDirectory(ctx context.Context, email, passwordHash string) (model.UserProfile, error) {
	accountID, err := s.directory.VerifyCredentials(ctx, email, passwordHash)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.UserProfile{}, errs.Reject("invalid email or password")
		}
		return model.UserProfile{}, err
	}

	profile, err := s.directory.GetProfileByID(ctx, accountID)
	if errors.Is(err, errs.ErrNotFound) {
		// The account authenticated but has no profile row yet; provision
		// one lazily with the default role.
		profile = model.UserProfile{
			ID:        accountID,
			Email:     email,
			Name:      nameFromEmail(email),
			Role:      model.RoleViewer,
			Status:    model.StatusActive,
			CreatedAt: s.now(),
		}
		if createErr := s.directory.CreateProfile(ctx, profile); createErr != nil {
			return model.UserProfile{}, createErr
		}
	} else if err != nil {
		return model.UserProfile{}, err
	}

	admitted, err := s.admit(ctx, profile)
	if err != nil {
		return model.UserProfile{}, err
	}
	if touchErr := s.directory.TouchLastLogin(ctx, profile.ID, s.now()); touchErr != nil {
		s.logf("auth: last_login update failed for %s: %v", email, touchErr)
	}
	return admitted, nil
}

func (s *Service) loginMock(_ context.Context, email string) (model.UserProfile, error) {
	users, err := s.mock.Users()
	if err != nil {
		return model.UserProfile{}, err
	}
	for _, user := range users {
		if strings.EqualFold(user.Email, email) {
			if user.Status == model.StatusInactive {
				return model.UserProfile{}, errs.Reject("account is inactive")
			}
			return user, nil
		}
	}
	return model.UserProfile{}, errs.Reject("user not found (demo mode)")
}

// admit converts an otherwise-successful authentication into a rejection
// when the profile is inactive, and tears down any lingering session.
func (s *Service) admit(ctx context.Context, user model.UserProfile) (model.UserProfile, error) {
	if user.Status == model.StatusInactive {
		if s.sessions != nil {
			if err := s.sessions.TerminateAll(ctx, user.Email); err != nil {
				s.logf("auth: session termination failed for %s: %v", user.Email, err)
			}
		}
		return model.UserProfile{}, errs.Reject("account is inactive")
	}
	return user, nil
}

// Register creates a profile for a new identity. The chronologically first
// profile in a fresh deployment gets superadmin; everyone after gets viewer.
// The count-then-insert sequence is not transactional: two racing first
// registrations can both observe zero and both end up superadmin.
func (s *Service) Register(ctx context.Context, email, password, name string) (model.UserProfile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	passwordHash := HashPassword(password)

	if s.script != nil {
		return s.script.Register(ctx, email, passwordHash, name)
	}

	if s.directory != nil {
		return s.registerDirectory(ctx, email, passwordHash, name)
	}

	return s.registerMock(ctx, email, name)
}

func (s *Service) registerDirectory(ctx context.Context, email, passwordHash, name string) (model.UserProfile, error) {
	if _, err := s.directory.GetProfileByEmail(ctx, email); err == nil {
		return model.UserProfile{}, errs.Reject("email is already registered")
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.UserProfile{}, err
	}

	count, err := s.directory.CountProfiles(ctx)
	if err != nil {
		return model.UserProfile{}, err
	}

	profile := model.UserProfile{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      bootstrapRole(count),
		Status:    model.StatusActive,
		CreatedAt: s.now(),
	}
	if err := s.directory.CreateAccount(ctx, profile.ID, email, passwordHash); err != nil {
		return model.UserProfile{}, err
	}
	if err := s.directory.CreateProfile(ctx, profile); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

func (s *Service) registerMock(_ context.Context, email, name string) (model.UserProfile, error) {
	users, err := s.mock.Users()
	if err != nil {
		return model.UserProfile{}, err
	}
	for _, user := range users {
		if strings.EqualFold(user.Email, email) {
			return model.UserProfile{}, errs.Reject("email is already registered")
		}
	}
	profile := model.UserProfile{
		ID:        "u_" + uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      bootstrapRole(len(users)),
		Status:    model.StatusActive,
		CreatedAt: s.now(),
	}
	users = append(users, profile)
	if err := s.mock.SaveUsers(users); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}

func bootstrapRole(existing int) model.Role {
	if existing == 0 {
		return model.RoleSuperadmin
	}
	return model.RoleViewer
}

// RequestReset starts a password reset against the configured backend. The
// callback link is built from the deployment origin so the flow works the
// same on every environment.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	resetLink := strings.TrimRight(s.origin, "/") + "/reset-password"

	if s.script != nil {
		return s.script.RequestReset(ctx, email, resetLink)
	}
	if s.directory != nil {
		token := uuid.NewString()
		if err := s.directory.CreateResetToken(ctx, email, token, s.now().Add(s.resetTTL)); err != nil {
			return err
		}
		// No mailer in this layer: the link is logged for the operator.
		s.logf("auth: reset link for %s: %s?token=%s", email, resetLink, token)
		return nil
	}
	// Demo mode acks without doing anything.
	return nil
}

func (s *Service) ConfirmReset(ctx context.Context, email, token, newPassword string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	newHash := HashPassword(newPassword)

	if s.script != nil {
		return s.script.ConfirmReset(ctx, email, token, newHash)
	}
	if s.directory != nil {
		if err := s.directory.ConsumeResetToken(ctx, email, token); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.Reject("invalid or expired reset token")
			}
			return err
		}
		return s.directory.UpdatePassword(ctx, email, newHash)
	}
	return errs.Reject("password reset is not available in demo mode")
}

func nameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
