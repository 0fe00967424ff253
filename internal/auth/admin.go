package auth

import (
	"context"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

// AdminStats is the summary block the admin dashboard renders.
type AdminStats struct {
	TotalUsers   int `json:"totalUsers"`
	ActiveUsers  int `json:"activeUsers"`
	TotalAdmins  int `json:"totalAdmins"`
	PendingUsers int `json:"pendingUsers"`
}

// ListUsers returns the full directory from the active backend.
func (s *Service) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	if s.script != nil {
		return s.script.ListUsers(ctx)
	}
	if s.directory != nil {
		return s.directory.ListProfiles(ctx)
	}
	return s.mock.Users()
}

// UpdateRole changes one profile's role. Superadmin assignment is an
// administrative act like any other; auditing is the caller's job.
func (s *Service) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	if !model.ValidRole(role) {
		return errs.Reject("unknown role")
	}
	if s.directory != nil {
		return s.directory.UpdateProfileRole(ctx, userID, role)
	}
	return s.mutateMockUser(userID, func(user *model.UserProfile) {
		user.Role = role
	})
}

// UpdateStatus activates or deactivates a profile. Deactivation also tears
// down the user's server-side sessions so the inactive rule takes effect
// immediately, not on next login.
func (s *Service) UpdateStatus(ctx context.Context, userID string, status model.UserStatus) error {
	if status != model.StatusActive && status != model.StatusInactive {
		return errs.Reject("unknown status")
	}

	var email string
	var err error
	if s.directory != nil {
		err = s.directory.UpdateProfileStatus(ctx, userID, status)
		if err == nil {
			if profile, getErr := s.directory.GetProfileByID(ctx, userID); getErr == nil {
				email = profile.Email
			}
		}
	} else {
		err = s.mutateMockUser(userID, func(user *model.UserProfile) {
			user.Status = status
			email = user.Email
		})
	}
	if err != nil {
		return err
	}

	if status == model.StatusInactive && email != "" && s.sessions != nil {
		if termErr := s.sessions.TerminateAll(ctx, email); termErr != nil {
			s.logf("auth: session termination failed for %s: %v", email, termErr)
		}
	}
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if s.directory != nil {
		return s.directory.DeleteProfile(ctx, userID)
	}
	users, err := s.mock.Users()
	if err != nil {
		return err
	}
	kept := users[:0]
	for _, user := range users {
		if user.ID != userID {
			kept = append(kept, user)
		}
	}
	if len(kept) == len(users) {
		return errs.ErrNotFound
	}
	return s.mock.SaveUsers(kept)
}

func (s *Service) Stats(ctx context.Context) (AdminStats, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return AdminStats{}, err
	}
	stats := AdminStats{TotalUsers: len(users)}
	for _, user := range users {
		if user.Status == model.StatusActive {
			stats.ActiveUsers++
		} else {
			stats.PendingUsers++
		}
		if user.Role.IsAdmin() {
			stats.TotalAdmins++
		}
	}
	return stats, nil
}

// GetProfile resolves a profile by id for the session middleware.
func (s *Service) GetProfile(ctx context.Context, userID string) (model.UserProfile, error) {
	if userID == "dev_admin" {
		return model.UserProfile{
			ID:     "dev_admin",
			Email:  demoEmail,
			Name:   "System Admin",
			Role:   model.RoleSuperadmin,
			Status: model.StatusActive,
		}, nil
	}
	if s.directory != nil {
		return s.directory.GetProfileByID(ctx, userID)
	}
	users, err := s.mock.Users()
	if err != nil {
		return model.UserProfile{}, err
	}
	for _, user := range users {
		if user.ID == userID {
			return user, nil
		}
	}
	return model.UserProfile{}, errs.ErrNotFound
}

func (s *Service) mutateMockUser(userID string, mutate func(*model.UserProfile)) error {
	users, err := s.mock.Users()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == userID {
			mutate(&users[i])
			return s.mock.SaveUsers(users)
		}
	}
	return errs.ErrNotFound
}

// SeedMockDirectory installs the demo superadmin in an empty mock directory
// so a fresh checkout is usable without any remote configured.
func SeedMockDirectory(mock MockDirectory) error {
	users, err := mock.Users()
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	return mock.SaveUsers([]model.UserProfile{{
		ID:     "admin_1",
		Email:  demoEmail,
		Name:   "Demo Admin",
		Role:   model.RoleSuperadmin,
		Status: model.StatusActive,
	}})
}
