// Package postgres is the client for Remote Store B: a hosted Postgres with
// row-level policies, reached directly over the wire protocol.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, databaseURL)
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// unreachable wraps a transport-level failure so the fallback chain can
// recognize it. pgx.ErrNoRows is never wrapped.
func unreachable(err error) error {
	return fmt.Errorf("%w: %v", errs.ErrUnreachable, err)
}

// --- reports ---

func (s *Store) GetReport(ctx context.Context, id string) (json.RawMessage, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM reports WHERE id = $1`, id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, unreachable(err)
	}
	return data, nil
}

func (s *Store) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	var date *string
	if rec.Date != "" {
		date = &rec.Date
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, type, year, date, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET type = $2, year = $3, date = $4, data = $5
	`, rec.ID, string(rec.Type), rec.Year, date, []byte(rec.Data))
	if err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id); err != nil {
		return unreachable(err)
	}
	return nil
}

// --- profiles and credentials ---

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (model.UserProfile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, `
		SELECT id, email, name, role, status, created_at, last_login
		FROM profiles
		WHERE email = $1
	`, email))
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (model.UserProfile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, `
		SELECT id, email, name, role, status, created_at, last_login
		FROM profiles
		WHERE id = $1
	`, id))
}

func (s *Store) scanProfile(row pgx.Row) (model.UserProfile, error) {
	var profile model.UserProfile
	var role, status string
	var createdAt, lastLogin *time.Time
	if err := row.Scan(&profile.ID, &profile.Email, &profile.Name, &role, &status, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserProfile{}, errs.ErrNotFound
		}
		return model.UserProfile{}, unreachable(err)
	}
	profile.Role = model.Role(role)
	profile.Status = model.UserStatus(status)
	if createdAt != nil {
		profile.CreatedAt = *createdAt
	}
	if lastLogin != nil {
		profile.LastLogin = *lastLogin
	}
	return profile, nil
}

// CountProfiles feeds the first-user role bootstrap. The count-then-insert
// sequence it participates in is not transactional.
func (s *Store) CountProfiles(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return 0, unreachable(err)
	}
	return count, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile model.UserProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, name, role, status, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, profile.ID, profile.Email, profile.Name, string(profile.Role), string(profile.Status), profile.CreatedAt, profile.LastLogin)
	if err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, name, role, status, created_at, last_login
		FROM profiles
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, unreachable(err)
	}
	defer rows.Close()

	var profiles []model.UserProfile
	for rows.Next() {
		var profile model.UserProfile
		var role, status string
		var createdAt, lastLogin *time.Time
		if err := rows.Scan(&profile.ID, &profile.Email, &profile.Name, &role, &status, &createdAt, &lastLogin); err != nil {
			return nil, unreachable(err)
		}
		profile.Role = model.Role(role)
		profile.Status = model.UserStatus(status)
		if createdAt != nil {
			profile.CreatedAt = *createdAt
		}
		if lastLogin != nil {
			profile.LastLogin = *lastLogin
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (s *Store) UpdateProfileRole(ctx context.Context, id string, role model.Role) error {
	if _, err := s.pool.Exec(ctx, `UPDATE profiles SET role = $1 WHERE id = $2`, string(role), id); err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) UpdateProfileStatus(ctx context.Context, id string, status model.UserStatus) error {
	if _, err := s.pool.Exec(ctx, `UPDATE profiles SET status = $1 WHERE id = $2`, string(status), id); err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE profiles SET last_login = $1 WHERE id = $2`, at, id); err != nil {
		return unreachable(err)
	}
	return nil
}

// VerifyCredentials checks an email plus client-side password hash against
// the credential rows. Returns the account id on a match, errs.ErrNotFound
// when the pair does not exist.
func (s *Store) VerifyCredentials(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	row := s.pool.QueryRow(ctx, `
		SELECT id FROM auth_accounts WHERE email = $1 AND password_hash = $2
	`, email, passwordHash)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", unreachable(err)
	}
	return id, nil
}

func (s *Store) CreateAccount(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, id, email, passwordHash, time.Now().UTC())
	if err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE auth_accounts SET password_hash = $1 WHERE email = $2`, passwordHash, email); err != nil {
		return unreachable(err)
	}
	return nil
}

// --- password reset tokens ---

func (s *Store) CreateResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reset_tokens (email, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET token = $2, expires_at = $3
	`, email, token, expiresAt)
	if err != nil {
		return unreachable(err)
	}
	return nil
}

// ConsumeResetToken validates and burns a reset token in one pass.
func (s *Store) ConsumeResetToken(ctx context.Context, email, token string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reset_tokens
		WHERE email = $1 AND token = $2 AND expires_at > $3
	`, email, token, time.Now().UTC())
	if err != nil {
		return unreachable(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- system settings ---

func (s *Store) LoadSettings(ctx context.Context) (model.SystemSettings, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = 'global'`)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SystemSettings{}, errs.ErrNotFound
		}
		return model.SystemSettings{}, unreachable(err)
	}
	var settings model.SystemSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return model.SystemSettings{}, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings model.SystemSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO system_settings (key, value) VALUES ('global', $1)
		ON CONFLICT (key) DO UPDATE SET value = $1
	`, raw)
	if err != nil {
		return unreachable(err)
	}
	return nil
}

// --- audit log ---

func (s *Store) AppendAudit(ctx context.Context, entry model.AuditLogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, user_email, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.UserEmail, entry.Action, entry.Details, entry.Timestamp)
	if err != nil {
		return unreachable(err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_email, action, details, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, unreachable(err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var entry model.AuditLogEntry
		if err := rows.Scan(&entry.ID, &entry.UserEmail, &entry.Action, &entry.Details, &entry.Timestamp); err != nil {
			return nil, unreachable(err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- liveness ---

// Probe is the cheap existence check the connectivity monitor runs: a
// minimal metadata query that also keeps a managed Postgres from
// idle-suspending.
func (s *Store) Probe(ctx context.Context) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
	if err != nil {
		return unreachable(err)
	}
	return nil
}

// KeepAlive touches a real table so connection pools and row caches on the
// hosted side stay warm.
func (s *Store) KeepAlive(ctx context.Context) error {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM profiles LIMIT 1`).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return unreachable(err)
	}
	return nil
}
