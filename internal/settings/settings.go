// Package settings owns the single global settings blob and the reporting
// year lifecycle. Every mutation is a whole-blob read-modify-write:
// concurrent admins are last-write-wins, which is accepted for a handful of
// low-frequency administrative actions.
package settings

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

// RemoteSettings is the remote settings tier. Implemented by postgres.Store.
type RemoteSettings interface {
	LoadSettings(ctx context.Context) (model.SystemSettings, error)
	SaveSettings(ctx context.Context, settings model.SystemSettings) error
}

// LocalSettings is the cache's JSON blob surface.
type LocalSettings interface {
	GetJSON(key string, out interface{}) (bool, error)
	PutJSON(key string, value interface{}) error
}

// Recorder receives audit entries for administrative actions. Implemented by
// audit.Pipeline.
type Recorder interface {
	Record(actorEmail, action, details string)
}

type Manager struct {
	local  LocalSettings
	remote RemoteSettings // nil when Store B is unset
	audit  Recorder
	logf   func(format string, args ...interface{})
	now    func() time.Time
}

func NewManager(local LocalSettings, remote RemoteSettings, audit Recorder, logf func(format string, args ...interface{})) *Manager {
	if logf == nil {
		logf = log.Printf
	}
	return &Manager{
		local:  local,
		remote: remote,
		audit:  audit,
		logf:   logf,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get loads the settings blob remote-first with cache write-through, then
// the local copy, then a sane default for a fresh deployment.
func (m *Manager) Get(ctx context.Context) (model.SystemSettings, error) {
	if m.remote != nil {
		settings, err := m.remote.LoadSettings(ctx)
		if err == nil {
			if cacheErr := m.local.PutJSON(model.KeySystemSettings, settings); cacheErr != nil {
				m.logf("settings: cache write-through failed: %v", cacheErr)
			}
			return settings, nil
		}
	}

	var settings model.SystemSettings
	ok, err := m.local.GetJSON(model.KeySystemSettings, &settings)
	if err != nil {
		return model.SystemSettings{}, err
	}
	if ok {
		return settings, nil
	}
	return m.defaults(), nil
}

func (m *Manager) defaults() model.SystemSettings {
	year := m.now().Year()
	return model.SystemSettings{
		ActiveYear: year,
		AvailableYears: []model.YearEntry{{
			Year:     year,
			IsActive: true,
		}},
	}
}

// AddYear appends a new, inactive year entry.
func (m *Manager) AddYear(ctx context.Context, year int, actor string) (model.SystemSettings, error) {
	settings, err := m.Get(ctx)
	if err != nil {
		return model.SystemSettings{}, err
	}
	for _, entry := range settings.AvailableYears {
		if entry.Year == year {
			return model.SystemSettings{}, errs.Reject(fmt.Sprintf("year %d already exists", year))
		}
	}
	settings.AvailableYears = append(settings.AvailableYears, model.YearEntry{
		Year:      year,
		IsActive:  false,
		CreatedAt: m.now().Format(time.RFC3339),
		CreatedBy: actor,
	})
	if err := m.save(ctx, settings); err != nil {
		return model.SystemSettings{}, err
	}
	m.record(actor, "ADD_YEAR", fmt.Sprintf("Added reporting year %d", year))
	return settings, nil
}

// SetActiveYear flips exactly one entry active and keeps ActiveYear in step.
func (m *Manager) SetActiveYear(ctx context.Context, year int, actor string) (model.SystemSettings, error) {
	settings, err := m.Get(ctx)
	if err != nil {
		return model.SystemSettings{}, err
	}
	found := false
	for i := range settings.AvailableYears {
		active := settings.AvailableYears[i].Year == year
		settings.AvailableYears[i].IsActive = active
		if active {
			found = true
		}
	}
	if !found {
		return model.SystemSettings{}, errs.Reject(fmt.Sprintf("year %d is not registered", year))
	}
	settings.ActiveYear = year
	if err := m.save(ctx, settings); err != nil {
		return model.SystemSettings{}, err
	}
	m.record(actor, "SET_ACTIVE_YEAR", fmt.Sprintf("Switched active year to %d", year))
	return settings, nil
}

// ToggleMaintenance flips the global flag. Gating non-admin routes on it is
// the UI collaborators' responsibility, not this layer's.
func (m *Manager) ToggleMaintenance(ctx context.Context, enabled bool, actor string) (model.SystemSettings, error) {
	settings, err := m.Get(ctx)
	if err != nil {
		return model.SystemSettings{}, err
	}
	settings.MaintenanceMode = enabled
	if err := m.save(ctx, settings); err != nil {
		return model.SystemSettings{}, err
	}
	m.record(actor, "TOGGLE_MAINTENANCE", fmt.Sprintf("Maintenance mode set to %t", enabled))
	return settings, nil
}

// save commits locally, then mirrors to the remote. A remote failure is
// logged only: the local commit already made the change durable for this
// deployment, and the next remote-first Get will reconcile when it recovers.
func (m *Manager) save(ctx context.Context, settings model.SystemSettings) error {
	if err := m.local.PutJSON(model.KeySystemSettings, settings); err != nil {
		return err
	}
	if m.remote != nil {
		if err := m.remote.SaveSettings(ctx, settings); err != nil {
			m.logf("settings: remote save failed: %v", err)
		}
	}
	return nil
}

func (m *Manager) record(actor, action, details string) {
	if m.audit != nil {
		m.audit.Record(actor, action, details)
	}
}
