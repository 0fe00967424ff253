package settings

import (
	"context"
	"sync"
	"testing"

	"github.com/veo1flow-25/teman-cors/internal/cache"
	"github.com/veo1flow-25/teman-cors/internal/model"
)

type recordedAudit struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordedAudit) Record(_, action, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func newManager(t *testing.T) (*Manager, *recordedAudit) {
	t.Helper()
	c, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	rec := &recordedAudit{}
	return NewManager(c, nil, rec, nil), rec
}

func TestGetDefaults(t *testing.T) {
	m, _ := newManager(t)
	settings, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(settings.AvailableYears) != 1 || !settings.AvailableYears[0].IsActive {
		t.Fatalf("expected one active default year, got %+v", settings.AvailableYears)
	}
	if settings.ActiveYear != settings.AvailableYears[0].Year {
		t.Fatalf("activeYear %d does not match active entry %d", settings.ActiveYear, settings.AvailableYears[0].Year)
	}
}

func TestAddYearAppendsInactive(t *testing.T) {
	m, rec := newManager(t)
	settings, err := m.AddYear(context.Background(), 2030, "admin@teman.com")
	if err != nil {
		t.Fatalf("add year: %v", err)
	}

	var added *model.YearEntry
	for i := range settings.AvailableYears {
		if settings.AvailableYears[i].Year == 2030 {
			added = &settings.AvailableYears[i]
		}
	}
	if added == nil {
		t.Fatalf("expected year 2030 in %+v", settings.AvailableYears)
	}
	if added.IsActive {
		t.Fatalf("new year must start inactive")
	}
	if added.CreatedBy != "admin@teman.com" {
		t.Fatalf("unexpected creator %s", added.CreatedBy)
	}

	if _, err := m.AddYear(context.Background(), 2030, "admin@teman.com"); err == nil {
		t.Fatalf("expected duplicate year to be rejected")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.actions) != 1 || rec.actions[0] != "ADD_YEAR" {
		t.Fatalf("expected one ADD_YEAR audit entry, got %v", rec.actions)
	}
}

func TestSetActiveYearExactlyOneActive(t *testing.T) {
	m, _ := newManager(t)
	if _, err := m.AddYear(context.Background(), 2030, "admin@teman.com"); err != nil {
		t.Fatalf("add year: %v", err)
	}
	settings, err := m.SetActiveYear(context.Background(), 2030, "admin@teman.com")
	if err != nil {
		t.Fatalf("set active year: %v", err)
	}

	activeCount := 0
	for _, entry := range settings.AvailableYears {
		if entry.IsActive {
			activeCount++
			if entry.Year != 2030 {
				t.Fatalf("wrong year active: %d", entry.Year)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active year, got %d", activeCount)
	}
	if settings.ActiveYear != 2030 {
		t.Fatalf("activeYear not updated: %d", settings.ActiveYear)
	}
}

func TestSetActiveYearUnknownRejected(t *testing.T) {
	m, _ := newManager(t)
	if _, err := m.SetActiveYear(context.Background(), 1999, "admin@teman.com"); err == nil {
		t.Fatalf("expected unknown year to be rejected")
	}
}

func TestToggleMaintenance(t *testing.T) {
	m, rec := newManager(t)
	settings, err := m.ToggleMaintenance(context.Background(), true, "admin@teman.com")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !settings.MaintenanceMode {
		t.Fatalf("expected maintenance mode on")
	}

	settings, err = m.ToggleMaintenance(context.Background(), false, "admin@teman.com")
	if err != nil || settings.MaintenanceMode {
		t.Fatalf("expected maintenance mode off, err=%v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.actions) != 2 {
		t.Fatalf("expected two audit entries, got %v", rec.actions)
	}
}
