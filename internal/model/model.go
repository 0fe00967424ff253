package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReportKind is the report category, used as the first segment of a record id.
type ReportKind string

const (
	KindDaily      ReportKind = "daily"
	KindFinancing  ReportKind = "financing"
	KindCollection ReportKind = "collection"
	KindNPF        ReportKind = "npf"
)

// Kinds lists every valid report kind.
var Kinds = []ReportKind{KindDaily, KindFinancing, KindCollection, KindNPF}

// ValidKind reports whether k names a known report category.
func ValidKind(k ReportKind) bool {
	switch k {
	case KindDaily, KindFinancing, KindCollection, KindNPF:
		return true
	}
	return false
}

// ReportRecord is one stored report. Data is opaque to the data layer:
// it is stored and returned byte-for-byte equivalent after a JSON round trip,
// never inspected.
type ReportRecord struct {
	ID   string          `json:"id"`
	Type ReportKind      `json:"type"`
	Year int             `json:"year"`
	Date string          `json:"date,omitempty"` // YYYY-MM-DD, daily reports only
	Data json.RawMessage `json:"data"`
}

// ReportID builds the deterministic record id: "{kind}_{date}" when a date
// is given, otherwise "{kind}_{year}". Distinct kinds never collide because
// the kind is always the first segment.
func ReportID(kind ReportKind, year int, date string) string {
	if date != "" {
		return fmt.Sprintf("%s_%s", kind, date)
	}
	return fmt.Sprintf("%s_%d", kind, year)
}

// CacheKey is the local-cache key for a report: date-keyed reports live under
// report_full_{date}, year-keyed reports under {kind}_data_{year}.
func CacheKey(kind ReportKind, year int, date string) string {
	if date != "" {
		return fmt.Sprintf("report_full_%s", date)
	}
	return fmt.Sprintf("%s_data_%d", kind, year)
}

// Reserved local-cache keys.
const (
	KeyMockUsers      = "mock_users"
	KeyMockLogs       = "mock_logs"
	KeySystemSettings = "system_settings"
)

type Role string

const (
	RoleViewer     Role = "viewer"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleViewer, RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role may perform administrative operations.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

// UserProfile is one authenticated identity. Exactly one profile exists per
// identity; the first profile ever created in a fresh deployment is the
// superadmin.
type UserProfile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt,omitempty"`
	LastLogin time.Time  `json:"lastLogin,omitempty"`
}

// AuditLogEntry is one append-only activity record. Immutable once written.
type AuditLogEntry struct {
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"` // ISO-8601
	UserEmail string `json:"user"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// YearEntry is one reporting year known to the system. At most one entry is
// active at a time.
type YearEntry struct {
	Year      int    `json:"year"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt,omitempty"`
	CreatedBy string `json:"createdBy,omitempty"`
}

// SystemSettings is the single global settings blob. ActiveYear always equals
// the year of the one active entry in AvailableYears.
type SystemSettings struct {
	ActiveYear      int         `json:"activeYear"`
	MaintenanceMode bool        `json:"maintenanceMode"`
	AvailableYears  []YearEntry `json:"availableYears"`
}

// ConnectivityState classifies the reachability of the remote tiers.
// Transient: recomputed on every heartbeat tick, never persisted.
type ConnectivityState string

const (
	// StateDemo means no remote store is configured at all.
	StateDemo ConnectivityState = "demo"
	// StateOffline means a remote is configured but unreachable.
	StateOffline ConnectivityState = "offline"
	// StateOnline means the configured remote answered the probe.
	StateOnline ConnectivityState = "online"
)
