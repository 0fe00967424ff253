package model

import "testing"

func TestReportID(t *testing.T) {
	cases := map[string]string{
		ReportID(KindDaily, 2025, "2025-01-01"):     "daily_2025-01-01",
		ReportID(KindFinancing, 2025, "2025-01-01"): "financing_2025-01-01",
		ReportID(KindFinancing, 2025, ""):           "financing_2025",
		ReportID(KindCollection, 2024, ""):          "collection_2024",
		ReportID(KindNPF, 2026, ""):                 "npf_2026",
	}
	for got, expect := range cases {
		if got != expect {
			t.Fatalf("expected %s, got %s", expect, got)
		}
	}
}

func TestReportIDNoCrossKindCollision(t *testing.T) {
	seen := map[string]ReportKind{}
	for _, kind := range Kinds {
		id := ReportID(kind, 2025, "2025-06-01")
		if prev, ok := seen[id]; ok {
			t.Fatalf("id %s collides between %s and %s", id, prev, kind)
		}
		seen[id] = kind
	}
}

func TestCacheKey(t *testing.T) {
	if key := CacheKey(KindDaily, 2025, "2025-06-01"); key != "report_full_2025-06-01" {
		t.Fatalf("unexpected date cache key %s", key)
	}
	if key := CacheKey(KindFinancing, 2025, ""); key != "financing_data_2025" {
		t.Fatalf("unexpected year cache key %s", key)
	}
}

func TestValidKind(t *testing.T) {
	for _, kind := range Kinds {
		if !ValidKind(kind) {
			t.Fatalf("expected kind %s to be valid", kind)
		}
	}
	if ValidKind("weekly") {
		t.Fatalf("expected unknown kind to be invalid")
	}
}

func TestRoleIsAdmin(t *testing.T) {
	if !RoleAdmin.IsAdmin() || !RoleSuperadmin.IsAdmin() {
		t.Fatalf("expected admin roles to be admin")
	}
	if RoleViewer.IsAdmin() || RoleUser.IsAdmin() {
		t.Fatalf("expected non-admin roles to not be admin")
	}
}
