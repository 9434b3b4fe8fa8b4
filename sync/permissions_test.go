package sync

import (
	"testing"
)

func TestDefaultPermissions(t *testing.T) {
	perms := DefaultPermissions()

	if !perms.Health || !perms.Finance || !perms.Calendar || !perms.Task {
		t.Errorf("category defaults = %+v, want all true", perms)
	}
	if !perms.BackgroundSync || !perms.AIAccess {
		t.Errorf("sync defaults = %+v, want background and AI true", perms)
	}
	if perms.Location {
		t.Error("Location default = true, want false")
	}
}

func TestProviderAllowed(t *testing.T) {
	perms := DefaultPermissions()
	perms.Health = false

	if ProviderAllowed("fitbit", perms) {
		t.Error("fitbit allowed with health sharing disabled")
	}
	if ProviderAllowed("oura", perms) {
		t.Error("oura allowed with health sharing disabled")
	}
	// The device bridge and unknown providers have no job-level category;
	// items are still entity-gated individually.
	if !ProviderAllowed("devicebridge", perms) {
		t.Error("devicebridge blocked at job level")
	}
	if !ProviderAllowed("plaid", perms) {
		t.Error("plaid blocked by health permission")
	}
}

func TestEntityAllowed(t *testing.T) {
	perms := DefaultPermissions()
	perms.Finance = false
	perms.Calendar = false

	cases := []struct {
		entityType string
		want       bool
	}{
		{EntityTransaction, false},
		{EntityWellnessSnapshot, true},
		{EntityCalendarEvent, false},
		{EntityTask, true},
		{"unknown", false},
	}

	for _, tc := range cases {
		if got := EntityAllowed(tc.entityType, perms); got != tc.want {
			t.Errorf("EntityAllowed(%q) = %v, want %v", tc.entityType, got, tc.want)
		}
	}
}
