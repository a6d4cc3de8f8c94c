package tests

import (
	"errors"
	"testing"
)

func TestSettingsSeededAndPublic(t *testing.T) {
	env := setupTestEnv(t)

	// The landing page reads settings without logging in.
	anon := env.newClient()
	settings, err := anon.getSettings()
	if err != nil {
		t.Fatal(err)
	}

	if settings["school_name"] != "SMKN 6 Surakarta" {
		t.Fatalf("expected seeded school_name, got %v", settings["school_name"])
	}
	if settings["contact_email"] == "" {
		t.Fatal("expected seeded contact_email")
	}
}

func TestSettingsUpsert(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.updateSettings(map[string]string{
		"school_name": "SMKN 6 Solo",
		"new_key":     "new value",
	})
	if err != nil {
		t.Fatal(err)
	}

	settings, err := admin.getSettings()
	if err != nil {
		t.Fatal(err)
	}
	if settings["school_name"] != "SMKN 6 Solo" {
		t.Fatalf("expected updated school_name, got %v", settings["school_name"])
	}
	if settings["new_key"] != "new value" {
		t.Fatalf("expected upserted key, got %v", settings["new_key"])
	}
	// Untouched keys survive.
	if settings["theme_color"] != "#FFD700" {
		t.Fatalf("expected untouched theme_color, got %v", settings["theme_color"])
	}

	// Anonymous writes are rejected.
	anon := env.newClient()
	err = anon.updateSettings(map[string]string{"school_name": "hacked"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRoleCreateAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	name := uniqueName("Koordinator")
	roleId, err := admin.createRole(name, fullPermissions())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createRole(name, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate role name, got %v", err)
	}

	// A role with users assigned cannot be deleted.
	username := uniqueName("koor")
	if _, err := admin.createUser(username, username+"@mail.com", "password123", mustParseUUID(t, roleId)); err != nil {
		t.Fatal(err)
	}
	if err := admin.Delete("/settings/roles/" + roleId).Do(nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict deleting assigned role, got %v", err)
	}

	userId := userIdByUsername(t, env, username)
	if err := admin.Delete("/users/" + userId).Do(nil); err != nil {
		t.Fatal(err)
	}
	if err := admin.Delete("/settings/roles/" + roleId).Do(nil); err != nil {
		t.Fatal(err)
	}
}

func TestAuditLogListing(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createDivision("Kesenian", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createDivision("Pramuka", ""); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Data []struct {
			Action      string  `json:"action"`
			UserId      *string `json:"user_id"`
			Description string  `json:"description"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}

	if err := admin.Get("/settings/audit-log?action=create_division").Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 2 {
		t.Fatalf("expected 2 create_division entries, got %d", res.Pagination.Total)
	}
	for _, entry := range res.Data {
		if entry.Action != "create_division" {
			t.Fatalf("unexpected action in filtered listing: %v", entry.Action)
		}
		if entry.UserId == nil {
			t.Fatal("expected entries to be attributed to the admin")
		}
	}
}

func TestDashboardSummary(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createDivision("Humas", ""); err != nil {
		t.Fatal(err)
	}
	prokerId, err := admin.createProker("Pensi", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.updateProker(prokerId, map[string]interface{}{"status": "ongoing"}); err != nil {
		t.Fatal(err)
	}

	anon := env.newClient()
	if err := anon.sendMessage("Budi", "budi@mail.com", "Halo", "halo osis"); err != nil {
		t.Fatal(err)
	}

	summary, err := admin.dashboardSummary()
	if err != nil {
		t.Fatal(err)
	}

	if summary.TotalDivisions != 1 {
		t.Fatalf("expected 1 division, got %d", summary.TotalDivisions)
	}
	if summary.ProkersOngoing != 1 || summary.ProkersPlanned != 0 {
		t.Fatalf("unexpected proker counts: %+v", summary)
	}
	if summary.UnreadMessages != 1 {
		t.Fatalf("expected 1 unread message, got %d", summary.UnreadMessages)
	}
	if summary.TotalUsers < 1 {
		t.Fatalf("expected at least the admin user, got %d", summary.TotalUsers)
	}
}
