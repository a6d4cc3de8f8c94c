package tests

import (
	"errors"
	"testing"
)

func TestDivisionCrud(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	divisionId, err := admin.createDivision("Humas", "hubungan masyarakat")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createDivision("Humas", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate division name, got %v", err)
	}

	body := map[string]string{"description": "hubungan masyarakat dan publikasi"}
	if err := admin.Post("/divisions/" + divisionId).Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	var division struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := admin.Get("/divisions/" + divisionId).Do(&division); err != nil {
		t.Fatal(err)
	}
	if division.Name != "Humas" || division.Description != "hubungan masyarakat dan publikasi" {
		t.Fatalf("unexpected division after update: %+v", division)
	}

	if err := admin.Delete("/divisions/" + divisionId).Do(nil); err != nil {
		t.Fatal(err)
	}
	if err := admin.Get("/divisions/" + divisionId).Do(nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDivisionListCounts(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	divisionId, err := admin.createDivision("Keagamaan", "")
	if err != nil {
		t.Fatal(err)
	}

	username := uniqueName("santri")
	if _, err := admin.createUser(username, username+"@mail.com", "password123", env.adminRoleId); err != nil {
		t.Fatal(err)
	}
	userId := userIdByUsername(t, env, username)
	if err := admin.Post("/users/" + userId).Json(map[string]interface{}{"division_id": divisionId}).Do(nil); err != nil {
		t.Fatal(err)
	}

	if _, err := admin.createProker("Pesantren Kilat", []string{divisionId}); err != nil {
		t.Fatal(err)
	}

	divisions, err := admin.listDivisions()
	if err != nil {
		t.Fatal(err)
	}
	if len(divisions) != 1 {
		t.Fatalf("expected 1 division, got %d", len(divisions))
	}
	if divisions[0].UserCount != 1 || divisions[0].ProkerCount != 1 {
		t.Fatalf("unexpected counts: %+v", divisions[0])
	}
}

func TestDivisionDeleteDetaches(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	divisionId, err := admin.createDivision("Olahraga", "")
	if err != nil {
		t.Fatal(err)
	}

	username := uniqueName("atlet")
	if _, err := admin.createUser(username, username+"@mail.com", "password123", env.adminRoleId); err != nil {
		t.Fatal(err)
	}
	userId := userIdByUsername(t, env, username)
	if err := admin.Post("/users/" + userId).Json(map[string]interface{}{"division_id": divisionId}).Do(nil); err != nil {
		t.Fatal(err)
	}

	prokerId, err := admin.createProker("Classmeeting", []string{divisionId})
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.Delete("/divisions/" + divisionId).Do(nil); err != nil {
		t.Fatal(err)
	}

	// Users keep their accounts, prokers keep their rows; only the link is gone.
	var user struct {
		DivisionId *string `json:"division_id"`
	}
	if err := admin.Get("/users/" + userId).Do(&user); err != nil {
		t.Fatal(err)
	}
	if user.DivisionId != nil {
		t.Fatalf("expected user division to be nulled, got %v", *user.DivisionId)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Divisions) != 0 {
		t.Fatalf("expected proker division links to be removed, got %d", len(proker.Divisions))
	}
}
