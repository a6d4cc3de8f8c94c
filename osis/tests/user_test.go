package tests

import (
	"errors"
	"testing"
)

func TestUserLogin(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	if err := c.login(loginInfo{Email: adminEmail, Password: adminPassword}); err != nil {
		t.Fatal(err)
	}
	if c.authToken == "" || c.userId == "" {
		t.Fatal("login should return a token and user id")
	}

	bad := env.newClient()
	err := bad.login(loginInfo{Email: adminEmail, Password: "wrong_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}

	unknown := env.newClient()
	err = unknown.login(loginInfo{Email: "nobody@mail.com", Password: "whatever123"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestUserDuplicateConflicts(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	username := uniqueName("unique")
	if _, err := admin.createUser(username, username+"@mail.com", "password123", env.adminRoleId); err != nil {
		t.Fatal(err)
	}

	_, err = admin.createUser(username, "other@mail.com", "password123", env.adminRoleId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	_, err = admin.createUser(uniqueName("other"), username+"@mail.com", "password123", env.adminRoleId)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestUserCreateValidation(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	// Password below the minimum length.
	_, err = admin.createUser(uniqueName("shortpwd"), "short@mail.com", "abc", env.adminRoleId)
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected validation failure for short password, got %v", err)
	}
}

func TestUserCannotDeleteSelf(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/users/" + admin.userId).Do(nil)
	if !errors.Is(err, ErrUnprocessable) {
		t.Fatalf("expected self delete to be rejected, got %v", err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	username := uniqueName("leaving")
	member, err := env.newUserWithRole(username, env.adminRoleId)
	if err != nil {
		t.Fatal(err)
	}
	memberId := userIdByUsername(t, env, username)

	prokerId, err := admin.createProker("Gotong Royong", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.addAnggota(prokerId, memberId, ""); err != nil {
		t.Fatal(err)
	}

	// Member performs an audited action so an audit row references them.
	if _, err := member.createDivision(uniqueName("Divisi"), ""); err != nil {
		t.Fatal(err)
	}

	if err := admin.Delete("/users/" + memberId).Do(nil); err != nil {
		t.Fatal(err)
	}

	proker, err := admin.getProker(prokerId)
	if err != nil {
		t.Fatal(err)
	}
	if len(proker.Anggota) != 0 {
		t.Fatalf("expected anggota rows to cascade on user delete, got %d", len(proker.Anggota))
	}

	entries, err := env.auditEntries("create_division")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("audit entries must survive user deletion")
	}
	for _, entry := range entries {
		if entry.UserId != nil && entry.UserId.String() == memberId {
			t.Fatal("audit entries of a deleted user should have a null actor")
		}
	}
}

func TestUserListFilters(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	divisionId, err := admin.createDivision("Humas", "")
	if err != nil {
		t.Fatal(err)
	}

	name := uniqueName("andi")
	if _, err := admin.createUser(name, name+"@mail.com", "password123", env.adminRoleId); err != nil {
		t.Fatal(err)
	}

	userId := userIdByUsername(t, env, name)
	body := map[string]interface{}{"division_id": divisionId}
	if err := admin.Post("/users/" + userId).Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Data []struct {
			Username string `json:"username"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}

	if err := admin.Get("/users?division_id=" + divisionId).Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 1 || res.Data[0].Username != name {
		t.Fatalf("unexpected division filter result: %+v", res)
	}

	if err := admin.Get("/users?search=" + name).Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 1 {
		t.Fatalf("unexpected search result: %+v", res)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	body := map[string]interface{}{"name": "Administrator OSIS", "password": "new_password123"}
	if err := admin.Post("/users/me").Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	// Old password no longer works, new one does.
	stale := env.newClient()
	if err := stale.login(loginInfo{Email: adminEmail, Password: adminPassword}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected old password to be rejected, got %v", err)
	}

	fresh := env.newClient()
	if err := fresh.login(loginInfo{Email: adminEmail, Password: "new_password123"}); err != nil {
		t.Fatal(err)
	}

	var me struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	if err := fresh.Get("/users/me").Do(&me); err != nil {
		t.Fatal(err)
	}
	if me.User.Name != "Administrator OSIS" {
		t.Fatalf("expected updated name, got %v", me.User.Name)
	}
}
