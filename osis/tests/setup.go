package tests

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/osis/seed"
	"github.com/claveora/OSIS-Integrated-Administration/osis/services"
	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	admin       services.OsisAdmin
	api         chi.Router
	db          *gorm.DB
	storage     storage.Storage
	adminRoleId uuid.UUID
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		t.Fatal(err)
	}

	adminRoleId, err := seed.EnsureDefaults(db)
	if err != nil {
		t.Fatal(err)
	}

	store := storage.NewSharedDisk(t.TempDir())

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        []byte("290zcv02ai249"),
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
			AdminRoleId:   adminRoleId,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	admin := services.NewOsisAdmin(db, store, userAuth, audit.NewRecorder(db))

	return &testEnv{admin: admin, api: admin.Routes(), db: db, storage: store, adminRoleId: adminRoleId}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

func (t *testEnv) roleIdByName(name string) (uuid.UUID, error) {
	var role schema.Role
	result := t.db.First(&role, "name = ?", name)
	if result.Error != nil {
		return uuid.Nil, result.Error
	}
	return role.Id, nil
}

// newUserWithRole creates a user with the given role through the admin api
// and returns a client logged in as that user.
func (t *testEnv) newUserWithRole(username string, roleId uuid.UUID) (client, error) {
	admin, err := t.adminClient()
	if err != nil {
		return client{}, err
	}

	login, err := admin.createUser(username, username+"@mail.com", username+"_password", roleId)
	if err != nil {
		return client{}, err
	}

	c := t.newClient()
	if err := c.login(login); err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) auditEntries(action string) ([]schema.AuditLog, error) {
	var entries []schema.AuditLog
	result := t.db.Order("created_at asc").Find(&entries, "action = ?", action)
	if result.Error != nil {
		return nil, result.Error
	}
	return entries, nil
}

func fullPermissions() []map[string]interface{} {
	entries := make([]map[string]interface{}, 0, len(schema.AllModules()))
	for _, module := range schema.AllModules() {
		entries = append(entries, map[string]interface{}{
			"module": string(module), "can_view": true, "can_create": true, "can_edit": true, "can_delete": true,
		})
	}
	return entries
}

func singleModulePermissions(module schema.Module, view, create, edit, del bool) []map[string]interface{} {
	return []map[string]interface{}{{
		"module": string(module), "can_view": view, "can_create": create, "can_edit": edit, "can_delete": del,
	}}
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%v_%v", prefix, uuid.New().String()[:8])
}

func userIdByUsername(t *testing.T, env *testEnv, username string) string {
	var user schema.User
	if err := env.db.First(&user, "username = ?", username).Error; err != nil {
		t.Fatalf("error looking up user %v: %v", username, err)
	}
	return user.Id.String()
}

func mustParseUUID(t *testing.T, value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		t.Fatalf("invalid uuid '%v': %v", value, err)
	}
	return id
}
