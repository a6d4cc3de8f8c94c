// Package seed applies the default roles, their permission matrix, and the
// default app settings. Seeding is idempotent: existing roles and settings
// are left untouched so operator edits survive restarts.
package seed

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed defaults.yaml
var defaultsYaml []byte

type permissionEntry struct {
	Module string `yaml:"module"`
	View   bool   `yaml:"view"`
	Create bool   `yaml:"create"`
	Edit   bool   `yaml:"edit"`
	Delete bool   `yaml:"delete"`
}

type roleEntry struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Permissions []permissionEntry `yaml:"permissions"`
}

type settingEntry struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type defaults struct {
	Roles    []roleEntry    `yaml:"roles"`
	Settings []settingEntry `yaml:"settings"`
}

const AdminRoleName = "Admin"

// EnsureDefaults seeds missing roles and settings and returns the id of the
// Admin role, which the identity provider needs for the bootstrap admin user.
func EnsureDefaults(db *gorm.DB) (uuid.UUID, error) {
	var parsed defaults
	if err := yaml.Unmarshal(defaultsYaml, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("error parsing embedded seed document: %w", err)
	}

	var adminRoleId uuid.UUID

	err := db.Transaction(func(txn *gorm.DB) error {
		for _, entry := range parsed.Roles {
			roleId, err := ensureRole(txn, entry)
			if err != nil {
				return err
			}
			if entry.Name == AdminRoleName {
				adminRoleId = roleId
			}
		}

		for _, setting := range parsed.Settings {
			var existing schema.AppSetting
			result := txn.Limit(1).Find(&existing, "key = ?", setting.Key)
			if result.Error != nil {
				slog.Error("sql error checking existing app setting", "key", setting.Key, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			if result.RowsAffected != 0 {
				continue
			}
			if result := txn.Create(&schema.AppSetting{Key: setting.Key, Value: setting.Value}); result.Error != nil {
				slog.Error("sql error seeding app setting", "key", setting.Key, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	if adminRoleId == uuid.Nil {
		return uuid.Nil, fmt.Errorf("seed document does not define the %v role", AdminRoleName)
	}

	return adminRoleId, nil
}

func ensureRole(txn *gorm.DB, entry roleEntry) (uuid.UUID, error) {
	var existing schema.Role
	result := txn.Limit(1).Find(&existing, "name = ?", entry.Name)
	if result.Error != nil {
		slog.Error("sql error checking existing role", "role", entry.Name, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}
	if result.RowsAffected != 0 {
		return existing.Id, nil
	}

	role := schema.Role{Id: uuid.New(), Name: entry.Name, Description: entry.Description}
	for _, perm := range entry.Permissions {
		module, err := schema.ParseModule(perm.Module)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid seed permission for role %v: %w", entry.Name, err)
		}
		role.Permissions = append(role.Permissions, schema.RolePermission{
			RoleId:    role.Id,
			Module:    module,
			CanView:   perm.View,
			CanCreate: perm.Create,
			CanEdit:   perm.Edit,
			CanDelete: perm.Delete,
		})
	}

	if result := txn.Create(&role); result.Error != nil {
		slog.Error("sql error seeding role", "role", entry.Name, "error", result.Error)
		return uuid.Nil, schema.ErrDbAccessFailed
	}

	slog.Info("seeded default role", "role", entry.Name, "modules", len(role.Permissions))

	return role.Id, nil
}
