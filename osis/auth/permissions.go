package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

func ParseAction(name string) (Action, error) {
	switch Action(name) {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return Action(name), nil
	default:
		return "", fmt.Errorf("unknown action '%v'", name)
	}
}

// CanPerform is the permission evaluator. It is a pure function over the
// actor loaded at the start of the request (role and permission rows
// preloaded); it never touches the database. Absence at any level, no
// actor, no role, no row for the module, is a deny.
func CanPerform(user *schema.User, module schema.Module, action Action) bool {
	if user == nil || user.Role == nil {
		return false
	}

	for _, perm := range user.Role.Permissions {
		if perm.Module != module {
			continue
		}
		switch action {
		case ActionView:
			return perm.CanView
		case ActionCreate:
			return perm.CanCreate
		case ActionEdit:
			return perm.CanEdit
		case ActionDelete:
			return perm.CanDelete
		}
		return false
	}

	return false
}

// RequirePermission guards an endpoint on one (module, action) capability.
// The denial message is deliberately generic so callers cannot probe which
// capability would have sufficed.
func RequirePermission(module schema.Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !CanPerform(&user, module, action) {
				http.Error(w, fmt.Sprintf("user %v does not have permission to access this resource", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type Capabilities struct {
	View   bool `json:"can_view"`
	Create bool `json:"can_create"`
	Edit   bool `json:"can_edit"`
	Delete bool `json:"can_delete"`
}

// GetPermissions returns the stored matrix row set for a role as a
// module -> capabilities mapping. Modules with no row are absent.
func GetPermissions(roleId uuid.UUID, db *gorm.DB) (map[schema.Module]Capabilities, error) {
	var rows []schema.RolePermission
	result := db.Find(&rows, "role_id = ?", roleId)
	if result.Error != nil {
		slog.Error("sql error loading role permissions", "role_id", roleId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	perms := make(map[schema.Module]Capabilities, len(rows))
	for _, row := range rows {
		perms[row.Module] = Capabilities{
			View: row.CanView, Create: row.CanCreate, Edit: row.CanEdit, Delete: row.CanDelete,
		}
	}
	return perms, nil
}

// ReplacePermissions swaps the entire matrix for a role with the supplied
// entries in a single transaction. The reconciliation is an explicit diff:
// rows for modules missing from entries are deleted, the rest are upserted.
// Any module without an entry afterwards evaluates to deny. Concurrent
// replaces for the same role race, last writer wins.
func ReplacePermissions(roleId uuid.UUID, entries []schema.RolePermission, db *gorm.DB) error {
	return db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetRole(roleId, txn); err != nil {
			return err
		}

		keep := make([]string, 0, len(entries))
		for _, entry := range entries {
			keep = append(keep, string(entry.Module))
		}

		remove := txn.Where("role_id = ?", roleId)
		if len(keep) > 0 {
			remove = remove.Where("module NOT IN ?", keep)
		}
		if result := remove.Delete(&schema.RolePermission{}); result.Error != nil {
			slog.Error("sql error removing revoked role permissions", "role_id", roleId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		for _, entry := range entries {
			entry.RoleId = roleId
			if result := txn.Save(&entry); result.Error != nil {
				slog.Error("sql error upserting role permission", "role_id", roleId, "module", entry.Module, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}

		return nil
	})
}

var ErrMissingActor = errors.New("user field not found in request context")

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(UserRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, ErrMissingActor
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}

// ActorId returns the acting user's id for audit attribution, or nil when the
// request carries no authenticated actor (public endpoints).
func ActorId(r *http.Request) *uuid.UUID {
	user, err := UserFromContext(r)
	if err != nil {
		return nil
	}
	id := user.Id
	return &id
}
