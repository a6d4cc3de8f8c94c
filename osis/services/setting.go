package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SettingService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *SettingService) Routes() chi.Router {
	r := chi.NewRouter()

	// App settings feed the public landing page, so reads are open.
	r.Get("/", s.GetSettings)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionEdit)).Post("/", s.UpdateSettings)

		r.Route("/roles", func(r chi.Router) {
			r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionView)).Get("/", s.ListRoles)
			r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionCreate)).Post("/", s.CreateRole)
			r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionDelete)).Delete("/{role_id}", s.DeleteRole)
			r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionEdit)).Post("/{role_id}/permissions", s.ReplaceRolePermissions)
		})

		r.With(auth.RequirePermission(schema.ModuleSettings, auth.ActionView)).Get("/audit-log", s.AuditLog)
	})

	return r
}

func (s *SettingService) GetSettings(w http.ResponseWriter, r *http.Request) {
	var settings []schema.AppSetting
	result := s.db.Find(&settings)
	if result.Error != nil {
		slog.Error("sql error listing app settings", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing settings: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	values := make(map[string]string, len(settings))
	for _, setting := range settings {
		values[setting.Key] = setting.Value
	}

	utils.WriteJsonResponse(w, values)
}

type updateSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// UpdateSettings upserts the supplied keys. Keys not present in the request
// are left untouched; each key is last write wins.
func (s *SettingService) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var params updateSettingsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		for key, value := range params.Settings {
			result := txn.Save(&schema.AppSetting{Key: key, Value: value})
			if result.Error != nil {
				slog.Error("sql error upserting app setting", "key", key, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating settings: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_settings", fmt.Sprintf("updated %v app settings", len(params.Settings)))

	utils.WriteSuccess(w)
}

func (s *SettingService) ListRoles(w http.ResponseWriter, r *http.Request) {
	var roles []schema.Role
	result := s.db.Preload("Permissions").Order("name asc").Find(&roles)
	if result.Error != nil {
		slog.Error("sql error listing roles", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing roles: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, roles)
}

type permissionEntry struct {
	Module    string `json:"module" validate:"required"`
	CanView   bool   `json:"can_view"`
	CanCreate bool   `json:"can_create"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
}

type createRoleRequest struct {
	Name        string            `json:"name" validate:"required,max=100"`
	Description string            `json:"description" validate:"omitempty,max=255"`
	Permissions []permissionEntry `json:"permissions" validate:"dive"`
}

type roleResponse struct {
	Message string      `json:"message"`
	Data    schema.Role `json:"data"`
}

func (s *SettingService) CreateRole(w http.ResponseWriter, r *http.Request) {
	var params createRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	rows, err := buildPermissionRows(params.Permissions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	newRole := schema.Role{Id: uuid.New(), Name: params.Name, Description: params.Description}
	for _, row := range rows {
		row.RoleId = newRole.Id
		newRole.Permissions = append(newRole.Permissions, row)
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Role
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate role name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("role with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newRole)
		if result.Error != nil {
			slog.Error("sql error creating new role", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating role: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "create_role", fmt.Sprintf("created role '%v'", newRole.Name))

	utils.WriteJsonResponse(w, roleResponse{Message: "role created successfully", Data: newRole})
}

func (s *SettingService) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedName string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		role, err := schema.GetRole(roleId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedName = role.Name

		var assigned int64
		result := txn.Model(&schema.User{}).Where("role_id = ?", roleId).Count(&assigned)
		if result.Error != nil {
			slog.Error("sql error counting users assigned to role", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if assigned > 0 {
			return CodedError(fmt.Errorf("role '%v' is assigned to %v users and cannot be deleted", role.Name, assigned), http.StatusConflict)
		}

		result = txn.Where("role_id = ?", roleId).Delete(&schema.RolePermission{})
		if result.Error != nil {
			slog.Error("sql error deleting role permissions", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Role{Id: roleId})
		if result.Error != nil {
			slog.Error("sql error deleting role", "role_id", roleId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting role: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "delete_role", fmt.Sprintf("deleted role '%v'", deletedName))

	utils.WriteSuccess(w)
}

type replacePermissionsRequest struct {
	Permissions []permissionEntry `json:"permissions" validate:"dive"`
}

// ReplaceRolePermissions swaps the role's entire permission matrix for the
// supplied entries. Modules omitted from the request end up with no row,
// which the evaluator treats as deny.
func (s *SettingService) ReplaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleId, err := utils.URLParamUUID(r, "role_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params replacePermissionsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	rows, err := buildPermissionRows(params.Permissions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err = auth.ReplacePermissions(roleId, rows, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrRoleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error replacing role permissions: %v", err), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "update_role_permissions", fmt.Sprintf("replaced permissions of role %v with %v module entries", roleId, len(rows)))

	perms, err := auth.GetPermissions(roleId, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading updated permissions: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, perms)
}

// buildPermissionRows validates the module names of the supplied entries and
// rejects duplicates, since the matrix holds at most one row per module.
func buildPermissionRows(entries []permissionEntry) ([]schema.RolePermission, error) {
	rows := make([]schema.RolePermission, 0, len(entries))
	seen := make(map[schema.Module]bool, len(entries))

	for _, entry := range entries {
		module, err := schema.ParseModule(entry.Module)
		if err != nil {
			return nil, err
		}
		if seen[module] {
			return nil, fmt.Errorf("duplicate permission entry for module '%v'", module)
		}
		seen[module] = true

		rows = append(rows, schema.RolePermission{
			Module:    module,
			CanView:   entry.CanView,
			CanCreate: entry.CanCreate,
			CanEdit:   entry.CanEdit,
			CanDelete: entry.CanDelete,
		})
	}

	return rows, nil
}

func (s *SettingService) AuditLog(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	query := s.db.Model(&schema.AuditLog{}).Preload("User")

	if userId := r.URL.Query().Get("user_id"); userId != "" {
		query = query.Where("user_id = ?", userId)
	}
	if action := r.URL.Query().Get("action"); action != "" {
		query = query.Where("action = ?", action)
	}

	var entries []schema.AuditLog
	pagination, err := paginate(query.Order("created_at desc"), page, perPage, &entries)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing audit log: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, ListResponse{Data: entries, Pagination: pagination})
}
