package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/me", s.Me)
		r.With(auth.RequirePermission(schema.ModuleProfile, auth.ActionEdit)).Post("/me", s.UpdateProfile)

		r.With(auth.RequirePermission(schema.ModuleUsers, auth.ActionView)).Get("/", s.List)
		r.With(auth.RequirePermission(schema.ModuleUsers, auth.ActionCreate)).Post("/", s.Create)

		r.Route("/{user_id}", func(r chi.Router) {
			r.With(auth.RequirePermission(schema.ModuleUsers, auth.ActionView)).Get("/", s.Show)
			r.With(auth.RequirePermission(schema.ModuleUsers, auth.ActionEdit)).Post("/", s.Update)
			r.With(auth.RequirePermission(schema.ModuleUsers, auth.ActionDelete)).Delete("/", s.Delete)
		})
	})

	return r
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessToken string    `json:"access_token"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "invalid basic auth credentials", http.StatusUnauthorized)
		return
	}

	login, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFoundWithEmail) || errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "invalid login credentials", http.StatusUnauthorized)
			return
		}
		if errors.Is(err, auth.ErrAccountInactive) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		slog.Error("error during user login", "error", err)
		http.Error(w, "error during login", http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

type meResponse struct {
	User        schema.User                         `json:"user"`
	Permissions map[schema.Module]auth.Capabilities `json:"permissions"`
}

func (s *UserService) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	perms, err := auth.GetPermissions(user.RoleId, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading permissions: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, meResponse{User: user, Permissions: perms})
}

type updateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=255"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Password       *string `json:"password" validate:"omitempty,min=8"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,max=500"`
}

func (s *UserService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params updateProfileRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(actor.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Email != nil && *params.Email != user.Email {
			if err := checkUniqueUser(txn, "email", *params.Email, user.Id); err != nil {
				return err
			}
			user.Email = *params.Email
		}
		if params.Name != nil {
			user.Name = *params.Name
		}
		if params.ProfilePicture != nil {
			user.ProfilePicture = *params.ProfilePicture
		}
		if params.Password != nil {
			hashed, err := auth.HashPassword(*params.Password)
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			user.Password = hashed
		}

		result := txn.Save(&user)
		if result.Error != nil {
			slog.Error("sql error updating profile", "user_id", user.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating profile: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_profile", fmt.Sprintf("updated profile of '%v'", actor.Username))

	utils.WriteSuccess(w)
}

func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	query := s.db.Model(&schema.User{}).Preload("Role").Preload("Division")

	if search := r.URL.Query().Get("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where(
			"lower(name) LIKE ? OR lower(username) LIKE ? OR lower(email) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if roleId := r.URL.Query().Get("role_id"); roleId != "" {
		query = query.Where("role_id = ?", roleId)
	}
	if divisionId := r.URL.Query().Get("division_id"); divisionId != "" {
		query = query.Where("division_id = ?", divisionId)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var users []schema.User
	pagination, err := paginate(query.Order("name asc"), page, perPage, &users)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing users: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, ListResponse{Data: users, Pagination: pagination})
}

func (s *UserService) Show(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var user schema.User
	result := s.db.Preload("Role").Preload("Role.Permissions").Preload("Division").First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, schema.ErrUserNotFound.Error(), http.StatusNotFound)
			return
		}
		slog.Error("sql error loading user", "user_id", userId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading user: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, user)
}

type createUserRequest struct {
	Name       string     `json:"name" validate:"required,max=255"`
	Username   string     `json:"username" validate:"required,max=50"`
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required,min=8"`
	RoleId     uuid.UUID  `json:"role_id" validate:"required"`
	DivisionId *uuid.UUID `json:"division_id"`
	Status     string     `json:"status" validate:"omitempty,oneof=active inactive"`
}

type userResponse struct {
	Message string      `json:"message"`
	Data    schema.User `json:"data"`
}

func (s *UserService) Create(w http.ResponseWriter, r *http.Request) {
	var params createUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	hashed, err := auth.HashPassword(params.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := params.Status
	if status == "" {
		status = schema.StatusActive
	}

	newUser := schema.User{
		Id:         uuid.New(),
		Name:       params.Name,
		Username:   params.Username,
		Email:      params.Email,
		Password:   hashed,
		Status:     status,
		RoleId:     params.RoleId,
		DivisionId: params.DivisionId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkRoleExists(txn, params.RoleId); err != nil {
			return err
		}
		if params.DivisionId != nil {
			if err := checkDivisionExists(txn, *params.DivisionId); err != nil {
				return err
			}
		}

		if err := checkUniqueUser(txn, "username", params.Username, uuid.Nil); err != nil {
			return err
		}
		if err := checkUniqueUser(txn, "email", params.Email, uuid.Nil); err != nil {
			return err
		}

		result := txn.Create(&newUser)
		if result.Error != nil {
			slog.Error("sql error creating new user", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating user: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "create_user", fmt.Sprintf("created user '%v'", newUser.Username))

	utils.WriteJsonResponse(w, userResponse{Message: "user created successfully", Data: newUser})
}

type updateUserRequest struct {
	Name       *string    `json:"name" validate:"omitempty,max=255"`
	Username   *string    `json:"username" validate:"omitempty,max=50"`
	Email      *string    `json:"email" validate:"omitempty,email"`
	Password   *string    `json:"password" validate:"omitempty,min=8"`
	RoleId     *uuid.UUID `json:"role_id"`
	DivisionId *uuid.UUID `json:"division_id"`
	Status     *string    `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (s *UserService) Update(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateUserRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	var updated schema.User

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Username != nil && *params.Username != user.Username {
			if err := checkUniqueUser(txn, "username", *params.Username, user.Id); err != nil {
				return err
			}
			user.Username = *params.Username
		}
		if params.Email != nil && *params.Email != user.Email {
			if err := checkUniqueUser(txn, "email", *params.Email, user.Id); err != nil {
				return err
			}
			user.Email = *params.Email
		}
		if params.Name != nil {
			user.Name = *params.Name
		}
		if params.Password != nil {
			hashed, err := auth.HashPassword(*params.Password)
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			user.Password = hashed
		}
		if params.RoleId != nil {
			if err := checkRoleExists(txn, *params.RoleId); err != nil {
				return err
			}
			user.RoleId = *params.RoleId
		}
		if params.DivisionId != nil {
			if err := checkDivisionExists(txn, *params.DivisionId); err != nil {
				return err
			}
			user.DivisionId = params.DivisionId
		}
		if params.Status != nil {
			user.Status = *params.Status
		}

		user.Role = nil

		result := txn.Save(&user)
		if result.Error != nil {
			slog.Error("sql error updating user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = user
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating user: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_user", fmt.Sprintf("updated user '%v'", updated.Username))

	utils.WriteJsonResponse(w, userResponse{Message: "user updated successfully", Data: updated})
}

func (s *UserService) Delete(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	actor, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if actor.Id == userId {
		http.Error(w, "cannot delete own account", http.StatusUnprocessableEntity)
		return
	}

	var deletedUsername string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err := schema.GetUser(userId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedUsername = user.Username

		result := txn.Where("user_id = ?", userId).Delete(&schema.ProkerAnggota{})
		if result.Error != nil {
			slog.Error("sql error deleting user proker memberships", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.AuditLog{}).Where("user_id = ?", userId).Update("user_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching audit entries from user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.Transaction{}).Where("created_by = ?", userId).Update("created_by", nil)
		if result.Error != nil {
			slog.Error("sql error detaching transactions from user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.User{Id: userId})
		if result.Error != nil {
			slog.Error("sql error deleting user", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting user: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "delete_user", fmt.Sprintf("deleted user '%v'", deletedUsername))

	utils.WriteSuccess(w)
}

func checkUniqueUser(txn *gorm.DB, column, value string, excludeId uuid.UUID) error {
	var existing schema.User
	query := txn.Limit(1).Where(fmt.Sprintf("%v = ?", column), value)
	if excludeId != uuid.Nil {
		query = query.Where("id <> ?", excludeId)
	}
	result := query.Find(&existing)
	if result.Error != nil {
		slog.Error("sql error checking for duplicate user", "column", column, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected != 0 {
		return CodedError(fmt.Errorf("user with %v '%v' already exists", column, strings.ToLower(value)), http.StatusConflict)
	}
	return nil
}
