package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFoundWithEmail = errors.New("no user found for given email")
	ErrInvalidCredentials    = errors.New("invalid login credentials")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrGeneratingJwt         = errors.New("error generating jwt")
)

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

// IdentityProvider resolves credentials into an authenticated actor and
// attaches that actor to requests. Authorization is not its concern; it only
// produces the actor the permission evaluator receives.
type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	LoginWithEmail(email, password string) (LoginResult, error)
}

func HashPassword(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, fmt.Errorf("error encrypting password: %w", err)
	}
	return hashed, nil
}

func addInitialAdminToDb(db *gorm.DB, userId uuid.UUID, username, email string, password []byte, roleId uuid.UUID) error {
	user := schema.User{
		Id:       userId,
		Name:     username,
		Username: username,
		Email:    email,
		Password: password,
		Status:   schema.StatusActive,
		RoleId:   roleId,
	}

	err := db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Limit(1).Find(&existingUser, "id = ? or username = ? or email = ?", userId, username, email)
		if result.Error != nil {
			slog.Error("sql error checking if admin has already been added", "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		if result.RowsAffected == 0 {
			result := txn.Create(&user)
			if result.Error != nil {
				slog.Error("sql error creating initial admin user", "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error adding initial admin to db: %w", err)
	}

	return nil
}

type requestContextKey string

const UserRequestContextKey requestContextKey = "user"
