package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrRoleNotFound        = errors.New("role not found")
	ErrDivisionNotFound    = errors.New("division not found")
	ErrProkerNotFound      = errors.New("proker not found")
	ErrAnggotaNotFound     = errors.New("anggota not found")
	ErrMediaNotFound       = errors.New("media not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrDbAccessFailed      = errors.New("db access failed")
)

// GetUser loads a user along with its role and that role's permission rows.
// This is the single per-request lookup that builds the permission evaluation
// context; permissions are never cached beyond the request.
func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.Preload("Role").Preload("Role.Permissions").First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetRole(roleId uuid.UUID, db *gorm.DB) (Role, error) {
	var role Role

	result := db.Preload("Permissions").First(&role, "id = ?", roleId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return role, ErrRoleNotFound
		}
		slog.Error("sql error in get role", "role_id", roleId, "error", result.Error)
		return role, ErrDbAccessFailed
	}

	return role, nil
}

func GetDivision(divisionId uuid.UUID, db *gorm.DB) (Division, error) {
	var division Division

	result := db.First(&division, "id = ?", divisionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return division, ErrDivisionNotFound
		}
		slog.Error("sql error in get division", "division_id", divisionId, "error", result.Error)
		return division, ErrDbAccessFailed
	}

	return division, nil
}

// GetProker loads a proker fully hydrated: divisions, media, and membership
// rows with their users, so callers never need a follow-up fetch.
func GetProker(prokerId uuid.UUID, db *gorm.DB) (Proker, error) {
	var proker Proker

	result := db.
		Preload("Divisions").
		Preload("Media").
		Preload("Anggota").
		Preload("Anggota.User").
		Preload("Anggota.Division").
		First(&proker, "id = ?", prokerId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return proker, ErrProkerNotFound
		}
		slog.Error("sql error in get proker", "proker_id", prokerId, "error", result.Error)
		return proker, ErrDbAccessFailed
	}

	return proker, nil
}

func GetTransaction(transactionId uuid.UUID, db *gorm.DB) (Transaction, error) {
	var transaction Transaction

	result := db.Preload("Creator").First(&transaction, "id = ?", transactionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return transaction, ErrTransactionNotFound
		}
		slog.Error("sql error in get transaction", "transaction_id", transactionId, "error", result.Error)
		return transaction, ErrDbAccessFailed
	}

	return transaction, nil
}

func GetMessage(messageId uuid.UUID, db *gorm.DB) (Message, error) {
	var message Message

	result := db.First(&message, "id = ?", messageId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return message, ErrMessageNotFound
		}
		slog.Error("sql error in get message", "message_id", messageId, "error", result.Error)
		return message, ErrDbAccessFailed
	}

	return message, nil
}
