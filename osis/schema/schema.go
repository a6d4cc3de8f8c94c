package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name     string `gorm:"size:255;not null" json:"name"`
	Username string `gorm:"unique;size:50;not null" json:"username"`
	Email    string `gorm:"unique;size:254;not null" json:"email"`
	Password []byte `json:"-"`

	ProfilePicture string `gorm:"size:500" json:"profile_picture"`

	Status string `gorm:"size:20;not null;default:'active'" json:"status"`

	RoleId uuid.UUID `gorm:"type:uuid;not null" json:"role_id"`
	Role   *Role     `json:"role,omitempty"`

	DivisionId *uuid.UUID `gorm:"type:uuid" json:"division_id"`
	Division   *Division  `gorm:"constraint:OnDelete:SET NULL" json:"division,omitempty"`

	Anggota []ProkerAnggota `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Role struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"unique;size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`

	Permissions []RolePermission `gorm:"constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
}

// RolePermission is one row of the permission matrix. The composite key
// guarantees at most one row per (role, module) pair; a missing row always
// evaluates to deny.
type RolePermission struct {
	RoleId uuid.UUID `gorm:"type:uuid;primaryKey" json:"role_id"`
	Module Module    `gorm:"size:50;primaryKey" json:"module"`

	CanView   bool `gorm:"not null;default:false" json:"can_view"`
	CanCreate bool `gorm:"not null;default:false" json:"can_create"`
	CanEdit   bool `gorm:"not null;default:false" json:"can_edit"`
	CanDelete bool `gorm:"not null;default:false" json:"can_delete"`
}

type Division struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `json:"description"`

	Users   []User   `json:"users,omitempty"`
	Prokers []Proker `gorm:"many2many:proker_divisions" json:"prokers,omitempty"`
}

const (
	ProkerPlanned = "planned"
	ProkerOngoing = "ongoing"
	ProkerDone    = "done"
)

type Proker struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	Location    string    `gorm:"size:255" json:"location"`

	Status string `gorm:"size:20;not null;default:'planned'" json:"status"`

	Divisions []Division      `gorm:"many2many:proker_divisions" json:"divisions,omitempty"`
	Anggota   []ProkerAnggota `gorm:"constraint:OnDelete:CASCADE" json:"anggota,omitempty"`
	Media     []ProkerMedia   `gorm:"constraint:OnDelete:CASCADE" json:"media,omitempty"`
}

type ProkerAnggota struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProkerId uuid.UUID `gorm:"type:uuid;not null;index" json:"proker_id"`
	UserId   uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	User     *User     `json:"user,omitempty"`

	// Free text label for the member's role within this proker, e.g. "PJ Acara".
	Role string `gorm:"size:100" json:"role"`

	DivisionId *uuid.UUID `gorm:"type:uuid" json:"division_id"`
	Division   *Division  `gorm:"constraint:OnDelete:SET NULL" json:"division,omitempty"`
}

const (
	MediaImage = "image"
	MediaVideo = "video"
)

type ProkerMedia struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProkerId uuid.UUID `gorm:"type:uuid;not null;index" json:"proker_id"`
	Proker   *Proker   `json:"proker,omitempty"`

	MediaType string `gorm:"size:20;not null" json:"media_type"`
	MediaUrl  string `gorm:"size:500;not null" json:"media_url"`
	Caption   string `json:"caption"`

	CreatedAt time.Time `json:"created_at"`
}

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

type Transaction struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Title       string    `gorm:"size:255;not null" json:"title"`
	Amount      float64   `gorm:"not null" json:"amount"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	Description string    `json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`

	// Nullable so that transaction history survives deletion of its author.
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	Creator   *User      `gorm:"foreignKey:CreatedBy;constraint:OnDelete:SET NULL" json:"creator,omitempty"`
}

const (
	MessageUnread   = "unread"
	MessageRead     = "read"
	MessageArchived = "archived"
)

type Message struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:254;not null" json:"email"`
	Subject string `gorm:"size:255;not null" json:"subject"`
	Body    string `gorm:"not null" json:"body"`

	Status string `gorm:"size:20;not null;default:'unread'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// AuditLog rows are append-only. UserId is nil for system initiated actions
// and is nulled if the actor is later deleted.
type AuditLog struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	UserId *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User   *User      `gorm:"constraint:OnDelete:SET NULL" json:"user,omitempty"`

	Action      string `gorm:"size:100;not null;index" json:"action"`
	Description string `json:"description"`

	CreatedAt time.Time `json:"created_at"`
}

type AppSetting struct {
	Key   string `gorm:"size:100;primaryKey" json:"key"`
	Value string `json:"value"`
}

func AllTables() []interface{} {
	return []interface{}{
		&Role{}, &RolePermission{}, &Division{}, &User{},
		&Proker{}, &ProkerAnggota{}, &ProkerMedia{},
		&Transaction{}, &Message{}, &AuditLog{}, &AppSetting{},
	}
}
