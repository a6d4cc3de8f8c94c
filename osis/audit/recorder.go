// Package audit provides the durable, append-only trail of mutating actions.
package audit

import (
	"log/slog"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one audit row. Callers invoke it after their business
// transaction commits; a failed audit write is logged and swallowed so it can
// never roll back or block the mutation it describes. actorId is nil for
// system initiated actions.
func (rec *Recorder) Record(actorId *uuid.UUID, action, description string) {
	entry := schema.AuditLog{
		Id:          uuid.New(),
		UserId:      actorId,
		Action:      action,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	result := rec.db.Create(&entry)
	if result.Error != nil {
		slog.Error("audit write failed", "action", action, "error", result.Error)
	}
}
