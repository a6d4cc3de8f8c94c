package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *MessageService) Routes() chi.Router {
	r := chi.NewRouter()

	// The contact form on the public site posts here without authentication.
	r.Post("/", s.Create)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(schema.ModuleMessages, auth.ActionView))

			r.Get("/", s.List)
			r.Get("/statistics", s.Statistics)
			r.Get("/{message_id}", s.Show)
		})

		r.With(auth.RequirePermission(schema.ModuleMessages, auth.ActionEdit)).Post("/{message_id}/status", s.UpdateStatus)
		r.With(auth.RequirePermission(schema.ModuleMessages, auth.ActionDelete)).Delete("/{message_id}", s.Delete)
	})

	return r
}

type createMessageRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
}

func (s *MessageService) Create(w http.ResponseWriter, r *http.Request) {
	var params createMessageRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	message := schema.Message{
		Id:        uuid.New(),
		Name:      params.Name,
		Email:     params.Email,
		Subject:   params.Subject,
		Body:      params.Body,
		Status:    schema.MessageUnread,
		CreatedAt: time.Now().UTC(),
	}

	result := s.db.Create(&message)
	if result.Error != nil {
		slog.Error("sql error creating message", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating message: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.audit.Record(nil, "create_message", fmt.Sprintf("received message '%v' from %v", message.Subject, message.Email))

	utils.WriteJsonResponse(w, map[string]string{"message": "message sent successfully"})
}

func (s *MessageService) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	query := s.db.Model(&schema.Message{})

	if search := r.URL.Query().Get("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where(
			"lower(name) LIKE ? OR lower(email) LIKE ? OR lower(subject) LIKE ? OR lower(body) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var messages []schema.Message
	pagination, err := paginate(query.Order("created_at desc"), page, perPage, &messages)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing messages: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, ListResponse{Data: messages, Pagination: pagination})
}

// Show returns a message and transitions it from unread to read on first
// view. The transition happens at most once, so the read_message audit entry
// is recorded exactly once per message.
func (s *MessageService) Show(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var message schema.Message
	firstRead := false

	err = s.db.Transaction(func(txn *gorm.DB) error {
		message, err = schema.GetMessage(messageId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMessageNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if message.Status != schema.MessageUnread {
			return nil
		}

		result := txn.Model(&schema.Message{Id: messageId}).
			Where("status = ?", schema.MessageUnread).
			Update("status", schema.MessageRead)
		if result.Error != nil {
			slog.Error("sql error marking message as read", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		firstRead = result.RowsAffected != 0
		if firstRead {
			message.Status = schema.MessageRead
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error loading message: %v", err), GetResponseCode(err))
		return
	}

	if firstRead {
		s.audit.Record(auth.ActorId(r), "read_message", fmt.Sprintf("read message '%v'", message.Subject))
	}

	utils.WriteJsonResponse(w, message)
}

type updateMessageStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=unread read archived"`
}

func (s *MessageService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateMessageStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	var updated schema.Message

	err = s.db.Transaction(func(txn *gorm.DB) error {
		message, err := schema.GetMessage(messageId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMessageNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		// Archived is terminal: an archived message can only be deleted.
		if message.Status == schema.MessageArchived && params.Status != schema.MessageArchived {
			return CodedError(errors.New("archived messages cannot be restored"), http.StatusUnprocessableEntity)
		}

		message.Status = params.Status

		result := txn.Save(&message)
		if result.Error != nil {
			slog.Error("sql error updating message status", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = message
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating message status: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_message_status", fmt.Sprintf("set message '%v' status to %v", updated.Subject, updated.Status))

	utils.WriteJsonResponse(w, updated)
}

func (s *MessageService) Delete(w http.ResponseWriter, r *http.Request) {
	messageId, err := utils.URLParamUUID(r, "message_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedSubject string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		message, err := schema.GetMessage(messageId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrMessageNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedSubject = message.Subject

		result := txn.Delete(&schema.Message{Id: messageId})
		if result.Error != nil {
			slog.Error("sql error deleting message", "message_id", messageId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting message: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "delete_message", fmt.Sprintf("deleted message '%v'", deletedSubject))

	utils.WriteSuccess(w)
}

type MessageStatistics struct {
	Total    int64 `json:"total"`
	Unread   int64 `json:"unread"`
	Read     int64 `json:"read"`
	Archived int64 `json:"archived"`
}

func (s *MessageService) Statistics(w http.ResponseWriter, r *http.Request) {
	var stats MessageStatistics

	counts := []struct {
		status string
		dest   *int64
	}{
		{schema.MessageUnread, &stats.Unread},
		{schema.MessageRead, &stats.Read},
		{schema.MessageArchived, &stats.Archived},
	}

	for _, count := range counts {
		result := s.db.Model(&schema.Message{}).Where("status = ?", count.status).Count(count.dest)
		if result.Error != nil {
			slog.Error("sql error counting messages", "status", count.status, "error", result.Error)
			http.Error(w, fmt.Sprintf("error computing message statistics: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
	}

	stats.Total = stats.Unread + stats.Read + stats.Archived

	utils.WriteJsonResponse(w, stats)
}
