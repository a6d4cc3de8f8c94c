package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type DashboardService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *DashboardService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.RequirePermission(schema.ModuleDashboard, auth.ActionView)).Get("/", s.Summary)

	return r
}

type DashboardSummary struct {
	TotalUsers     int64 `json:"total_users"`
	TotalDivisions int64 `json:"total_divisions"`

	ProkersPlanned int64 `json:"prokers_planned"`
	ProkersOngoing int64 `json:"prokers_ongoing"`
	ProkersDone    int64 `json:"prokers_done"`

	UnreadMessages int64 `json:"unread_messages"`

	Balance float64 `json:"balance"`
}

func (s *DashboardService) Summary(w http.ResponseWriter, r *http.Request) {
	var summary DashboardSummary

	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{s.db.Model(&schema.User{}), &summary.TotalUsers},
		{s.db.Model(&schema.Division{}), &summary.TotalDivisions},
		{s.db.Model(&schema.Proker{}).Where("status = ?", schema.ProkerPlanned), &summary.ProkersPlanned},
		{s.db.Model(&schema.Proker{}).Where("status = ?", schema.ProkerOngoing), &summary.ProkersOngoing},
		{s.db.Model(&schema.Proker{}).Where("status = ?", schema.ProkerDone), &summary.ProkersDone},
		{s.db.Model(&schema.Message{}).Where("status = ?", schema.MessageUnread), &summary.UnreadMessages},
	}

	for _, count := range counts {
		result := count.query.Count(count.dest)
		if result.Error != nil {
			slog.Error("sql error computing dashboard summary", "error", result.Error)
			http.Error(w, fmt.Sprintf("error computing dashboard summary: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
	}

	var income, expense float64
	if err := sumByType(s.db, schema.TransactionIncome, &income); err != nil {
		http.Error(w, fmt.Sprintf("error computing dashboard summary: %v", err), http.StatusInternalServerError)
		return
	}
	if err := sumByType(s.db, schema.TransactionExpense, &expense); err != nil {
		http.Error(w, fmt.Sprintf("error computing dashboard summary: %v", err), http.StatusInternalServerError)
		return
	}
	summary.Balance = income - expense

	utils.WriteJsonResponse(w, summary)
}
