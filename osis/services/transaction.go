package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *TransactionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePermission(schema.ModuleTransactions, auth.ActionView))

		r.Get("/", s.List)
		r.Get("/statistics", s.Statistics)
		r.Get("/monthly", s.Monthly)
		r.Get("/{transaction_id}", s.Show)
	})

	r.With(auth.RequirePermission(schema.ModuleTransactions, auth.ActionCreate)).Post("/", s.Create)
	r.With(auth.RequirePermission(schema.ModuleTransactions, auth.ActionEdit)).Post("/{transaction_id}", s.Update)
	r.With(auth.RequirePermission(schema.ModuleTransactions, auth.ActionDelete)).Delete("/{transaction_id}", s.Delete)

	return r
}

func (s *TransactionService) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	query := s.db.Model(&schema.Transaction{}).Preload("Creator")

	if search := r.URL.Query().Get("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("lower(title) LIKE ? OR lower(description) LIKE ?", pattern, pattern)
	}
	if txnType := r.URL.Query().Get("type"); txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	startDate, hasStart, err := parseDateParam(r, "start_date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if hasStart {
		query = query.Where("date >= ?", startDate)
	}

	endDate, hasEnd, err := parseDateParam(r, "end_date")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if hasEnd {
		query = query.Where("date < ?", endDate.AddDate(0, 0, 1))
	}

	var transactions []schema.Transaction
	pagination, err := paginate(query.Order("date desc"), page, perPage, &transactions)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing transactions: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, ListResponse{Data: transactions, Pagination: pagination})
}

func (s *TransactionService) Show(w http.ResponseWriter, r *http.Request) {
	transactionId, err := utils.URLParamUUID(r, "transaction_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transaction, err := schema.GetTransaction(transactionId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTransactionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error loading transaction: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, transaction)
}

type transactionRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Amount      float64   `json:"amount" validate:"required,gte=0"`
	Type        string    `json:"type" validate:"required,oneof=income expense"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" validate:"required"`
}

type transactionResponse struct {
	Message string             `json:"message"`
	Data    schema.Transaction `json:"data"`
}

func (s *TransactionService) Create(w http.ResponseWriter, r *http.Request) {
	var params transactionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	transaction := schema.Transaction{
		Id:          uuid.New(),
		Title:       params.Title,
		Amount:      params.Amount,
		Type:        params.Type,
		Description: params.Description,
		Date:        params.Date,
		CreatedBy:   auth.ActorId(r),
	}

	result := s.db.Create(&transaction)
	if result.Error != nil {
		slog.Error("sql error creating new transaction", "error", result.Error)
		http.Error(w, fmt.Sprintf("error creating transaction: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "create_transaction", fmt.Sprintf("created %v transaction '%v'", transaction.Type, transaction.Title))

	utils.WriteJsonResponse(w, transactionResponse{Message: "transaction created successfully", Data: transaction})
}

type updateTransactionRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=255"`
	Amount      *float64   `json:"amount" validate:"omitempty,gte=0"`
	Type        *string    `json:"type" validate:"omitempty,oneof=income expense"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
}

func (s *TransactionService) Update(w http.ResponseWriter, r *http.Request) {
	transactionId, err := utils.URLParamUUID(r, "transaction_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateTransactionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	var updated schema.Transaction

	err = s.db.Transaction(func(txn *gorm.DB) error {
		transaction, err := schema.GetTransaction(transactionId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTransactionNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Title != nil {
			transaction.Title = *params.Title
		}
		if params.Amount != nil {
			transaction.Amount = *params.Amount
		}
		if params.Type != nil {
			transaction.Type = *params.Type
		}
		if params.Description != nil {
			transaction.Description = *params.Description
		}
		if params.Date != nil {
			transaction.Date = *params.Date
		}

		transaction.Creator = nil

		result := txn.Save(&transaction)
		if result.Error != nil {
			slog.Error("sql error updating transaction", "transaction_id", transactionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = transaction
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating transaction: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_transaction", fmt.Sprintf("updated transaction '%v'", updated.Title))

	utils.WriteJsonResponse(w, transactionResponse{Message: "transaction updated successfully", Data: updated})
}

func (s *TransactionService) Delete(w http.ResponseWriter, r *http.Request) {
	transactionId, err := utils.URLParamUUID(r, "transaction_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedTitle string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		transaction, err := schema.GetTransaction(transactionId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTransactionNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedTitle = transaction.Title

		result := txn.Delete(&schema.Transaction{Id: transactionId})
		if result.Error != nil {
			slog.Error("sql error deleting transaction", "transaction_id", transactionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting transaction: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "delete_transaction", fmt.Sprintf("deleted transaction '%v'", deletedTitle))

	utils.WriteSuccess(w)
}

type TransactionStatistics struct {
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Balance      float64 `json:"balance"`
	Count        int64   `json:"count"`
}

func (s *TransactionService) Statistics(w http.ResponseWriter, r *http.Request) {
	var stats TransactionStatistics

	err := sumByType(s.db, schema.TransactionIncome, &stats.TotalIncome)
	if err == nil {
		err = sumByType(s.db, schema.TransactionExpense, &stats.TotalExpense)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("error computing transaction statistics: %v", err), http.StatusInternalServerError)
		return
	}

	result := s.db.Model(&schema.Transaction{}).Count(&stats.Count)
	if result.Error != nil {
		slog.Error("sql error counting transactions", "error", result.Error)
		http.Error(w, fmt.Sprintf("error computing transaction statistics: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	stats.Balance = stats.TotalIncome - stats.TotalExpense

	utils.WriteJsonResponse(w, stats)
}

func sumByType(db *gorm.DB, txnType string, dest *float64) error {
	result := db.Model(&schema.Transaction{}).
		Where("type = ?", txnType).
		Select("coalesce(sum(amount), 0)").
		Scan(dest)
	if result.Error != nil {
		slog.Error("sql error summing transactions", "type", txnType, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

type MonthlyAggregate struct {
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Monthly returns income/expense totals per month for one year. The grouping
// happens in Go so the query stays portable across postgres and sqlite.
func (s *TransactionService) Monthly(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if value := r.URL.Query().Get("year"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid year '%v'", value), http.StatusBadRequest)
			return
		}
		year = parsed
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var transactions []schema.Transaction
	result := s.db.Where("date >= ? AND date < ?", start, end).Find(&transactions)
	if result.Error != nil {
		slog.Error("sql error listing transactions for monthly aggregates", "year", year, "error", result.Error)
		http.Error(w, fmt.Sprintf("error computing monthly aggregates: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	months := make([]MonthlyAggregate, 12)
	for i := range months {
		months[i].Month = i + 1
	}

	for _, transaction := range transactions {
		bucket := &months[int(transaction.Date.Month())-1]
		switch transaction.Type {
		case schema.TransactionIncome:
			bucket.Income += transaction.Amount
		case schema.TransactionExpense:
			bucket.Expense += transaction.Amount
		}
	}

	utils.WriteJsonResponse(w, months)
}
