package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type validationErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// validateRequest checks struct tag validation rules and writes a per field
// error map on failure.
func validateRequest(w http.ResponseWriter, params interface{}) bool {
	err := validate.Struct(params)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		http.Error(w, fmt.Sprintf("error validating request body: %v", err), http.StatusBadRequest)
		return false
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fmt.Sprintf("field failed validation rule '%v'", fe.Tag())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	encodeErr := json.NewEncoder(w).Encode(validationErrorResponse{Message: "validation failed", Errors: fields})
	if encodeErr != nil {
		slog.Error("error serializing validation error response", "error", encodeErr)
	}

	return false
}

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type ListResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	if value := r.URL.Query().Get("page"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			page = parsed
		}
	}

	perPage := defaultPerPage
	if value := r.URL.Query().Get("per_page"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			perPage = min(parsed, maxPerPage)
		}
	}

	return page, perPage
}

// paginate counts the filtered query, applies offset/limit, and loads the page
// into dest. dest must be a pointer to a slice of models.
func paginate(query *gorm.DB, page, perPage int, dest interface{}) (Pagination, error) {
	var total int64
	if result := query.Count(&total); result.Error != nil {
		slog.Error("sql error counting paginated query", "error", result.Error)
		return Pagination{}, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result := query.Offset((page - 1) * perPage).Limit(perPage).Find(dest)
	if result.Error != nil {
		slog.Error("sql error loading paginated query", "error", result.Error)
		return Pagination{}, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))

	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}, nil
}

func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}

func parseDateParam(r *http.Request, key string) (time.Time, bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, false, nil
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date '%v' for parameter %v, expected YYYY-MM-DD", value, key)
	}
	return date, true, nil
}

func checkDivisionExists(txn *gorm.DB, divisionId uuid.UUID) error {
	if _, err := schema.GetDivision(divisionId, txn); err != nil {
		if errors.Is(err, schema.ErrDivisionNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkRoleExists(txn *gorm.DB, roleId uuid.UUID) error {
	if _, err := schema.GetRole(roleId, txn); err != nil {
		if errors.Is(err, schema.ErrRoleNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkProkerExists(txn *gorm.DB, prokerId uuid.UUID) error {
	var proker schema.Proker
	result := txn.Limit(1).Find(&proker, "id = ?", prokerId)
	if result.Error != nil {
		slog.Error("sql error checking proker exists", "proker_id", prokerId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return CodedError(schema.ErrProkerNotFound, http.StatusNotFound)
	}
	return nil
}

func checkDiskUsage(store storage.Storage) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to get disk usage from media storage", "error", err)
		return CodedError(errors.New("unable to get disk usage"), http.StatusInternalServerError)
	}
	oneMib := uint64(1024 * 1024)
	// Either 10% of the disk needs to be free or 2Gb (in case the disk is very large)
	threshold := min(stats.TotalBytes/10, 2*1024*oneMib)
	if stats.FreeBytes < threshold {
		used := (stats.TotalBytes - stats.FreeBytes) / oneMib
		total := stats.TotalBytes / oneMib
		delta := (threshold - stats.FreeBytes) / oneMib
		return CodedError(fmt.Errorf("insufficient disk space available, usage: %d/%d Mib, please clear %d Mib", used, total, delta), http.StatusInsufficientStorage)
	}
	return nil
}

func checkSufficientStorage(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store); err != nil {
				slog.Error(err.Error())
				http.Error(w, err.Error(), GetResponseCode(err))
				return
			}
			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(handler)
	}
}
