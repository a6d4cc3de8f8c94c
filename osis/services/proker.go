package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProkerService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
	storage  storage.Storage
}

func (s *ProkerService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/gallery", s.Gallery)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.With(auth.RequirePermission(schema.ModuleProkers, auth.ActionView)).Get("/", s.List)
		r.With(auth.RequirePermission(schema.ModuleProkers, auth.ActionCreate)).Post("/", s.Create)

		r.Route("/{proker_id}", func(r chi.Router) {
			r.With(auth.RequirePermission(schema.ModuleProkers, auth.ActionView)).Get("/", s.Show)
			r.With(auth.RequirePermission(schema.ModuleProkers, auth.ActionEdit)).Post("/", s.Update)
			r.With(auth.RequirePermission(schema.ModuleProkers, auth.ActionDelete)).Delete("/", s.Delete)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(schema.ModuleProkers, auth.ActionEdit))

				r.Post("/anggota", s.AddAnggota)
				r.Delete("/anggota/{anggota_id}", s.RemoveAnggota)

				r.With(checkSufficientStorage(s.storage)).Post("/media", s.UploadMedia)
				r.Post("/media/url", s.AddMediaUrl)
				r.Delete("/media/{media_id}", s.RemoveMedia)
			})
		})
	})

	return r
}

func (s *ProkerService) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := parsePagination(r)

	query := s.db.Model(&schema.Proker{}).Preload("Divisions")

	if search := r.URL.Query().Get("search"); search != "" {
		pattern := likePattern(search)
		query = query.Where("lower(title) LIKE ? OR lower(description) LIKE ?", pattern, pattern)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if divisionId := r.URL.Query().Get("division_id"); divisionId != "" {
		query = query.Where("id IN (SELECT proker_id FROM proker_divisions WHERE division_id = ?)", divisionId)
	}

	var prokers []schema.Proker
	pagination, err := paginate(query.Order("date desc"), page, perPage, &prokers)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing prokers: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, ListResponse{Data: prokers, Pagination: pagination})
}

func (s *ProkerService) Show(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	proker, err := schema.GetProker(prokerId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrProkerNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("error loading proker: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, proker)
}

type prokerRequest struct {
	Title       string      `json:"title" validate:"required,max=255"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date" validate:"required"`
	Location    string      `json:"location" validate:"omitempty,max=255"`
	Status      string      `json:"status" validate:"omitempty,oneof=planned ongoing done"`
	DivisionIds []uuid.UUID `json:"division_ids"`
}

type prokerResponse struct {
	Message string        `json:"message"`
	Data    schema.Proker `json:"data"`
}

func (s *ProkerService) Create(w http.ResponseWriter, r *http.Request) {
	var params prokerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	status := params.Status
	if status == "" {
		status = schema.ProkerPlanned
	}

	prokerId := uuid.New()

	err := s.db.Transaction(func(txn *gorm.DB) error {
		proker := schema.Proker{
			Id:          prokerId,
			Title:       params.Title,
			Description: params.Description,
			Date:        params.Date,
			Location:    params.Location,
			Status:      status,
		}

		result := txn.Create(&proker)
		if result.Error != nil {
			slog.Error("sql error creating new proker", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return syncProkerDivisions(txn, &proker, params.DivisionIds)
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating proker: %v", err), GetResponseCode(err))
		return
	}

	created, err := schema.GetProker(prokerId, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading created proker: %v", err), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "create_proker", fmt.Sprintf("created proker '%v'", created.Title))

	utils.WriteJsonResponse(w, prokerResponse{Message: "proker created successfully", Data: created})
}

type updateProkerRequest struct {
	Title       *string      `json:"title" validate:"omitempty,max=255"`
	Description *string      `json:"description"`
	Date        *time.Time   `json:"date"`
	Location    *string      `json:"location" validate:"omitempty,max=255"`
	Status      *string      `json:"status" validate:"omitempty,oneof=planned ongoing done"`
	DivisionIds *[]uuid.UUID `json:"division_ids"`
}

func (s *ProkerService) Update(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateProkerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var proker schema.Proker
		result := txn.First(&proker, "id = ?", prokerId)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return CodedError(schema.ErrProkerNotFound, http.StatusNotFound)
			}
			slog.Error("sql error loading proker for update", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if params.Title != nil {
			proker.Title = *params.Title
		}
		if params.Description != nil {
			proker.Description = *params.Description
		}
		if params.Date != nil {
			proker.Date = *params.Date
		}
		if params.Location != nil {
			proker.Location = *params.Location
		}
		if params.Status != nil {
			proker.Status = *params.Status
		}

		result = txn.Save(&proker)
		if result.Error != nil {
			slog.Error("sql error updating proker", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if params.DivisionIds != nil {
			return syncProkerDivisions(txn, &proker, *params.DivisionIds)
		}
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating proker: %v", err), GetResponseCode(err))
		return
	}

	updated, err := schema.GetProker(prokerId, s.db)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading updated proker: %v", err), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "update_proker", fmt.Sprintf("updated proker '%v'", updated.Title))

	utils.WriteJsonResponse(w, prokerResponse{Message: "proker updated successfully", Data: updated})
}

// syncProkerDivisions replaces the proker's division set with exactly the
// given ids. Every id must name an existing division.
func syncProkerDivisions(txn *gorm.DB, proker *schema.Proker, divisionIds []uuid.UUID) error {
	divisions := make([]schema.Division, 0, len(divisionIds))
	if len(divisionIds) > 0 {
		result := txn.Find(&divisions, "id IN ?", divisionIds)
		if result.Error != nil {
			slog.Error("sql error loading divisions for proker sync", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if len(divisions) != len(divisionIds) {
			return CodedError(schema.ErrDivisionNotFound, http.StatusNotFound)
		}
	}

	err := txn.Model(proker).Association("Divisions").Replace(divisions)
	if err != nil {
		slog.Error("sql error replacing proker divisions", "proker_id", proker.Id, "error", err)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return nil
}

func (s *ProkerService) Delete(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedTitle string
	var media []schema.ProkerMedia

	err = s.db.Transaction(func(txn *gorm.DB) error {
		proker, err := schema.GetProker(prokerId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrProkerNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedTitle = proker.Title
		media = proker.Media

		result := txn.Where("proker_id = ?", prokerId).Delete(&schema.ProkerAnggota{})
		if result.Error != nil {
			slog.Error("sql error deleting proker anggota", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Where("proker_id = ?", prokerId).Delete(&schema.ProkerMedia{})
		if result.Error != nil {
			slog.Error("sql error deleting proker media rows", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Exec("DELETE FROM proker_divisions WHERE proker_id = ?", prokerId)
		if result.Error != nil {
			slog.Error("sql error detaching divisions from proker", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Proker{Id: prokerId})
		if result.Error != nil {
			slog.Error("sql error deleting proker", "proker_id", prokerId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting proker: %v", err), GetResponseCode(err))
		return
	}

	for _, m := range media {
		deleteLocalMediaFile(s.storage, m.MediaUrl)
	}

	s.audit.Record(auth.ActorId(r), "delete_proker", fmt.Sprintf("deleted proker '%v'", deletedTitle))

	utils.WriteSuccess(w)
}

type addAnggotaRequest struct {
	UserId     uuid.UUID  `json:"user_id" validate:"required"`
	Role       string     `json:"role" validate:"omitempty,max=100"`
	DivisionId *uuid.UUID `json:"division_id"`
}

func (s *ProkerService) AddAnggota(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addAnggotaRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	anggota := schema.ProkerAnggota{
		Id:         uuid.New(),
		ProkerId:   prokerId,
		UserId:     params.UserId,
		Role:       params.Role,
		DivisionId: params.DivisionId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProkerExists(txn, prokerId); err != nil {
			return err
		}
		if err := checkUserExists(txn, params.UserId); err != nil {
			return err
		}
		if params.DivisionId != nil {
			if err := checkDivisionExists(txn, *params.DivisionId); err != nil {
				return err
			}
		}

		var existing schema.ProkerAnggota
		result := txn.Limit(1).Find(&existing, "proker_id = ? AND user_id = ?", prokerId, params.UserId)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate anggota", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user %v is already anggota of this proker", params.UserId), http.StatusConflict)
		}

		result = txn.Create(&anggota)
		if result.Error != nil {
			slog.Error("sql error creating proker anggota", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding anggota: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "add_proker_anggota", fmt.Sprintf("added user %v to proker %v", params.UserId, prokerId))

	utils.WriteJsonResponse(w, anggota)
}

func (s *ProkerService) RemoveAnggota(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	anggotaId, err := utils.URLParamUUID(r, "anggota_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var anggota schema.ProkerAnggota
		result := txn.Limit(1).Find(&anggota, "id = ? AND proker_id = ?", anggotaId, prokerId)
		if result.Error != nil {
			slog.Error("sql error loading anggota", "anggota_id", anggotaId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrAnggotaNotFound, http.StatusNotFound)
		}

		result = txn.Delete(&schema.ProkerAnggota{Id: anggotaId})
		if result.Error != nil {
			slog.Error("sql error deleting anggota", "anggota_id", anggotaId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing anggota: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "remove_proker_anggota", fmt.Sprintf("removed anggota %v from proker %v", anggotaId, prokerId))

	utils.WriteSuccess(w)
}

const maxMediaUploadBytes = 10 * 1024 * 1024

var imageExtensions = map[string]bool{"jpeg": true, "jpg": true, "png": true, "gif": true, "webp": true}
var videoExtensions = map[string]bool{"mp4": true, "mov": true, "avi": true}

const localMediaPrefix = "/uploads/"

func (s *ProkerService) UploadMedia(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMediaUploadBytes+512*1024)
	if err := r.ParseMultipartForm(maxMediaUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("error parsing multipart form: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("missing 'file' field in multipart form: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxMediaUploadBytes {
		http.Error(w, fmt.Sprintf("file exceeds maximum size of %v bytes", maxMediaUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	var mediaType string
	switch {
	case imageExtensions[ext]:
		mediaType = schema.MediaImage
	case videoExtensions[ext]:
		mediaType = schema.MediaVideo
	default:
		http.Error(w, fmt.Sprintf("unsupported media file extension '%v'", ext), http.StatusUnprocessableEntity)
		return
	}

	if err := checkProkerExists(s.db, prokerId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	mediaId := uuid.New()
	path := filepath.Join("prokers", prokerId.String(), fmt.Sprintf("%v.%v", mediaId, ext))

	// The file is written before the row so that a failed write can never
	// leave a media row pointing at nothing.
	if err := s.storage.Write(path, file); err != nil {
		slog.Error("error writing media file", "path", path, "error", err)
		http.Error(w, "error storing media file", http.StatusInternalServerError)
		return
	}

	media := schema.ProkerMedia{
		Id:        mediaId,
		ProkerId:  prokerId,
		MediaType: mediaType,
		MediaUrl:  localMediaPrefix + filepath.ToSlash(path),
		Caption:   r.FormValue("caption"),
		CreatedAt: time.Now().UTC(),
	}

	result := s.db.Create(&media)
	if result.Error != nil {
		slog.Error("sql error creating media row", "proker_id", prokerId, "error", result.Error)
		if err := s.storage.Delete(path); err != nil {
			slog.Error("error removing orphaned media file", "path", path, "error", err)
		}
		http.Error(w, fmt.Sprintf("error saving media: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "upload_proker_media", fmt.Sprintf("uploaded %v media to proker %v", mediaType, prokerId))

	utils.WriteJsonResponse(w, media)
}

type addMediaUrlRequest struct {
	MediaType string `json:"media_type" validate:"required,oneof=image video"`
	MediaUrl  string `json:"media_url" validate:"required,url,max=500"`
	Caption   string `json:"caption"`
}

func (s *ProkerService) AddMediaUrl(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addMediaUrlRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	if err := checkProkerExists(s.db, prokerId); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	media := schema.ProkerMedia{
		Id:        uuid.New(),
		ProkerId:  prokerId,
		MediaType: params.MediaType,
		MediaUrl:  params.MediaUrl,
		Caption:   params.Caption,
		CreatedAt: time.Now().UTC(),
	}

	result := s.db.Create(&media)
	if result.Error != nil {
		slog.Error("sql error creating media url row", "proker_id", prokerId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error saving media: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	s.audit.Record(auth.ActorId(r), "upload_proker_media", fmt.Sprintf("linked external %v media to proker %v", params.MediaType, prokerId))

	utils.WriteJsonResponse(w, media)
}

func (s *ProkerService) RemoveMedia(w http.ResponseWriter, r *http.Request) {
	prokerId, err := utils.URLParamUUID(r, "proker_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mediaId, err := utils.URLParamUUID(r, "media_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var mediaUrl string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		var media schema.ProkerMedia
		result := txn.Limit(1).Find(&media, "id = ? AND proker_id = ?", mediaId, prokerId)
		if result.Error != nil {
			slog.Error("sql error loading media", "media_id", mediaId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(schema.ErrMediaNotFound, http.StatusNotFound)
		}
		mediaUrl = media.MediaUrl

		result = txn.Delete(&schema.ProkerMedia{Id: mediaId})
		if result.Error != nil {
			slog.Error("sql error deleting media row", "media_id", mediaId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing media: %v", err), GetResponseCode(err))
		return
	}

	deleteLocalMediaFile(s.storage, mediaUrl)

	s.audit.Record(auth.ActorId(r), "delete_proker_media", fmt.Sprintf("removed media %v from proker %v", mediaId, prokerId))

	utils.WriteSuccess(w)
}

// deleteLocalMediaFile removes the backing file for locally stored media.
// External urls are left alone. The delete is idempotent, a file that is
// already gone is not an error.
func deleteLocalMediaFile(store storage.Storage, mediaUrl string) {
	if !strings.HasPrefix(mediaUrl, localMediaPrefix) {
		return
	}
	path := strings.TrimPrefix(mediaUrl, localMediaPrefix)
	if err := store.Delete(path); err != nil {
		slog.Error("error deleting media file", "path", path, "error", err)
	}
}

type GalleryItem struct {
	Id          uuid.UUID `json:"id"`
	ProkerId    uuid.UUID `json:"proker_id"`
	ProkerTitle string    `json:"proker_title"`
	MediaType   string    `json:"media_type"`
	MediaUrl    string    `json:"media_url"`
	Caption     string    `json:"caption"`
	CreatedAt   time.Time `json:"created_at"`
}

// Gallery is the public endpoint behind the landing page: media belonging to
// completed prokers only.
func (s *ProkerService) Gallery(w http.ResponseWriter, r *http.Request) {
	var prokers []schema.Proker
	result := s.db.Find(&prokers, "status = ?", schema.ProkerDone)
	if result.Error != nil {
		slog.Error("sql error listing completed prokers", "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading gallery: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	titles := make(map[uuid.UUID]string, len(prokers))
	ids := make([]uuid.UUID, 0, len(prokers))
	for _, proker := range prokers {
		titles[proker.Id] = proker.Title
		ids = append(ids, proker.Id)
	}

	items := make([]GalleryItem, 0)
	if len(ids) > 0 {
		var media []schema.ProkerMedia
		result = s.db.Where("proker_id IN ?", ids).Order("created_at desc").Find(&media)
		if result.Error != nil {
			slog.Error("sql error listing gallery media", "error", result.Error)
			http.Error(w, fmt.Sprintf("error loading gallery: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}

		for _, m := range media {
			items = append(items, GalleryItem{
				Id:          m.Id,
				ProkerId:    m.ProkerId,
				ProkerTitle: titles[m.ProkerId],
				MediaType:   m.MediaType,
				MediaUrl:    m.MediaUrl,
				Caption:     m.Caption,
				CreatedAt:   m.CreatedAt,
			})
		}
	}

	utils.WriteJsonResponse(w, items)
}
