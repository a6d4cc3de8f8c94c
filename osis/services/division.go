package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/claveora/OSIS-Integrated-Administration/osis/audit"
	"github.com/claveora/OSIS-Integrated-Administration/osis/auth"
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DivisionService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
	audit    *audit.Recorder
}

func (s *DivisionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.With(auth.RequirePermission(schema.ModuleDivisions, auth.ActionView)).Get("/", s.List)
	r.With(auth.RequirePermission(schema.ModuleDivisions, auth.ActionCreate)).Post("/", s.Create)

	r.Route("/{division_id}", func(r chi.Router) {
		r.With(auth.RequirePermission(schema.ModuleDivisions, auth.ActionView)).Get("/", s.Show)
		r.With(auth.RequirePermission(schema.ModuleDivisions, auth.ActionEdit)).Post("/", s.Update)
		r.With(auth.RequirePermission(schema.ModuleDivisions, auth.ActionDelete)).Delete("/", s.Delete)
	})

	return r
}

type DivisionInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserCount   int64     `json:"user_count"`
	ProkerCount int64     `json:"proker_count"`
}

func (s *DivisionService) List(w http.ResponseWriter, r *http.Request) {
	var divisions []schema.Division
	result := s.db.Order("name asc").Find(&divisions)
	if result.Error != nil {
		slog.Error("sql error listing divisions", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing divisions: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	type countRow struct {
		DivisionId uuid.UUID
		Total      int64
	}

	userCounts := map[uuid.UUID]int64{}
	var userRows []countRow
	result = s.db.Model(&schema.User{}).
		Select("division_id, count(*) as total").
		Where("division_id IS NOT NULL").
		Group("division_id").
		Scan(&userRows)
	if result.Error != nil {
		slog.Error("sql error counting division members", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing divisions: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	for _, row := range userRows {
		userCounts[row.DivisionId] = row.Total
	}

	prokerCounts := map[uuid.UUID]int64{}
	var prokerRows []countRow
	result = s.db.Table("proker_divisions").
		Select("division_id, count(*) as total").
		Group("division_id").
		Scan(&prokerRows)
	if result.Error != nil {
		slog.Error("sql error counting division prokers", "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing divisions: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	for _, row := range prokerRows {
		prokerCounts[row.DivisionId] = row.Total
	}

	infos := make([]DivisionInfo, 0, len(divisions))
	for _, division := range divisions {
		infos = append(infos, DivisionInfo{
			Id:          division.Id,
			Name:        division.Name,
			Description: division.Description,
			UserCount:   userCounts[division.Id],
			ProkerCount: prokerCounts[division.Id],
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *DivisionService) Show(w http.ResponseWriter, r *http.Request) {
	divisionId, err := utils.URLParamUUID(r, "division_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var division schema.Division
	result := s.db.Preload("Users").Preload("Prokers").First(&division, "id = ?", divisionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			http.Error(w, schema.ErrDivisionNotFound.Error(), http.StatusNotFound)
			return
		}
		slog.Error("sql error loading division", "division_id", divisionId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error loading division: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, division)
}

type divisionRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

type divisionResponse struct {
	Message string          `json:"message"`
	Data    schema.Division `json:"data"`
}

func (s *DivisionService) Create(w http.ResponseWriter, r *http.Request) {
	var params divisionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	newDivision := schema.Division{Id: uuid.New(), Name: params.Name, Description: params.Description}

	err := s.db.Transaction(func(txn *gorm.DB) error {
		var existing schema.Division
		result := txn.Limit(1).Find(&existing, "name = ?", params.Name)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate division name", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("division with name %v already exists", params.Name), http.StatusConflict)
		}

		result = txn.Create(&newDivision)
		if result.Error != nil {
			slog.Error("sql error creating new division", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating division: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "create_division", fmt.Sprintf("created division '%v'", newDivision.Name))

	utils.WriteJsonResponse(w, divisionResponse{Message: "division created successfully", Data: newDivision})
}

type updateDivisionRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
}

func (s *DivisionService) Update(w http.ResponseWriter, r *http.Request) {
	divisionId, err := utils.URLParamUUID(r, "division_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateDivisionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if !validateRequest(w, params) {
		return
	}

	var updated schema.Division

	err = s.db.Transaction(func(txn *gorm.DB) error {
		division, err := schema.GetDivision(divisionId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrDivisionNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if params.Name != nil {
			division.Name = *params.Name
		}
		if params.Description != nil {
			division.Description = *params.Description
		}

		result := txn.Save(&division)
		if result.Error != nil {
			slog.Error("sql error updating division", "division_id", divisionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		updated = division
		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating division: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "update_division", fmt.Sprintf("updated division '%v'", updated.Name))

	utils.WriteJsonResponse(w, divisionResponse{Message: "division updated successfully", Data: updated})
}

func (s *DivisionService) Delete(w http.ResponseWriter, r *http.Request) {
	divisionId, err := utils.URLParamUUID(r, "division_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var deletedName string

	err = s.db.Transaction(func(txn *gorm.DB) error {
		division, err := schema.GetDivision(divisionId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrDivisionNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		deletedName = division.Name

		result := txn.Model(&schema.User{}).Where("division_id = ?", divisionId).Update("division_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching users from division", "division_id", divisionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Model(&schema.ProkerAnggota{}).Where("division_id = ?", divisionId).Update("division_id", nil)
		if result.Error != nil {
			slog.Error("sql error detaching anggota from division", "division_id", divisionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Exec("DELETE FROM proker_divisions WHERE division_id = ?", divisionId)
		if result.Error != nil {
			slog.Error("sql error detaching prokers from division", "division_id", divisionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Division{Id: divisionId})
		if result.Error != nil {
			slog.Error("sql error deleting division", "division_id", divisionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting division: %v", err), GetResponseCode(err))
		return
	}

	s.audit.Record(auth.ActorId(r), "delete_division", fmt.Sprintf("deleted division '%v'", deletedName))

	utils.WriteSuccess(w)
}
