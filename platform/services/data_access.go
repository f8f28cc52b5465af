package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DataAccessService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *DataAccessService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.CollaboratePermission))

		r.Get("/{project_id}/{user_folder}", s.GetAccess)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.ProvideDataPermission))

		r.Put("/{project_id}/{user_folder}", s.SetAccess)
		r.Delete("/{project_id}/{user_folder}", s.ResetAccess)
	})

	return r
}

type dataAccessResponse struct {
	UserFolder string `json:"user_folder"`
	Enabled    bool   `json:"enabled"`
}

// GetAccess reports whether a user folder is readable. A missing row means
// access is enabled.
func (s *DataAccessService) GetAccess(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userFolder, err := utils.URLParam(r, "user_folder")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	access, err := schema.GetDataAccess(projectId, userFolder, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrDataAccessNotFound) {
			utils.WriteJsonResponse(w, dataAccessResponse{UserFolder: userFolder, Enabled: true})
			return
		}
		http.Error(w, fmt.Sprintf("error getting data access: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, dataAccessResponse{UserFolder: userFolder, Enabled: access.IsEnabled})
}

type setAccessRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *DataAccessService) SetAccess(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userFolder, err := utils.URLParam(r, "user_folder")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params setAccessRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	access := schema.DataAccess{
		ProjectId:  projectId,
		UserFolder: userFolder,
		IsEnabled:  params.Enabled,
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_folder"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_enabled"}),
	}).Create(&access)
	if result.Error != nil {
		slog.Error("sql error setting data access", "project_id", projectId, "user_folder", userFolder, "error", result.Error)
		http.Error(w, fmt.Sprintf("error setting data access: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	slog.Info("set data access", "project_id", projectId, "user_folder", userFolder, "enabled", params.Enabled)

	utils.WriteSuccess(w)
}

// ResetAccess deletes the access row, returning the folder to the default
// enabled state.
func (s *DataAccessService) ResetAccess(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userFolder, err := utils.URLParam(r, "user_folder")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.db.Where("project_id = ? AND user_folder = ?", projectId, userFolder).Delete(&schema.DataAccess{})
	if result.Error != nil {
		slog.Error("sql error resetting data access", "project_id", projectId, "user_folder", userFolder, "error", result.Error)
		http.Error(w, fmt.Sprintf("error resetting data access: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}
