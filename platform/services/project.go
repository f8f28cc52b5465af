package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/platform/storage"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateProject)
	r.Get("/list", s.ListProjects)

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.CollaboratePermission))

		r.Get("/{project_id}", s.GetProject)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission))

		r.Post("/{project_id}/labels", s.UpdateLabelClasses)
		r.Delete("/{project_id}", s.DeleteProject)
	})

	return r
}

type createProjectRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LabelClasses string `json:"label_classes"`
}

type createProjectResponse struct {
	ProjectId uuid.UUID `json:"project_id"`
	FolderId  uuid.UUID `json:"folder_id"`
}

func (s *ProjectService) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params createProjectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" || params.Type == "" {
		http.Error(w, "project name and type must be specified", http.StatusBadRequest)
		return
	}

	project := schema.Project{
		Id:           uuid.New(),
		Name:         params.Name,
		Type:         params.Type,
		LabelClasses: params.LabelClasses,
		FolderId:     uuid.New(),
		CreatedAt:    time.Now().UTC(),
		UserId:       user.Id,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if result := txn.Create(&project); result.Error != nil {
			slog.Error("sql error creating project", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		role := schema.ProjectRole{
			ProjectId:  project.Id,
			UserId:     user.Id,
			RoleType:   schema.RoleProjectOwner,
			AssignedBy: user.Id,
		}
		if result := txn.Create(&role); result.Error != nil {
			slog.Error("sql error creating owner role", "project_id", project.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating project: %v", err), GetResponseCode(err))
		return
	}

	// The upload root is created eagerly so that listings on an empty
	// project succeed.
	marker := storage.UploadPath(project.FolderId) + "/.keep"
	if err := s.storage.Write(marker, strings.NewReader("")); err != nil {
		slog.Error("unable to initialize project upload folder", "project_id", project.Id, "error", err)
	}

	slog.Info("created project", "project_id", project.Id, "name", project.Name, "user_id", user.Id)

	utils.WriteJsonResponse(w, createProjectResponse{ProjectId: project.Id, FolderId: project.FolderId})
}

type ProjectInfo struct {
	Id           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	LabelClasses string    `json:"label_classes"`
	FolderId     uuid.UUID `json:"folder_id"`
	HasData      bool      `json:"has_data"`
	CreatedAt    time.Time `json:"created_at"`
	OwnerId      uuid.UUID `json:"owner_id"`
	Role         string    `json:"role,omitempty"`
}

func convertToProjectInfo(project *schema.Project) ProjectInfo {
	return ProjectInfo{
		Id:           project.Id,
		Name:         project.Name,
		Type:         project.Type,
		LabelClasses: project.LabelClasses,
		FolderId:     project.FolderId,
		HasData:      project.HasData,
		CreatedAt:    project.CreatedAt,
		OwnerId:      project.UserId,
	}
}

func (s *ProjectService) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var projects []schema.Project
	if user.IsAdmin {
		result := s.db.Find(&projects)
		if result.Error != nil {
			slog.Error("sql error listing projects", "error", result.Error)
			http.Error(w, fmt.Sprintf("error listing projects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
	} else {
		projectIds, err := schema.GetUserProjectIds(user.Id, s.db)
		if err != nil {
			http.Error(w, fmt.Sprintf("error listing projects: %v", err), http.StatusInternalServerError)
			return
		}

		result := s.db.Where("id IN ? OR user_id = ?", projectIds, user.Id).Find(&projects)
		if result.Error != nil {
			slog.Error("sql error listing projects", "user_id", user.Id, "error", result.Error)
			http.Error(w, fmt.Sprintf("error listing projects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
			return
		}
	}

	infos := make([]ProjectInfo, 0, len(projects))
	for i := range projects {
		info := convertToProjectInfo(&projects[i])

		role, err := schema.GetProjectRole(projects[i].Id, user.Id, s.db)
		if err == nil {
			info.Role = role.RoleType
		} else if !errors.Is(err, schema.ErrRoleNotFound) {
			http.Error(w, fmt.Sprintf("error listing projects: %v", err), http.StatusInternalServerError)
			return
		}

		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToProjectInfo(&project))
}

type updateLabelsRequest struct {
	LabelClasses string `json:"label_classes"`
}

func (s *ProjectService) UpdateLabelClasses(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateLabelsRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	result := s.db.Model(&schema.Project{}).
		Where("id = ?", projectId).
		Update("label_classes", params.LabelClasses)
	if result.Error != nil {
		slog.Error("sql error updating label classes", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error updating label classes: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

// DeleteProject removes the project and all dependent rows in one
// transaction. The upload tree is deleted after commit, a failure there is
// logged but does not fail the request since the database state is already
// consistent.
func (s *ProjectService) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var folderId uuid.UUID

	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}
		folderId = project.FolderId

		var taskIds []uuid.UUID
		if result := txn.Model(&schema.Task{}).Where("project_id = ?", projectId).Pluck("id", &taskIds); result.Error != nil {
			slog.Error("sql error listing project tasks", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		deletes := []*gorm.DB{
			txn.Where("task_id IN ?", taskIds).Delete(&schema.TaskAccess{}),
			txn.Where("project_id = ?", projectId).Delete(&schema.Task{}),
			txn.Where("project_id = ?", projectId).Delete(&schema.ProjectRole{}),
			txn.Where("project_id = ?", projectId).Delete(&schema.DataAccess{}),
			txn.Where("related_project_id = ?", projectId).Delete(&schema.Notification{}),
			txn.Delete(&schema.Project{Id: projectId}),
		}
		for _, result := range deletes {
			if result.Error != nil {
				slog.Error("sql error deleting project", "project_id", projectId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting project %v: %v", projectId, err), GetResponseCode(err))
		return
	}

	if err := s.storage.Delete(storage.UploadPath(folderId)); err != nil {
		slog.Error("unable to delete project upload folder", "project_id", projectId, "folder_id", folderId, "error", err)
	}

	slog.Info("deleted project", "project_id", projectId)

	utils.WriteSuccess(w)
}
