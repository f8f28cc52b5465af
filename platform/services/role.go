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
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *RoleService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.CollaboratePermission))

		r.Get("/{project_id}/list", s.ListRoles)
		r.Get("/{project_id}/user/{user_id}", s.GetRole)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission))

		r.Post("/{project_id}/assign", s.AssignRole)
		r.Post("/{project_id}/members", s.AddMembers)
		r.Delete("/{project_id}/user/{user_id}", s.RemoveRole)
	})

	return r
}

type assignRoleRequest struct {
	UserId uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func assignRole(txn *gorm.DB, projectId uuid.UUID, assignedBy schema.User, params assignRoleRequest) error {
	if err := schema.CheckValidRole(params.Role); err != nil {
		return CodedError(err, http.StatusUnprocessableEntity)
	}

	if err := checkUserExists(txn, params.UserId); err != nil {
		return err
	}

	if _, err := schema.GetProjectRole(projectId, params.UserId, txn); err == nil {
		return CodedError(fmt.Errorf("user %v already has a role in project %v", params.UserId, projectId), http.StatusConflict)
	} else if !errors.Is(err, schema.ErrRoleNotFound) {
		return CodedError(err, http.StatusInternalServerError)
	}

	role := schema.ProjectRole{
		ProjectId:  projectId,
		UserId:     params.UserId,
		RoleType:   params.Role,
		AssignedBy: assignedBy.Id,
	}
	if result := txn.Create(&role); result.Error != nil {
		slog.Error("sql error assigning role", "project_id", projectId, "user_id", params.UserId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	project, err := schema.GetProject(projectId, txn, false)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}

	message := fmt.Sprintf("%v added you to project '%v' as %v", assignedBy.Username, project.Name, params.Role)
	return createNotification(txn, params.UserId, message, &projectId)
}

func (s *RoleService) AssignRole(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params assignRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		return assignRole(txn, projectId, user, params)
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error assigning role: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("assigned project role", "project_id", projectId, "user_id", params.UserId, "role", params.Role)

	utils.WriteSuccess(w)
}

type addMembersRequest struct {
	Members []assignRoleRequest `json:"members"`
}

// AddMembers assigns roles to multiple users at once. The batch is atomic, a
// conflict or invalid role anywhere rolls back the whole request.
func (s *RoleService) AddMembers(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params addMembersRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		for _, member := range params.Members {
			if err := assignRole(txn, projectId, user, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error adding members: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *RoleService) RemoveRole(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn, false)
		if err != nil {
			if errors.Is(err, schema.ErrProjectNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		if project.UserId == userId {
			return CodedError(errors.New("cannot remove the project owner's role"), http.StatusUnprocessableEntity)
		}

		if _, err := schema.GetProjectRole(projectId, userId, txn); err != nil {
			if errors.Is(err, schema.ErrRoleNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		result := txn.Where("project_id = ? AND user_id = ?", projectId, userId).Delete(&schema.ProjectRole{})
		if result.Error != nil {
			slog.Error("sql error removing role", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		message := fmt.Sprintf("You were removed from project '%v'", project.Name)
		return createNotification(txn, userId, message, &projectId)
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error removing role: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("removed project role", "project_id", projectId, "user_id", userId)

	utils.WriteSuccess(w)
}

type RoleInfo struct {
	UserId     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	AssignedBy uuid.UUID `json:"assigned_by"`
}

func (s *RoleService) ListRoles(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var roles []schema.ProjectRole
	result := s.db.Preload("User").Where("project_id = ?", projectId).Find(&roles)
	if result.Error != nil {
		slog.Error("sql error listing roles", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing roles: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]RoleInfo, 0, len(roles))
	for _, role := range roles {
		info := RoleInfo{
			UserId:     role.UserId,
			Role:       role.RoleType,
			AssignedBy: role.AssignedBy,
		}
		if role.User != nil {
			info.Username = role.User.Username
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *RoleService) GetRole(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	role, err := schema.GetProjectRole(projectId, userId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrRoleNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, RoleInfo{UserId: role.UserId, Role: role.RoleType, AssignedBy: role.AssignedBy})
}
