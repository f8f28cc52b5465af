package auth

import (
	"errors"
	"fmt"
	"net/http"

	"annotation_platform/platform/schema"
	"annotation_platform/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type projectPermission int // Private so that no other permissions can be defined

const (
	NoPermission          projectPermission = 0
	CollaboratePermission projectPermission = 1
	ProvideDataPermission projectPermission = 2
	OwnerPermission       projectPermission = 3
)

func projectPermissionToString(perm projectPermission) string {
	switch perm {
	case NoPermission:
		return "None"
	case CollaboratePermission:
		return "Collaborate"
	case ProvideDataPermission:
		return "ProvideData"
	case OwnerPermission:
		return "Owner"
	default:
		return "invalid permission"
	}
}

func rolePermission(roleType string) projectPermission {
	switch roleType {
	case schema.RoleProjectOwner:
		return OwnerPermission
	case schema.RoleDataProvider:
		return ProvideDataPermission
	case schema.RoleCollaborator:
		return CollaboratePermission
	default:
		return NoPermission
	}
}

func GetProjectPermissions(projectId uuid.UUID, user schema.User, db *gorm.DB) (projectPermission, error) {
	if user.IsAdmin {
		return OwnerPermission, nil
	}

	project, err := schema.GetProject(projectId, db, false)
	if err != nil {
		return NoPermission, err
	}

	if project.UserId == user.Id {
		return OwnerPermission, nil
	}

	role, err := schema.GetProjectRole(projectId, user.Id, db)
	if err != nil {
		if errors.Is(err, schema.ErrRoleNotFound) {
			return NoPermission, nil
		}
		return NoPermission, err
	}

	return rolePermission(role.RoleType), nil
}

func ProjectPermissionOnly(db *gorm.DB, minPermission projectPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			projectId, err := utils.URLParamUUID(r, "project_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			permission, err := GetProjectPermissions(projectId, user, db)
			if err != nil {
				if errors.Is(err, schema.ErrProjectNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if permission >= minPermission {
				next.ServeHTTP(w, r)
				return
			}

			required, actual := projectPermissionToString(minPermission), projectPermissionToString(permission)
			http.Error(w, fmt.Sprintf("user %v does not have required permission for project %v (required=%v, actual=%v)", user.Id, projectId, required, actual), http.StatusForbidden)
		}
		return http.HandlerFunc(hfn)
	}
}

// GetTaskAccessLevel resolves a user's access level on a task. Task creators
// and project owners are editors regardless of any task access row. Without
// a row the level defaults to no_access.
func GetTaskAccessLevel(task schema.Task, user schema.User, db *gorm.DB) (string, error) {
	if user.IsAdmin || task.UserId == user.Id {
		return schema.AccessEditor, nil
	}

	perm, err := GetProjectPermissions(task.ProjectId, user, db)
	if err != nil {
		return schema.AccessNone, err
	}
	if perm == OwnerPermission {
		return schema.AccessEditor, nil
	}

	access, err := schema.GetTaskAccess(task.Id, user.Id, db)
	if err != nil {
		if errors.Is(err, schema.ErrTaskAccessNotFound) {
			return schema.AccessNone, nil
		}
		return schema.AccessNone, err
	}

	return access.AccessLevel, nil
}

func taskAccessSatisfies(level, minLevel string) bool {
	rank := func(l string) int {
		switch l {
		case schema.AccessEditor:
			return 2
		case schema.AccessViewer:
			return 1
		default:
			return 0
		}
	}
	return rank(level) >= rank(minLevel)
}

func TaskAccessOnly(db *gorm.DB, minLevel string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			taskId, err := utils.URLParamUUID(r, "task_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			task, err := schema.GetTask(taskId, db)
			if err != nil {
				if errors.Is(err, schema.ErrTaskNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			level, err := GetTaskAccessLevel(task, user, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !taskAccessSatisfies(level, minLevel) {
				http.Error(w, fmt.Sprintf("user %v does not have required access for task %v (required=%v, actual=%v)", user.Id, taskId, minLevel, level), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// DataAccessGate guards static file reads under /{folder_id}/{user_folder}.
// A missing data access row means the folder is enabled. Disabled folders and
// lookup failures both yield 404 so that the response does not reveal whether
// the folder exists.
func DataAccessGate(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			folderId, err := utils.URLParamUUID(r, "folder_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			userFolder, err := utils.URLParam(r, "user_folder")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			project, err := schema.GetProjectByFolder(folderId, db)
			if err != nil {
				http.Error(w, "file not found", http.StatusNotFound)
				return
			}

			access, err := schema.GetDataAccess(project.Id, userFolder, db)
			if err != nil {
				if !errors.Is(err, schema.ErrDataAccessNotFound) {
					http.Error(w, "file not found", http.StatusNotFound)
					return
				}
			} else if !access.IsEnabled {
				http.Error(w, "file not found", http.StatusNotFound)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
