package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrRoleNotFound       = errors.New("project role not found")
	ErrTaskAccessNotFound = errors.New("task access entry not found")
	ErrDataAccessNotFound = errors.New("data access entry not found")
	ErrDbAccessFailed     = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetProject(projectId uuid.UUID, db *gorm.DB, loadUser bool) (Project, error) {
	var project Project

	var result *gorm.DB = db
	if loadUser {
		result = result.Preload("User")
	}
	result = result.First(&project, "id = ?", projectId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetProjectByFolder(folderId uuid.UUID, db *gorm.DB) (Project, error) {
	var project Project

	result := db.First(&project, "folder_id = ?", folderId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project by folder", "folder_id", folderId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetTask(taskId uuid.UUID, db *gorm.DB) (Task, error) {
	var task Task

	result := db.First(&task, "id = ?", taskId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return task, ErrTaskNotFound
		}
		slog.Error("sql error in get task", "task_id", taskId, "error", result.Error)
		return task, ErrDbAccessFailed
	}

	return task, nil
}

func GetProjectRole(projectId, userId uuid.UUID, db *gorm.DB) (ProjectRole, error) {
	var role ProjectRole

	result := db.First(&role, "project_id = ? and user_id = ?", projectId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return role, ErrRoleNotFound
		}
		slog.Error("sql error in get project role", "project_id", projectId, "user_id", userId, "error", result.Error)
		return role, ErrDbAccessFailed
	}

	return role, nil
}

func GetUserProjectIds(userId uuid.UUID, db *gorm.DB) ([]uuid.UUID, error) {
	var roles []ProjectRole
	result := db.Find(&roles, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error in get user project ids", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]uuid.UUID, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ProjectId)
	}
	return ids, nil
}

func GetTaskAccess(taskId, userId uuid.UUID, db *gorm.DB) (TaskAccess, error) {
	var access TaskAccess

	result := db.First(&access, "task_id = ? and user_id = ?", taskId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return access, ErrTaskAccessNotFound
		}
		slog.Error("sql error in get task access", "task_id", taskId, "user_id", userId, "error", result.Error)
		return access, ErrDbAccessFailed
	}

	return access, nil
}

func GetDataAccess(projectId uuid.UUID, userFolder string, db *gorm.DB) (DataAccess, error) {
	var access DataAccess

	result := db.First(&access, "project_id = ? and user_folder = ?", projectId, userFolder)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return access, ErrDataAccessNotFound
		}
		slog.Error("sql error in get data access", "project_id", projectId, "user_folder", userFolder, "error", result.Error)
		return access, ErrDbAccessFailed
	}

	return access, nil
}
