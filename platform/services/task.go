package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	// Annotation types accepted at task creation, empty accepts any.
	annotationTypes []string
}

func (s *TaskService) checkAnnotationType(annotationType string) error {
	if len(s.annotationTypes) == 0 || slices.Contains(s.annotationTypes, annotationType) {
		return nil
	}
	return fmt.Errorf("invalid annotation type '%v', must be one of %v", annotationType, strings.Join(s.annotationTypes, ", "))
}

func (s *TaskService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission))

		r.Post("/project/{project_id}/create", s.CreateTask)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.CollaboratePermission))

		r.Get("/project/{project_id}/list", s.ListTasks)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.TaskAccessOnly(s.db, schema.AccessViewer))

		r.Get("/{task_id}", s.GetTask)
		r.Get("/{task_id}/access", s.GetAccessList)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.TaskAccessOnly(s.db, schema.AccessEditor))

		r.Post("/{task_id}/access", s.UpdateAccess)
		r.Delete("/{task_id}", s.DeleteTask)
	})

	return r
}

type createTaskRequest struct {
	Name           string   `json:"name"`
	AnnotationType string   `json:"annotation_type"`
	SelectedFiles  []string `json:"selected_files"`
}

type createTaskResponse struct {
	TaskId uuid.UUID `json:"task_id"`
}

func (s *TaskService) CreateTask(w http.ResponseWriter, r *http.Request) {
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

	var params createTaskRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" || params.AnnotationType == "" {
		http.Error(w, "task name and annotation type must be specified", http.StatusBadRequest)
		return
	}

	if err := s.checkAnnotationType(params.AnnotationType); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	task := schema.Task{
		Id:             uuid.New(),
		Name:           params.Name,
		AnnotationType: params.AnnotationType,
		SelectedFiles:  strings.Join(params.SelectedFiles, ";"),
		UserId:         user.Id,
		ProjectId:      projectId,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		if result := txn.Create(&task); result.Error != nil {
			slog.Error("sql error creating task", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		// The creator's editor access is recorded explicitly so that the
		// access list is complete without special casing reads.
		access := schema.TaskAccess{
			TaskId:      task.Id,
			UserId:      user.Id,
			AccessLevel: schema.AccessEditor,
			AssignedBy:  user.Id,
		}
		if result := txn.Create(&access); result.Error != nil {
			slog.Error("sql error creating task access for creator", "task_id", task.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error creating task: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("created task", "task_id", task.Id, "project_id", projectId, "user_id", user.Id)

	utils.WriteJsonResponse(w, createTaskResponse{TaskId: task.Id})
}

type TaskInfo struct {
	Id             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	AnnotationType string    `json:"annotation_type"`
	SelectedFiles  []string  `json:"selected_files"`
	ProjectId      uuid.UUID `json:"project_id"`
	CreatorId      uuid.UUID `json:"creator_id"`
	AccessLevel    string    `json:"access_level"`
}

func convertToTaskInfo(task *schema.Task, accessLevel string) TaskInfo {
	var files []string
	if task.SelectedFiles != "" {
		files = strings.Split(task.SelectedFiles, ";")
	}
	return TaskInfo{
		Id:             task.Id,
		Name:           task.Name,
		AnnotationType: task.AnnotationType,
		SelectedFiles:  files,
		ProjectId:      task.ProjectId,
		CreatorId:      task.UserId,
		AccessLevel:    accessLevel,
	}
}

// ListTasks returns the project's tasks annotated with the caller's access
// level. Tasks the caller cannot see at all are filtered out.
func (s *TaskService) ListTasks(w http.ResponseWriter, r *http.Request) {
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

	var tasks []schema.Task
	result := s.db.Where("project_id = ?", projectId).Find(&tasks)
	if result.Error != nil {
		slog.Error("sql error listing tasks", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing tasks: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]TaskInfo, 0, len(tasks))
	for i := range tasks {
		level, err := auth.GetTaskAccessLevel(tasks[i], user, s.db)
		if err != nil {
			http.Error(w, fmt.Sprintf("error listing tasks: %v", err), http.StatusInternalServerError)
			return
		}
		if level == schema.AccessNone {
			continue
		}
		infos = append(infos, convertToTaskInfo(&tasks[i], level))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *TaskService) GetTask(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	task, err := schema.GetTask(taskId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	level, err := auth.GetTaskAccessLevel(task, user, s.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, convertToTaskInfo(&task, level))
}

type AccessEntry struct {
	UserId      uuid.UUID `json:"user_id"`
	AccessLevel string    `json:"access_level"`
}

// GetAccessList returns the task's access rows. The creator always appears
// as an editor even if their row was removed by a bulk update.
func (s *TaskService) GetAccessList(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := schema.GetTask(taskId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var rows []schema.TaskAccess
	result := s.db.Where("task_id = ?", taskId).Find(&rows)
	if result.Error != nil {
		slog.Error("sql error listing task access", "task_id", taskId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing task access: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	entries := make([]AccessEntry, 0, len(rows)+1)
	creatorListed := false
	for _, row := range rows {
		level := row.AccessLevel
		if row.UserId == task.UserId {
			creatorListed = true
			level = schema.AccessEditor
		}
		entries = append(entries, AccessEntry{UserId: row.UserId, AccessLevel: level})
	}
	if !creatorListed {
		entries = append(entries, AccessEntry{UserId: task.UserId, AccessLevel: schema.AccessEditor})
	}

	utils.WriteJsonResponse(w, entries)
}

type updateAccessRequest struct {
	Access []AccessEntry `json:"access"`
}

// UpdateAccess replaces the task's access rows with the given entries. The
// operation is idempotent, applying the same body twice leaves the same rows.
// The creator's editor access cannot be overridden.
func (s *TaskService) UpdateAccess(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var params updateAccessRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	seen := make(map[uuid.UUID]bool, len(params.Access))
	for _, entry := range params.Access {
		if err := schema.CheckValidAccessLevel(entry.AccessLevel); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if seen[entry.UserId] {
			http.Error(w, fmt.Sprintf("duplicate access entry for user %v", entry.UserId), http.StatusUnprocessableEntity)
			return
		}
		seen[entry.UserId] = true
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		task, err := schema.GetTask(taskId, txn)
		if err != nil {
			if errors.Is(err, schema.ErrTaskNotFound) {
				return CodedError(err, http.StatusNotFound)
			}
			return CodedError(err, http.StatusInternalServerError)
		}

		previous := make(map[uuid.UUID]string)
		var existing []schema.TaskAccess
		if result := txn.Where("task_id = ?", taskId).Find(&existing); result.Error != nil {
			slog.Error("sql error reading task access", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		for _, row := range existing {
			previous[row.UserId] = row.AccessLevel
		}

		if result := txn.Where("task_id = ?", taskId).Delete(&schema.TaskAccess{}); result.Error != nil {
			slog.Error("sql error clearing task access", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		rows := []schema.TaskAccess{{
			TaskId:      taskId,
			UserId:      task.UserId,
			AccessLevel: schema.AccessEditor,
			AssignedBy:  user.Id,
		}}

		for _, entry := range params.Access {
			if entry.UserId == task.UserId {
				continue
			}

			if err := checkUserExists(txn, entry.UserId); err != nil {
				return err
			}

			rows = append(rows, schema.TaskAccess{
				TaskId:      taskId,
				UserId:      entry.UserId,
				AccessLevel: entry.AccessLevel,
				AssignedBy:  user.Id,
			})

			if previous[entry.UserId] != entry.AccessLevel && entry.AccessLevel != schema.AccessNone {
				message := fmt.Sprintf("Your access to task '%v' was set to %v", task.Name, entry.AccessLevel)
				if err := createNotification(txn, entry.UserId, message, &task.ProjectId); err != nil {
					return err
				}
			}
		}

		if result := txn.Create(&rows); result.Error != nil {
			slog.Error("sql error writing task access", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error updating task access: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("updated task access", "task_id", taskId, "entries", len(params.Access))

	utils.WriteSuccess(w)
}

func (s *TaskService) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkTaskExists(txn, taskId); err != nil {
			return err
		}

		if result := txn.Where("task_id = ?", taskId).Delete(&schema.TaskAccess{}); result.Error != nil {
			slog.Error("sql error deleting task access", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if result := txn.Delete(&schema.Task{Id: taskId}); result.Error != nil {
			slog.Error("sql error deleting task", "task_id", taskId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting task %v: %v", taskId, err), GetResponseCode(err))
		return
	}

	slog.Info("deleted task", "task_id", taskId)

	utils.WriteSuccess(w)
}
