package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/export"
	"annotation_platform/platform/schema"
	"annotation_platform/platform/storage"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnnotationService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider

	exportDefaults export.Defaults
}

func (s *AnnotationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.TaskAccessOnly(s.db, schema.AccessEditor))
		r.Use(checkSufficientStorage(s.storage))

		r.Post("/{task_id}", s.SaveAnnotations)
		r.Post("/{task_id}/keypoints", s.SaveKeypoints)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.TaskAccessOnly(s.db, schema.AccessViewer))

		r.Get("/{task_id}", s.GetAnnotations)
		r.Get("/{task_id}/keypoints", s.GetKeypoints)
		r.Get("/{task_id}/export/{format}", s.Export)
	})

	return r
}

func (s *AnnotationService) taskFolder(taskId uuid.UUID) (schema.Task, uuid.UUID, error) {
	task, err := schema.GetTask(taskId, s.db)
	if err != nil {
		if errors.Is(err, schema.ErrTaskNotFound) {
			return task, uuid.Nil, CodedError(err, http.StatusNotFound)
		}
		return task, uuid.Nil, CodedError(err, http.StatusInternalServerError)
	}

	project, err := schema.GetProject(task.ProjectId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			return task, uuid.Nil, CodedError(err, http.StatusNotFound)
		}
		return task, uuid.Nil, CodedError(err, http.StatusInternalServerError)
	}

	return task, project.FolderId, nil
}

// SaveAnnotations stores the posted annotation document verbatim. The body
// must be a json object keyed by image path.
func (s *AnnotationService) SaveAnnotations(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, folderId, err := s.taskFolder(taskId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error saving annotations: %v", err), GetResponseCode(err))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}

	var doc map[string]export.ImageAnnotations
	if err := json.Unmarshal(body, &doc); err != nil {
		http.Error(w, fmt.Sprintf("invalid annotation document: %v", err), http.StatusUnprocessableEntity)
		return
	}

	if err := s.storage.Write(storage.AnnotationPath(folderId, taskId), bytes.NewReader(body)); err != nil {
		http.Error(w, "error saving annotations", http.StatusInternalServerError)
		return
	}

	annotationSavesMetric.Inc()
	slog.Info("saved annotations", "task_id", taskId, "images", len(doc))

	utils.WriteSuccess(w)
}

func (s *AnnotationService) GetAnnotations(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, folderId, err := s.taskFolder(taskId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error getting annotations: %v", err), GetResponseCode(err))
		return
	}

	s.serveStoredJson(w, storage.AnnotationPath(folderId, taskId), "{}")
}

func (s *AnnotationService) SaveKeypoints(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, folderId, err := s.taskFolder(taskId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error saving keypoints config: %v", err), GetResponseCode(err))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "keypoints config must be valid json", http.StatusUnprocessableEntity)
		return
	}

	if err := s.storage.Write(storage.KeypointsPath(folderId, taskId), bytes.NewReader(body)); err != nil {
		http.Error(w, "error saving keypoints config", http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

func (s *AnnotationService) GetKeypoints(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, folderId, err := s.taskFolder(taskId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error getting keypoints config: %v", err), GetResponseCode(err))
		return
	}

	s.serveStoredJson(w, storage.KeypointsPath(folderId, taskId), "{}")
}

// serveStoredJson streams a stored json document, or the given fallback if
// the document does not exist yet.
func (s *AnnotationService) serveStoredJson(w http.ResponseWriter, path, fallback string) {
	w.Header().Set("Content-Type", "application/json")

	file, err := s.storage.Read(path)
	if err != nil {
		fmt.Fprint(w, fallback)
		return
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming stored json", "path", path, "error", err)
	}
}

type labelClass struct {
	Name string `json:"name"`
}

// labelClassNames parses the project's label class definitions. Both a list
// of objects with a name field and a plain list of strings are accepted.
func labelClassNames(serialized string) []string {
	if serialized == "" {
		return nil
	}

	var classes []labelClass
	if err := json.Unmarshal([]byte(serialized), &classes); err == nil {
		names := make([]string, 0, len(classes))
		for _, class := range classes {
			names = append(names, class.Name)
		}
		return names
	}

	var names []string
	if err := json.Unmarshal([]byte(serialized), &names); err == nil {
		return names
	}

	slog.Error("unable to parse project label classes", "label_classes", serialized)
	return nil
}

func (s *AnnotationService) loadExportInput(taskId uuid.UUID) (export.Input, error) {
	task, folderId, err := s.taskFolder(taskId)
	if err != nil {
		return export.Input{}, err
	}

	project, err := schema.GetProject(task.ProjectId, s.db, false)
	if err != nil {
		return export.Input{}, CodedError(err, http.StatusInternalServerError)
	}

	file, err := s.storage.Read(storage.AnnotationPath(folderId, taskId))
	if err != nil {
		return export.Input{}, CodedError(errors.New("no annotations saved for task"), http.StatusNotFound)
	}
	defer file.Close()

	var annotations map[string]export.ImageAnnotations
	if err := json.NewDecoder(file).Decode(&annotations); err != nil {
		slog.Error("error parsing stored annotations", "task_id", taskId, "error", err)
		return export.Input{}, CodedError(errors.New("stored annotations are not parseable"), http.StatusInternalServerError)
	}

	return export.Input{
		LabelClasses: labelClassNames(project.LabelClasses),
		Annotations:  annotations,
	}, nil
}

func (s *AnnotationService) Export(w http.ResponseWriter, r *http.Request) {
	taskId, err := utils.URLParamUUID(r, "task_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format, err := utils.URLParam(r, "format")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input, err := s.loadExportInput(taskId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error exporting annotations: %v", err), GetResponseCode(err))
		return
	}

	switch format {
	case "coco":
		utils.WriteJsonResponse(w, export.ToCOCO(input, s.exportDefaults))
	case "yolo":
		utils.WriteJsonResponse(w, export.ToYOLO(input, s.exportDefaults))
	case "voc":
		files, err := export.ToVOC(input, s.exportDefaults)
		if err != nil {
			http.Error(w, fmt.Sprintf("error exporting annotations: %v", err), http.StatusInternalServerError)
			return
		}
		utils.WriteJsonResponse(w, files)
	case "csv":
		out, err := export.ToCSV(input, s.exportDefaults)
		if err != nil {
			http.Error(w, fmt.Sprintf("error exporting annotations: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, out)
	case "json":
		utils.WriteJsonResponse(w, input.Annotations)
	default:
		http.Error(w, fmt.Sprintf("unsupported export format '%v', must be one of coco, yolo, voc, csv, or json", format), http.StatusUnprocessableEntity)
		return
	}

	exportMetric.WithLabelValues(format).Inc()
	slog.Info("exported annotations", "task_id", taskId, "format", format)
}
