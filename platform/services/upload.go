package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/platform/storage"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxUploadMemory = 32 << 20

type UploadService struct {
	db       *gorm.DB
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *UploadService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.ProvideDataPermission))
		r.Use(checkSufficientStorage(s.storage))

		r.Post("/{project_id}/files", s.UploadFiles)
		r.Post("/{project_id}/archive", s.UploadArchive)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.ProjectPermissionOnly(s.db, auth.CollaboratePermission))

		r.Get("/{project_id}/list", s.ListFiles)
		r.Get("/{project_id}/archive/{user_folder}", s.DownloadArchive)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.DataAccessGate(s.db))

		r.Get("/files/{folder_id}/{user_folder}/*", s.ServeFile)
	})

	return r
}

// checkUploadPath rejects path components that would escape the upload tree.
func checkUploadPath(path string) error {
	if path == "" {
		return errors.New("empty file path")
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return fmt.Errorf("invalid file path '%v'", path)
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid file path '%v'", path)
		}
	}
	return nil
}

func sanitizeUsername(username string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, username)
}

// userFolderName names the per-uploader directory within a project's upload
// tree, e.g. "alice_2026-08-30".
func userFolderName(user schema.User) string {
	return fmt.Sprintf("%v_%v", sanitizeUsername(user.Username), time.Now().UTC().Format("2006-01-02"))
}

func (s *UploadService) saveUpload(folderId uuid.UUID, userFolder string, header *multipart.FileHeader) error {
	if err := checkUploadPath(header.Filename); err != nil {
		return CodedError(err, http.StatusUnprocessableEntity)
	}

	file, err := header.Open()
	if err != nil {
		slog.Error("error opening uploaded file", "filename", header.Filename, "error", err)
		return CodedError(fmt.Errorf("error opening uploaded file '%v'", header.Filename), http.StatusInternalServerError)
	}
	defer file.Close()

	dest := filepath.Join(storage.UserFolderPath(folderId, userFolder), header.Filename)
	if err := s.storage.Write(dest, file); err != nil {
		return CodedError(fmt.Errorf("error saving uploaded file '%v'", header.Filename), http.StatusInternalServerError)
	}

	uploadedFilesMetric.Inc()
	uploadBytesMetric.Add(float64(header.Size))

	return nil
}

func (s *UploadService) markProjectHasData(projectId uuid.UUID) error {
	result := s.db.Model(&schema.Project{}).Where("id = ?", projectId).Update("has_data", true)
	if result.Error != nil {
		slog.Error("sql error marking project as having data", "project_id", projectId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}

type uploadResponse struct {
	UserFolder string   `json:"user_folder"`
	Files      []string `json:"files"`
}

func (s *UploadService) UploadFiles(w http.ResponseWriter, r *http.Request) {
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

	project, err := schema.GetProject(projectId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, fmt.Sprintf("error parsing multipart form: %v", err), http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "no files provided in 'files' form field", http.StatusBadRequest)
		return
	}

	userFolder := userFolderName(user)

	saved := make([]string, 0, len(headers))
	for _, header := range headers {
		if err := s.saveUpload(project.FolderId, userFolder, header); err != nil {
			http.Error(w, fmt.Sprintf("error uploading files: %v", err), GetResponseCode(err))
			return
		}
		saved = append(saved, header.Filename)
	}

	if err := s.markProjectHasData(projectId); err != nil {
		http.Error(w, fmt.Sprintf("error uploading files: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("uploaded files", "project_id", projectId, "user_folder", userFolder, "count", len(saved))

	utils.WriteJsonResponse(w, uploadResponse{UserFolder: userFolder, Files: saved})
}

// UploadArchive accepts a single zip in the 'archive' form field and expands
// it into the caller's user folder.
func (s *UploadService) UploadArchive(w http.ResponseWriter, r *http.Request) {
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

	project, err := schema.GetProject(projectId, s.db, false)
	if err != nil {
		if errors.Is(err, schema.ErrProjectNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading 'archive' form field: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".zip") {
		http.Error(w, "archive must be a .zip file", http.StatusUnprocessableEntity)
		return
	}

	userFolder := userFolderName(user)
	archivePath := storage.UserFolderPath(project.FolderId, userFolder) + ".zip"

	if err := s.storage.Write(archivePath, file); err != nil {
		http.Error(w, "error saving uploaded archive", http.StatusInternalServerError)
		return
	}

	if err := s.storage.Unzip(archivePath); err != nil {
		http.Error(w, fmt.Sprintf("error expanding archive: %v", err), http.StatusUnprocessableEntity)
		return
	}

	if err := s.storage.Delete(archivePath); err != nil {
		slog.Error("unable to remove uploaded archive after expansion", "path", archivePath, "error", err)
	}

	uploadedFilesMetric.Inc()
	uploadBytesMetric.Add(float64(header.Size))

	if err := s.markProjectHasData(projectId); err != nil {
		http.Error(w, fmt.Sprintf("error uploading archive: %v", err), GetResponseCode(err))
		return
	}

	slog.Info("uploaded archive", "project_id", projectId, "user_folder", userFolder)

	utils.WriteJsonResponse(w, uploadResponse{UserFolder: userFolder, Files: []string{header.Filename}})
}

// DownloadArchive zips a user folder and streams the archive.
func (s *UploadService) DownloadArchive(w http.ResponseWriter, r *http.Request) {
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
	if err := checkUploadPath(userFolder); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
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

	folderPath := storage.UserFolderPath(project.FolderId, userFolder)

	exists, err := s.storage.Exists(folderPath)
	if err != nil {
		http.Error(w, "error checking user folder", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, fmt.Sprintf("user folder '%v' not found", userFolder), http.StatusNotFound)
		return
	}

	if err := s.storage.Zip(folderPath); err != nil {
		http.Error(w, "error building archive", http.StatusInternalServerError)
		return
	}
	archivePath := folderPath + ".zip"
	defer func() {
		if err := s.storage.Delete(archivePath); err != nil {
			slog.Error("unable to remove archive after download", "path", archivePath, "error", err)
		}
	}()

	archive, err := s.storage.Read(archivePath)
	if err != nil {
		http.Error(w, "error reading archive", http.StatusInternalServerError)
		return
	}
	defer archive.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%v.zip", userFolder))
	if _, err := io.Copy(w, archive); err != nil {
		slog.Error("error streaming archive", "path", archivePath, "error", err)
	}
}

type FileNode struct {
	Name     string     `json:"name"`
	IsDir    bool       `json:"is_dir"`
	Children []FileNode `json:"children,omitempty"`
}

// listTree walks the upload tree rooted at path.
func (s *UploadService) listTree(path string, depth int) ([]FileNode, error) {
	if depth > 10 {
		return nil, fmt.Errorf("upload tree at %v is nested too deeply", path)
	}

	entries, err := s.storage.List(path)
	if err != nil {
		return nil, err
	}

	nodes := make([]FileNode, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name, ".") {
			continue
		}

		if !entry.Dir {
			nodes = append(nodes, FileNode{Name: entry.Name})
			continue
		}

		children, err := s.listTree(filepath.Join(path, entry.Name), depth+1)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, FileNode{Name: entry.Name, IsDir: true, Children: children})
	}

	return nodes, nil
}

func (s *UploadService) ListFiles(w http.ResponseWriter, r *http.Request) {
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

	nodes, err := s.listTree(storage.UploadPath(project.FolderId), 0)
	if err != nil {
		http.Error(w, fmt.Sprintf("error listing project files: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, nodes)
}

// ServeFile streams a single file from a project's upload tree. The data
// access gate has already verified that the user folder is readable.
func (s *UploadService) ServeFile(w http.ResponseWriter, r *http.Request) {
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

	rest := chi.URLParam(r, "*")
	if err := checkUploadPath(userFolder); err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	if err := checkUploadPath(rest); err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	path := filepath.Join(storage.UserFolderPath(folderId, userFolder), rest)
	file, err := s.storage.Read(path)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	fileServesMetric.Inc()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming file", "path", path, "error", err)
	}
}
