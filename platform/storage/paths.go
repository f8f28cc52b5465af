package storage

import (
	"path/filepath"

	"github.com/google/uuid"
)

func UploadPath(folderId uuid.UUID) string {
	return filepath.Join("uploads", folderId.String())
}

func UserFolderPath(folderId uuid.UUID, userFolder string) string {
	return filepath.Join(UploadPath(folderId), userFolder)
}

func AnnotationPath(folderId, taskId uuid.UUID) string {
	return filepath.Join(UploadPath(folderId), "annotation-config", taskId.String(), "annotations.json")
}

func KeypointsPath(folderId, taskId uuid.UUID) string {
	return filepath.Join(UploadPath(folderId), "keypoints-config", taskId.String()+".json")
}
