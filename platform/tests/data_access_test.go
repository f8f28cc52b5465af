package tests

import (
	"errors"
	"net/http"
	"testing"

	"annotation_platform/platform/schema"
)

func TestUploadAndServeFiles(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	upload, err := owner.uploadFiles(project.ProjectId, map[string]string{
		"img1.jpg": "fake image data",
		"img2.jpg": "more fake image data",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(upload.Files) != 2 {
		t.Fatalf("expected 2 uploaded files, got %v", upload.Files)
	}

	status, body := owner.getFile(project.FolderId, upload.UserFolder, "img1.jpg")
	if status != http.StatusOK {
		t.Fatalf("expected 200 serving uploaded file, got %d: %v", status, body)
	}
	if body != "fake image data" {
		t.Fatalf("unexpected file content %v", body)
	}

	status, _ = owner.getFile(project.FolderId, upload.UserFolder, "missing.jpg")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for missing file, got %d", status)
	}

	projects, err := owner.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if !projects[0].HasData {
		t.Fatal("project should be marked as having data after upload")
	}
}

func TestServeRejectsEscapingPaths(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	upload, err := owner.uploadFiles(project.ProjectId, map[string]string{"img1.jpg": "data"})
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"../img1.jpg", "a/../../b.jpg", "./img1.jpg"} {
		status, _ := owner.getFile(project.FolderId, upload.UserFolder, path)
		if status == http.StatusOK {
			t.Fatalf("serving path '%v' should be rejected", path)
		}
	}
}

func TestCollaboratorCannotUpload(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	collaborator, err := env.newUser("collab")
	if err != nil {
		t.Fatal(err)
	}
	provider, err := env.newUser("provider")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, collaborator.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}
	err = owner.assignRole(project.ProjectId, provider.userId, schema.RoleDataProvider)
	if err != nil {
		t.Fatal(err)
	}

	_, err = collaborator.uploadFiles(project.ProjectId, map[string]string{"a.jpg": "data"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("collaborators cannot upload files: %v", err)
	}

	_, err = provider.uploadFiles(project.ProjectId, map[string]string{"a.jpg": "data"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDataAccessGate(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	upload, err := owner.uploadFiles(project.ProjectId, map[string]string{"img1.jpg": "data"})
	if err != nil {
		t.Fatal(err)
	}

	// Without a data access row the folder defaults to enabled.
	enabled, err := owner.getDataAccess(project.ProjectId, upload.UserFolder)
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Fatal("folder should default to enabled")
	}

	status, _ := owner.getFile(project.FolderId, upload.UserFolder, "img1.jpg")
	if status != http.StatusOK {
		t.Fatalf("expected 200 before disabling, got %d", status)
	}

	// Disabling the folder makes its files 404, even though they still
	// exist on disk.
	err = owner.setDataAccess(project.ProjectId, upload.UserFolder, false)
	if err != nil {
		t.Fatal(err)
	}

	status, _ = owner.getFile(project.FolderId, upload.UserFolder, "img1.jpg")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after disabling, got %d", status)
	}

	err = owner.setDataAccess(project.ProjectId, upload.UserFolder, true)
	if err != nil {
		t.Fatal(err)
	}

	status, _ = owner.getFile(project.FolderId, upload.UserFolder, "img1.jpg")
	if status != http.StatusOK {
		t.Fatalf("expected 200 after re-enabling, got %d", status)
	}

	// Deleting the row resets to the enabled default.
	err = owner.setDataAccess(project.ProjectId, upload.UserFolder, false)
	if err != nil {
		t.Fatal(err)
	}
	err = owner.Delete("/data-access/" + project.ProjectId + "/" + upload.UserFolder).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	enabled, err = owner.getDataAccess(project.ProjectId, upload.UserFolder)
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Fatal("deleting the access row should reset to enabled")
	}
}
