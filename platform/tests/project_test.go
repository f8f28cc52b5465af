package tests

import (
	"errors"
	"testing"

	"annotation_platform/platform/schema"
	"annotation_platform/platform/storage"

	"github.com/google/uuid"
)

func TestCreateAndListProjects(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow","crow"]`)
	if err != nil {
		t.Fatal(err)
	}

	projects, err := owner.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0].Id.String() != project.ProjectId {
		t.Fatalf("owner should see their project, got %v", projects)
	}
	if projects[0].Role != schema.RoleProjectOwner {
		t.Fatalf("creator should hold the owner role, got %v", projects[0].Role)
	}

	projects, err = other.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("non members should not see the project, got %v", projects)
	}

	err = owner.assignRole(project.ProjectId, other.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}

	projects, err = other.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("collaborator should see the project, got %v", projects)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	collaborator, err := env.newUser("collab")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow"]`)
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, collaborator.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}

	taskId, err := owner.createTask(project.ProjectId, "label birds", "bounding_box", []string{"a.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	err = owner.setDataAccess(project.ProjectId, "some_folder", false)
	if err != nil {
		t.Fatal(err)
	}

	err = collaborator.deleteProject(project.ProjectId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("collaborators cannot delete projects")
	}

	err = owner.deleteProject(project.ProjectId)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := owner.getTask(taskId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("task should be deleted with the project: %v", err)
	}

	projects, err := collaborator.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("deleted project should not be listed, got %v", projects)
	}

	checkNoProjectRows(t, env, project.ProjectId, taskId)
}

// checkNoProjectRows verifies that no dependent rows survive a project delete.
func checkNoProjectRows(t *testing.T, env *testEnv, projectId, taskId string) {
	t.Helper()

	projectUUID := uuid.MustParse(projectId)
	taskUUID := uuid.MustParse(taskId)

	checks := []struct {
		model interface{}
		query string
		arg   uuid.UUID
		name  string
	}{
		{&schema.ProjectRole{}, "project_id = ?", projectUUID, "roles"},
		{&schema.Task{}, "project_id = ?", projectUUID, "tasks"},
		{&schema.TaskAccess{}, "task_id = ?", taskUUID, "task access rows"},
		{&schema.DataAccess{}, "project_id = ?", projectUUID, "data access rows"},
		{&schema.Notification{}, "related_project_id = ?", projectUUID, "notifications"},
	}
	for _, check := range checks {
		var count int64
		if err := env.db.Model(check.model).Where(check.query, check.arg).Count(&count).Error; err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatalf("expected no %v to remain after project delete, found %d", check.name, count)
		}
	}
}

type undeletableStorage struct {
	storage.Storage
}

func (s undeletableStorage) Delete(path string) error {
	return errors.New("delete rejected")
}

func TestDeleteProjectSurvivesStorageFailure(t *testing.T) {
	env := setupTestEnvWithStorage(t, func(s storage.Storage) storage.Storage {
		return undeletableStorage{Storage: s}
	})

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	helper, err := env.newUser("helper")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow"]`)
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, helper.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}

	taskId, err := owner.createTask(project.ProjectId, "label birds", "bounding_box", []string{"a.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	// The upload tree cleanup is best effort, a filesystem error there must
	// not fail the request once the database rows are gone.
	err = owner.deleteProject(project.ProjectId)
	if err != nil {
		t.Fatal(err)
	}

	checkNoProjectRows(t, env, project.ProjectId, taskId)

	projects, err := owner.listProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Fatalf("deleted project should not be listed, got %v", projects)
	}
}
