package tests

import (
	"errors"
	"testing"

	"annotation_platform/platform/schema"
)

func setupProjectWithTask(t *testing.T, env *testEnv) (client, string, string) {
	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow"]`)
	if err != nil {
		t.Fatal(err)
	}

	taskId, err := owner.createTask(project.ProjectId, "label birds", "bounding_box", []string{"a.jpg", "b.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	return owner, project.ProjectId, taskId
}

func TestTaskCreatorIsEditor(t *testing.T) {
	env := setupTestEnv(t)
	owner, _, taskId := setupProjectWithTask(t, env)

	// The creator must show up as an editor immediately after creation,
	// before any access updates.
	entries, err := owner.getAccessList(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the creator in the access list, got %v", entries)
	}
	if entries[0].UserId.String() != owner.userId || entries[0].AccessLevel != schema.AccessEditor {
		t.Fatalf("creator should be an editor, got %v", entries[0])
	}

	task, err := owner.getTask(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if task.AccessLevel != schema.AccessEditor {
		t.Fatalf("creator's resolved access should be editor, got %v", task.AccessLevel)
	}
}

func TestBulkAccessUpdateIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	owner, projectId, taskId := setupProjectWithTask(t, env)

	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}
	editor, err := env.newUser("editor")
	if err != nil {
		t.Fatal(err)
	}

	for _, userId := range []string{viewer.userId, editor.userId} {
		if err := owner.assignRole(projectId, userId, schema.RoleCollaborator); err != nil {
			t.Fatal(err)
		}
	}

	update := []map[string]string{
		{"user_id": viewer.userId, "access_level": schema.AccessViewer},
		{"user_id": editor.userId, "access_level": schema.AccessEditor},
	}

	// Applying the same update twice must leave the same access rows.
	for i := 0; i < 2; i++ {
		if err := owner.updateAccess(taskId, update); err != nil {
			t.Fatal(err)
		}

		entries, err := owner.getAccessList(taskId)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected creator, viewer, and editor entries, got %v", entries)
		}

		levels := make(map[string]string)
		for _, entry := range entries {
			levels[entry.UserId.String()] = entry.AccessLevel
		}
		if levels[viewer.userId] != schema.AccessViewer || levels[editor.userId] != schema.AccessEditor || levels[owner.userId] != schema.AccessEditor {
			t.Fatalf("unexpected access levels %v", levels)
		}
	}
}

func TestDuplicateAccessEntriesRejected(t *testing.T) {
	env := setupTestEnv(t)
	owner, projectId, taskId := setupProjectWithTask(t, env)

	helper, err := env.newUser("helper")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.assignRole(projectId, helper.userId, schema.RoleCollaborator); err != nil {
		t.Fatal(err)
	}

	// The same user listed twice must be rejected up front, not surface as a
	// database error halfway through the update.
	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": helper.userId, "access_level": schema.AccessViewer},
		{"user_id": helper.userId, "access_level": schema.AccessEditor},
	})
	if err == nil {
		t.Fatal("update with duplicate user entries should be rejected")
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a validation error, got %v", err)
	}

	entries, err := owner.getAccessList(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("rejected update must not change access rows, got %v", entries)
	}
}

func TestTaskAccessEnforcement(t *testing.T) {
	env := setupTestEnv(t)
	owner, projectId, taskId := setupProjectWithTask(t, env)

	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}
	outsider, err := env.newUser("outsider")
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(projectId, viewer.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}

	// Collaborators without an access row default to no_access.
	_, err = viewer.getTask(taskId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("collaborator without access row cannot view task: %v", err)
	}

	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": viewer.userId, "access_level": schema.AccessViewer},
	})
	if err != nil {
		t.Fatal(err)
	}

	task, err := viewer.getTask(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if task.AccessLevel != schema.AccessViewer {
		t.Fatalf("expected viewer access, got %v", task.AccessLevel)
	}

	// Viewers cannot modify access.
	err = viewer.updateAccess(taskId, []map[string]string{
		{"user_id": viewer.userId, "access_level": schema.AccessEditor},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewers cannot update access: %v", err)
	}

	_, err = outsider.getTask(taskId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsiders cannot view tasks: %v", err)
	}

	// Setting no_access revokes a previously granted level.
	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": viewer.userId, "access_level": schema.AccessNone},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = viewer.getTask(taskId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("no_access should revoke task visibility: %v", err)
	}
}

func TestListTasksFiltersByAccess(t *testing.T) {
	env := setupTestEnv(t)
	owner, projectId, taskId := setupProjectWithTask(t, env)

	collaborator, err := env.newUser("collab")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.assignRole(projectId, collaborator.userId, schema.RoleCollaborator); err != nil {
		t.Fatal(err)
	}

	tasks, err := collaborator.listTasks(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks without granted access should be hidden, got %v", tasks)
	}

	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": collaborator.userId, "access_level": schema.AccessViewer},
	})
	if err != nil {
		t.Fatal(err)
	}

	tasks, err = collaborator.listTasks(projectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].AccessLevel != schema.AccessViewer {
		t.Fatalf("expected the task with viewer access, got %v", tasks)
	}
}

func TestProjectOwnerAlwaysEditor(t *testing.T) {
	env := setupTestEnv(t)
	owner, projectId, taskId := setupProjectWithTask(t, env)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	// Admins resolve to editor without any rows.
	task, err := admin.getTask(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if task.AccessLevel != schema.AccessEditor {
		t.Fatalf("admin should resolve to editor, got %v", task.AccessLevel)
	}

	// An update that omits the owner must not lock them out.
	helper, err := env.newUser("helper")
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.assignRole(projectId, helper.userId, schema.RoleCollaborator); err != nil {
		t.Fatal(err)
	}
	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": helper.userId, "access_level": schema.AccessViewer},
	})
	if err != nil {
		t.Fatal(err)
	}

	task, err = owner.getTask(taskId)
	if err != nil {
		t.Fatal(err)
	}
	if task.AccessLevel != schema.AccessEditor {
		t.Fatalf("owner should remain editor, got %v", task.AccessLevel)
	}
}
