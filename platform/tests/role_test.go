package tests

import (
	"errors"
	"fmt"
	"testing"

	"annotation_platform/platform/schema"
)

func TestAssignRole(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	member, err := env.newUser("member")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, member.userId, "superuser")
	if err == nil {
		t.Fatal("invalid role should be rejected")
	}

	err = owner.assignRole(project.ProjectId, member.userId, schema.RoleDataProvider)
	if err != nil {
		t.Fatal(err)
	}

	// A second assignment for the same user must be rejected, roles are
	// unique per project and user.
	err = owner.assignRole(project.ProjectId, member.userId, schema.RoleCollaborator)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate role assignment should conflict: %v", err)
	}

	roles, err := owner.listRoles(project.ProjectId)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected owner and member roles, got %v", roles)
	}
}

func TestRolePermissions(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	collaborator, err := env.newUser("collab")
	if err != nil {
		t.Fatal(err)
	}
	outsider, err := env.newUser("outsider")
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

	// Only owners can manage roles.
	err = collaborator.assignRole(project.ProjectId, outsider.userId, schema.RoleCollaborator)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("collaborators cannot assign roles: %v", err)
	}

	_, err = outsider.listRoles(project.ProjectId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsiders cannot list roles: %v", err)
	}

	err = owner.removeRole(project.ProjectId, collaborator.userId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = collaborator.listRoles(project.ProjectId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("removed members lose access: %v", err)
	}

	// The owner's own role cannot be removed.
	err = owner.removeRole(project.ProjectId, owner.userId)
	if err == nil {
		t.Fatal("removing the owner's role should fail")
	}
}

func TestRoleAssignmentNotifies(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	member, err := env.newUser("member")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", "")
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, member.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}

	var notifications []map[string]interface{}
	err = member.Get("/notification/list").Do(&notifications)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %v", notifications)
	}

	err = member.Post(fmt.Sprintf("/notification/%v/read", notifications[0]["id"])).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = member.Get("/notification/list").Do(&notifications)
	if err != nil {
		t.Fatal(err)
	}
	if read, ok := notifications[0]["is_read"].(bool); !ok || !read {
		t.Fatalf("notification should be marked read, got %v", notifications[0])
	}
}
