package tests

import (
	"errors"
	"strings"
	"testing"

	"annotation_platform/platform/schema"
)

func sampleAnnotations() map[string]interface{} {
	return map[string]interface{}{
		"photos/img1.jpg": map[string]interface{}{
			"width":  800,
			"height": 600,
			"shapes": []map[string]interface{}{
				{"type": "rectangle", "label": "sparrow", "points": []float64{0, 0, 100, 50}},
			},
		},
	}
}

func TestSaveAndExportAnnotations(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow","crow"]`)
	if err != nil {
		t.Fatal(err)
	}

	taskId, err := owner.createTask(project.ProjectId, "label birds", "bounding_box", []string{"photos/img1.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	err = owner.exportAnnotations(taskId, "yolo", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("export before any annotations should 404: %v", err)
	}

	err = owner.saveAnnotations(taskId, sampleAnnotations())
	if err != nil {
		t.Fatal(err)
	}

	var yolo map[string]string
	err = owner.exportAnnotations(taskId, "yolo", &yolo)
	if err != nil {
		t.Fatal(err)
	}
	if yolo["img1.txt"] != "0 0.062500 0.041667 0.125000 0.083333" {
		t.Fatalf("unexpected yolo output %v", yolo)
	}

	var coco map[string]interface{}
	err = owner.exportAnnotations(taskId, "coco", &coco)
	if err != nil {
		t.Fatal(err)
	}
	if len(coco["images"].([]interface{})) != 1 || len(coco["categories"].([]interface{})) != 2 {
		t.Fatalf("unexpected coco output %v", coco)
	}

	status, csvBody := owner.Get("/annotation/" + taskId + "/export/csv").DoRaw()
	if status != 200 {
		t.Fatalf("csv export failed with status %d: %v", status, csvBody)
	}
	lines := strings.Split(strings.TrimSpace(csvBody), "\n")
	if len(lines) != 2 || lines[0] != "filename,width,height,class,xmin,ymin,xmax,ymax" {
		t.Fatalf("unexpected csv output %v", csvBody)
	}

	err = owner.exportAnnotations(taskId, "avro", nil)
	if err == nil {
		t.Fatal("unsupported format should be rejected")
	}
}

func TestAnnotationAccessControl(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}
	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}

	project, err := owner.createProject("birds", "object_detection", `["sparrow"]`)
	if err != nil {
		t.Fatal(err)
	}

	taskId, err := owner.createTask(project.ProjectId, "label birds", "bounding_box", nil)
	if err != nil {
		t.Fatal(err)
	}

	err = owner.assignRole(project.ProjectId, viewer.userId, schema.RoleCollaborator)
	if err != nil {
		t.Fatal(err)
	}
	err = owner.updateAccess(taskId, []map[string]string{
		{"user_id": viewer.userId, "access_level": schema.AccessViewer},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Viewers can read but not write annotations.
	err = viewer.saveAnnotations(taskId, sampleAnnotations())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewers cannot save annotations: %v", err)
	}

	err = owner.saveAnnotations(taskId, sampleAnnotations())
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]interface{}
	err = viewer.Get("/annotation/" + taskId).Do(&doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc) != 1 {
		t.Fatalf("expected saved annotations, got %v", doc)
	}

	err = viewer.exportAnnotations(taskId, "json", &doc)
	if err != nil {
		t.Fatal(err)
	}
}
