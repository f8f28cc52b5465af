package services

import (
	"testing"

	"annotation_platform/platform/schema"

	"github.com/stretchr/testify/assert"
)

func TestCheckUploadPath(t *testing.T) {
	valid := []string{"img.jpg", "nested/dir/img.jpg", "with space.png"}
	for _, path := range valid {
		assert.NoError(t, checkUploadPath(path), path)
	}

	invalid := []string{"", "/abs.jpg", "../escape.jpg", "a/../b.jpg", "a//b.jpg", "./a.jpg", "a\\b.jpg"}
	for _, path := range invalid {
		assert.Error(t, checkUploadPath(path), path)
	}
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "alice", sanitizeUsername("alice"))
	assert.Equal(t, "alice_smith", sanitizeUsername("alice smith"))
	assert.Equal(t, "a_b_c", sanitizeUsername("a/b:c"))
	assert.Equal(t, "user-1_x", sanitizeUsername("user-1@x"))
}

func TestUserFolderName(t *testing.T) {
	name := userFolderName(schema.User{Username: "alice smith"})
	assert.Regexp(t, `^alice_smith_\d{4}-\d{2}-\d{2}$`, name)
}
