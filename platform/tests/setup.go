package tests

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/platform/services"
	"annotation_platform/platform/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	platform services.AnnotationPlatform
	api      chi.Router
	storage  storage.Storage
	db       *gorm.DB
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithStorage(t, nil)
}

// wrap, when non-nil, decorates the storage handed to the platform so tests
// can inject filesystem failures. env.storage stays the undecorated disk.
func setupTestEnvWithStorage(t *testing.T, wrap func(storage.Storage) storage.Storage) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.Project{}, &schema.ProjectRole{},
		&schema.Task{}, &schema.TaskAccess{}, &schema.DataAccess{},
		&schema.Notification{},
	)
	if err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewDisk(storagePath)
	platformStore := store
	if wrap != nil {
		platformStore = wrap(store)
	}

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        []byte("290zcv02ai249"),
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	platform := services.NewAnnotationPlatform(db, platformStore, userAuth, services.DefaultConfig())

	return &testEnv{platform: platform, api: platform.Routes(), storage: store, db: db}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}
