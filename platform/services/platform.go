package services

import (
	"log"
	"net/http"
	"os"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/storage"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type AnnotationPlatform struct {
	user         UserService
	project      ProjectService
	role         RoleService
	task         TaskService
	dataAccess   DataAccessService
	upload       UploadService
	annotation   AnnotationService
	notification NotificationService

	db *gorm.DB
}

func NewAnnotationPlatform(
	db *gorm.DB, storage storage.Storage, userAuth auth.IdentityProvider, config Config,
) AnnotationPlatform {
	return AnnotationPlatform{
		user:    UserService{db: db, userAuth: userAuth},
		project: ProjectService{db: db, storage: storage, userAuth: userAuth},
		role:    RoleService{db: db, userAuth: userAuth},
		task: TaskService{
			db:              db,
			userAuth:        userAuth,
			annotationTypes: config.AnnotationTypes,
		},
		dataAccess: DataAccessService{db: db, userAuth: userAuth},
		upload:     UploadService{db: db, storage: storage, userAuth: userAuth},
		annotation: AnnotationService{
			db:             db,
			storage:        storage,
			userAuth:       userAuth,
			exportDefaults: config.ExportDefaults,
		},
		notification: NotificationService{db: db, userAuth: userAuth},
		db:           db,
	}
}

func (p *AnnotationPlatform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/project", p.project.Routes())
	r.Mount("/role", p.role.Routes())
	r.Mount("/task", p.task.Routes())
	r.Mount("/data-access", p.dataAccess.Routes())
	r.Mount("/upload", p.upload.Routes())
	r.Mount("/annotation", p.annotation.Routes())
	r.Mount("/notification", p.notification.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
