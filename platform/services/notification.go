package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"annotation_platform/platform/auth"
	"annotation_platform/platform/schema"
	"annotation_platform/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *NotificationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Get("/list", s.ListNotifications)
	r.Post("/{notification_id}/read", s.MarkRead)
	r.Post("/read-all", s.MarkAllRead)

	return r
}

type NotificationInfo struct {
	Id               uuid.UUID  `json:"id"`
	Message          string     `json:"message"`
	IsRead           bool       `json:"is_read"`
	RelatedProjectId *uuid.UUID `json:"related_project_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var notifications []schema.Notification
	result := s.db.Where("user_id = ?", user.Id).Order("created_at DESC").Find(&notifications)
	if result.Error != nil {
		slog.Error("sql error listing notifications", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing notifications: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]NotificationInfo, 0, len(notifications))
	for _, n := range notifications {
		infos = append(infos, NotificationInfo{
			Id:               n.Id,
			Message:          n.Message,
			IsRead:           n.IsRead,
			RelatedProjectId: n.RelatedProjectId,
			CreatedAt:        n.CreatedAt,
		})
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationId, err := utils.URLParamUUID(r, "notification_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Scoping the update to the caller keeps users from marking each
	// other's notifications.
	result := s.db.Model(&schema.Notification{}).
		Where("id = ? AND user_id = ?", notificationId, user.Id).
		Update("is_read", true)
	if result.Error != nil {
		slog.Error("sql error marking notification read", "notification_id", notificationId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error marking notification read: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, fmt.Sprintf("notification %v not found", notificationId), http.StatusNotFound)
		return
	}

	utils.WriteSuccess(w)
}

func (s *NotificationService) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := s.db.Model(&schema.Notification{}).
		Where("user_id = ? AND is_read = ?", user.Id, false).
		Update("is_read", true)
	if result.Error != nil {
		slog.Error("sql error marking notifications read", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error marking notifications read: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}
