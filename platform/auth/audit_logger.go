package auth

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditLogger writes one JSON line per authenticated request recording who
// touched which project, task, or upload folder, and with what outcome.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

func callerAddr(r *http.Request) string {
	for _, header := range []string{"X-Real-Ip", "X-Forwarded-For"} {
		if ip := r.Header.Get(header); ip != "" {
			return ip
		}
	}
	return r.RemoteAddr
}

// resourceAttrs collects the ids the platform's routes are keyed by so that
// audit lines can be filtered by project, task, or uploader folder.
func resourceAttrs(r *http.Request) []any {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}

	attrs := make([]any, 0, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		switch key {
		case "project_id", "task_id", "folder_id", "user_folder", "user_id", "notification_id", "format":
			attrs = append(attrs, slog.String(key, rctx.URLParams.Values[i]))
		}
	}
	return attrs
}

// Middleware logs after the handler completes, once routing has resolved the
// resource ids and the response status is known.
func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.logger.Info("request",
			"username", user.Username,
			"user_id", user.Id,
			"caller", callerAddr(r),
			"method", r.Method,
			"url", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			slog.Group("resource", resourceAttrs(r)...),
		)
	}
	return http.HandlerFunc(handler)
}
