package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Session *SessionHandler
	File    *FileHandler
	Quota   *StorageQuotaHandler
	Events  *EventsHandler
}

func NewRouter(h Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", confirmHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		// The event stream is long-lived and stays outside the request timeout.
		r.Get("/events", h.Events.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Minute))

			r.Post("/session", h.Session.SignIn)
			r.Delete("/session", h.Session.SignOut)

			r.Get("/dashboard", h.Session.GetDashboard)
			r.Post("/dashboard/refresh", h.Session.RefreshDashboard)

			r.Get("/quota", h.Quota.GetQuotaInfo)

			r.Get("/files", h.File.ListFiles)
			r.Post("/files", h.File.UploadFiles)
			r.Get("/files/{id}", h.File.DownloadFile)
			r.Delete("/files/{id}", h.File.DeleteFile)
		})
	})

	return r
}
