package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BuzzLyutic/study-planner/pkg/respond"
)

func NewRouter(h *TaskHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signin", h.SignIn)
		r.Post("/signout", h.SignOut)
		r.Get("/profile", h.Profile)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Delete("/", h.Clear)
		r.Get("/stream", h.Stream)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/toggle", h.Toggle)
			r.Post("/log", h.LogTime)
			r.Post("/subtasks", h.AddSubtask)
			r.Patch("/subtasks/{index}", h.EditSubtask)
			r.Delete("/subtasks/{index}", h.RemoveSubtask)
			r.Post("/subtasks/{index}/log", h.LogSubtaskTime)
		})
	})

	r.Post("/api/sync", h.Sync)
	r.Get("/api/stats", h.Stats)
	r.Get("/api/settings/theme", h.GetTheme)
	r.Put("/api/settings/theme", h.SetTheme)

	return r
}
