package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Routing
		r.Post("/decide", h.Decide)
		r.Post("/suggest", h.Suggest)

		// Per-task decision trail and feedback
		r.Get("/tasks/{id}/history", h.TaskHistory)
		r.Get("/tasks/{id}/decision", h.LatestDecision)
		r.Post("/tasks/{id}/feedback", h.SubmitFeedback)
		r.Get("/tasks/{id}/feedback", h.ListFeedback)

		// Cross-task decision queries
		r.Get("/decisions", h.QueryDecisions)

		// Calibration
		r.Get("/calibration", h.CalibrationReport)
		r.Post("/calibration/recompute", h.RecomputeCalibration)

		// Rule management
		r.Post("/rules/reload", h.ReloadRules)
	})
}
