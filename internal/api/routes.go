package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Inbound webhook, outside /api: Brevo calls this directly.
	r.Post("/webhooks/brevo", h.BrevoWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/check", h.CheckResponses)

		r.Get("/responses", h.ListResponses)
		r.Post("/responses", h.AddManualResponse)
		r.Post("/responses/{id}/processed", h.MarkResponseProcessed)

		r.Get("/clubs", h.ListClubs)
		r.Route("/clubs/{club}", func(r chi.Router) {
			r.Get("/status", h.GetClubStatus)
			r.Get("/responses", h.ListClubResponses)
			r.Get("/conversation", h.GetConversation)
			r.Get("/emails", h.ListClubEmails)
		})

		r.Get("/research", h.ListResearch)
		r.Delete("/research/{club}", h.DeleteResearch)

		r.Post("/emails/generate", h.GenerateEmail)
		r.Post("/emails/send", h.SendEmail)

		r.Get("/stats", h.GetStats)

		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	})

	return r
}
