package handlers

import (
	"net/http"

	"timelock-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Router groups the handlers served by the API
type Router struct {
	Users          *UserHandler
	Partnerships   *PartnershipHandler
	Messages       *MessageHandler
	Health         *HealthHandler
	Auth           middleware.TokenValidator
	AllowedOrigins []string
}

// Handler builds the HTTP routes
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: rt.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.Get("/health", rt.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", rt.Users.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.Auth))

			r.Get("/me", rt.Users.Me)

			r.Get("/partnership", rt.Partnerships.GetPairingState)
			r.Post("/partnership/requests", rt.Partnerships.SendRequest)
			r.Get("/partnership/requests/pending", rt.Partnerships.GetPendingRequest)
			r.Get("/partnership/requests/sent", rt.Partnerships.GetSentRequest)
			r.Post("/partnership/requests/{id}/accept", rt.Partnerships.AcceptRequest)
			r.Delete("/partnership/requests/{id}", rt.Partnerships.CancelRequest)
			r.Get("/partner", rt.Partnerships.GetPartner)
			r.Get("/stats", rt.Partnerships.GetStats)

			r.Post("/messages", rt.Messages.CreateMessage)
			r.Get("/messages", rt.Messages.GetMessages)
			r.Get("/messages/today", rt.Messages.GetTodaysMessage)
			r.Get("/messages/dates", rt.Messages.GetMessageDates)
			r.Get("/messages/{id}", rt.Messages.GetMessage)
			r.Post("/messages/{id}/open", rt.Messages.OpenMessage)
		})
	})

	return r
}
