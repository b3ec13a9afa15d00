package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/uniportal/internal/web/handlers"
	"github.com/kozaktomas/uniportal/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.users, s.sessionManager)
	facesHandler := handlers.NewFacesHandler(s.faces, s.sessionManager)
	configHandler := handlers.NewConfigHandler(s.config, s.faces)
	statsHandler := handlers.NewStatsHandler(s.encodings)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Unauthenticated entry points
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)
		r.Post("/faces/auth/login", facesHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))
			r.Use(middleware.RequireActiveUser(s.users))

			r.Get("/users/me", handlers.Me)

			r.Post("/faces/auth/register", facesHandler.Register)
			r.Get("/faces/me", facesHandler.List)
			r.Delete("/faces/{id}", facesHandler.Delete)

			r.Get("/stats", statsHandler.Get)
		})
	})
}
