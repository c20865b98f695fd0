package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the bridge health probe during /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// WebSocket: browsers cannot set headers on upgrade requests, so
		// the JWT arrives as a query parameter and is validated in the
		// handler rather than by authMiddleware.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/logout", s.handleLogout)

			// Home endpoints
			r.Route("/homes", func(r chi.Router) {
				r.Get("/", s.handleListHomes)
				r.Post("/", s.handleCreateHome)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetHome)
					r.Patch("/", s.handleUpdateHome)
					r.Delete("/", s.handleDeleteHome)
					r.Put("/shares", s.handleSetHomeShares)
					r.Get("/rooms", s.handleListRooms)
				})
			})

			// Room endpoints
			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", s.handleCreateRoom)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoom)
					r.Patch("/", s.handleUpdateRoom)
					r.Delete("/", s.handleDeleteRoom)
				})
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Put("/status", s.handleSetDeviceStatus)
					r.Put("/shares", s.handleSetDeviceShares)
					r.Get("/schedules", s.handleListSchedules)
					r.Post("/schedules", s.handleCreateSchedule)
				})
			})

			// Schedule endpoints
			r.Route("/schedules/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSchedule)
				r.Delete("/", s.handleDeleteSchedule)
			})
		})
	})

	return r
}

// handleHealth returns the server health status, including the bridge's
// transport health when a bridge is wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.bridge != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.bridge.HealthCheck(ctx); err != nil {
			resp["status"] = "degraded"
			resp["bridge"] = err.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
