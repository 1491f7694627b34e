package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/auth"
)

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

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browsers cannot send an Authorization
		// header on the handshake, so auth is a short-lived ticket
		// validated inside the handler, not JWT middleware.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleAuthMe)
			// WS ticket requires authentication - caller must be logged in
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Read-only state (every role)
			r.Get("/state", s.handleGetState)
			r.Get("/stats", s.handleGetStats)
			r.Get("/channels", s.handleListChannels)
			r.Get("/audit", s.handleListAudit)
			r.Get("/audit/recent", s.handleRecentAudit)
			r.Get("/history", s.handleListHistory)
			r.Get("/history/metrics", s.handleHistoryMetrics)
			r.Get("/system/info", s.handleSystemInfo)

			// Program reads (every role)
			r.Get("/programs", s.handleListPrograms)
			r.Get("/programs/{id}", s.handleGetProgram)
			r.Get("/programs/{id}/executions", s.handleListProgramExecutions)

			// RF control (operator and above)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermControl))

				r.Route("/control", func(r chi.Router) {
					r.Post("/connect", s.handleConnect)
					r.Post("/disconnect", s.handleDisconnect)
					r.Post("/arm", s.handleArm)
					r.Post("/start", s.handleStartBroadcast)
					r.Post("/stop", s.handleStopBroadcast)
					r.Post("/emergency", s.handleEmergencyStop)
					r.Post("/emergency/clear", s.handleClearEmergency)
					r.Post("/watchdog/reset", s.handleWatchdogReset)
				})

				r.Patch("/channels/{id}", s.handleUpdateChannel)
				r.Post("/channels/plan", s.handleChannelPlan)
				r.Put("/source", s.handleSetSource)
			})

			// Program activation (operator and above)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermProgramExecute))
				r.Post("/programs/{id}/activate", s.handleActivateProgram)
			})

			// Program management (admin)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermProgramManage))
				r.Post("/programs", s.handleCreateProgram)
				r.Patch("/programs/{id}", s.handleUpdateProgram)
				r.Delete("/programs/{id}", s.handleDeleteProgram)
			})

			// Operator accounts (admin)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermOperatorManage))
				r.Route("/operators", func(r chi.Router) {
					r.Get("/", s.handleListOperators)
					r.Post("/", s.handleCreateOperator)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetOperator)
						r.Patch("/", s.handleUpdateOperator)
						r.Delete("/", s.handleDeleteOperator)
					})
				})
			})

			// Destructive maintenance (admin)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermSystemAdmin))
				r.Post("/system/reset", s.handleSystemReset)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
