package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Inbound tracker webhooks (HMAC or query-secret authenticated)
	mux.HandleFunc("/webhooks/ticketing", s.app.WebhookHandler.IngestHandler)

	// API routes - Tickets
	mux.HandleFunc("/api/tickets", s.handleTicketsRoute)
	mux.HandleFunc("/api/tickets/", s.handleTicketRoutes)

	// API routes - Tenant credentials
	mux.HandleFunc("/api/credentials/status", s.app.CredentialHandler.StatusHandler)
	mux.HandleFunc("/api/credentials/connect", s.app.CredentialHandler.ConnectHandler)
	mux.HandleFunc("/api/credentials/disconnect", s.app.CredentialHandler.DisconnectHandler)

	// API routes - Webhook observability
	mux.HandleFunc("/api/webhooks/stats", s.app.WebhookHandler.StatsHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleTicketsRoute routes /api/tickets requests (list and create)
func (s *Server) handleTicketsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.TicketHandler.ListTicketsHandler,
		s.app.TicketHandler.CreateTicketHandler)
}

// handleTicketRoutes routes /api/tickets/{key} requests and subpaths
func (s *Server) handleTicketRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method == "POST" {
		if RouteByPathSuffix(w, r, "/api/tickets/", []PathSuffixRouter{
			{Suffix: "/comments", Handler: s.app.TicketHandler.AddCommentHandler},
			{Suffix: "/transition", Handler: s.app.TicketHandler.TransitionTicketHandler},
		}) {
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.TicketHandler.GetTicketHandler,
	})
}
