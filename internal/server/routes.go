package server

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/agents", s.handleCreateAgent)
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/{id}", s.handleGetAgent)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/events/stream", s.handleStreamEvent)
		r.Get("/sessions/{id}/events", s.handleListEvents)
	})
}
