package handlers

import (
	"net/http"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/feed"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}

		result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.GetSessionCountMsg{})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"sessions":    result,
			"metrics":     s.Metrics.Snapshot(),
			"server_time": time.Now(),
		})
	}
}

// HandleFeed returns the session's visible feed derived from the query
// parameters (view, sport, q, time, status, userType, odds, sort, tag, following).
func (s *Server) HandleFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cfg, err := feed.ConfigFromValues(r.URL.Query())
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.GetFeedMsg{Session: session, Config: cfg})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := result.(*actors.FeedResponse)
		status := http.StatusOK
		if resp.Error != "" {
			// The feed failed closed; the body still carries the empty list.
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// HandleEndSession releases a session's feed actor and its subscriptions.
func (s *Server) HandleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodDelete) {
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.EndSessionMsg{SessionID: session.SessionID}); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, &models.StatusResponse{Success: true, Message: "session ended"})
	}
}
