package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// ProfileRequest is the caller's public profile
type ProfileRequest struct {
	DisplayName     string   `json:"displayName"`
	Handle          string   `json:"handle"`
	Specializations []string `json:"specializations,omitempty"`
}

// HandleSaveProfile stores the caller's profile. Only users with a profile
// appear on the leaderboard.
func (s *Server) HandleSaveProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req ProfileRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" {
			s.writeError(w, r, utils.NewValidationError("displayName is required"))
			return
		}

		user := &models.User{
			ID:              userID,
			DisplayName:     req.DisplayName,
			Handle:          strings.TrimSpace(req.Handle),
			Specializations: req.Specializations,
		}
		// Verified and follower counts are owned by other flows; keep them.
		if existing, err := s.Store.GetUser(r.Context(), userID); err == nil {
			user.Verified = existing.Verified
			user.Followers = existing.Followers
			user.Following = existing.Following
		}
		if err := s.Store.SaveUser(r.Context(), user); err != nil {
			s.writeError(w, r, utils.AsStoreError("save user", err))
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// HandleUserStats returns the stats for ?userId=, defaulting to the caller
func (s *Server) HandleUserStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			var err error
			if userID, err = requireUser(r); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		aggregator := s.Engine.GetAggregator()
		if aggregator == nil {
			s.writeError(w, r, utils.NewStoreUnavailableError("user stats", nil))
			return
		}

		st, err := aggregator.GetUserStats(r.Context(), userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// HandleLeaderboard ranks users by win rate; ?minTips= drops low-volume tipsters
func (s *Server) HandleLeaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		minTips := 0
		if raw := r.URL.Query().Get("minTips"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				s.writeError(w, r, utils.NewValidationError("minTips must be a non-negative integer"))
				return
			}
			minTips = n
		}
		aggregator := s.Engine.GetAggregator()
		if aggregator == nil {
			s.writeError(w, r, utils.NewStoreUnavailableError("leaderboard", nil))
			return
		}

		entries, err := aggregator.GetLeaderboard(r.Context(), minTips)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
