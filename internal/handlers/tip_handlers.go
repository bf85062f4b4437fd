package handlers

import (
	"net/http"

	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/middleware"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// TipRequest identifies the tip an engagement request targets
type TipRequest struct {
	TipID string `json:"tipId"`
}

// VerifyRequest represents a moderator's verification of a tip
type VerifyRequest struct {
	TipID  string `json:"tipId"`
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// HandleTips publishes (POST) or deletes (DELETE ?id=) tips
func (s *Server) HandleTips() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		if r.Method == http.MethodDelete {
			tipID := r.URL.Query().Get("id")
			if tipID == "" {
				s.writeError(w, r, utils.NewValidationError("id is required"))
				return
			}
			result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.DeleteTipMsg{Session: session, TipID: tipID})
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		}

		var req tips.NewTipRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.PublishTipMsg{
			Session: session,
			Author:  s.authorFor(r, session.UserID),
			Request: req,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// authorFor denormalizes the author's profile onto a new tip. Users without a
// saved profile publish under their id.
func (s *Server) authorFor(r *http.Request, userID string) models.Author {
	if userID == "" {
		return models.Author{}
	}
	user, err := s.Store.GetUser(r.Context(), userID)
	if err != nil {
		return models.Author{ID: userID, Name: userID}
	}
	return user.AsAuthor()
}

// HandleLike toggles the caller's like on a tip. Anonymous sessions get a
// local demo like that is never written to the store.
func (s *Server) HandleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req TipRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.ToggleLikeMsg{Session: session, TipID: req.TipID})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleView records a tip view. The view counter is best effort.
func (s *Server) HandleView() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		session, err := sessionFrom(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req TipRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		if _, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.ViewTipMsg{Session: session, TipID: req.TipID}); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, &models.StatusResponse{Success: true})
	}
}

// HandleVerify lets a moderator assign a terminal status to a tip
func (s *Server) HandleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		claims, ok := middleware.GetClaimsFromContext(r.Context())
		if !ok {
			s.writeError(w, r, utils.NewUnauthorizedError("sign in required"))
			return
		}
		if !claims.IsModerator() {
			s.writeError(w, r, utils.NewAppError(utils.ErrForbidden, "only moderators can verify tips", nil))
			return
		}

		var req VerifyRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.ask(s.Engine.GetVerificationActor(), &actors.VerifyTipMsg{
			TipID:       req.TipID,
			Status:      req.Status,
			ModeratorID: claims.UserID,
			Note:        req.Note,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleVerifications lists a tip's verification history, newest first
func (s *Server) HandleVerifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		tipID := r.URL.Query().Get("tipId")
		if tipID == "" {
			s.writeError(w, r, utils.NewValidationError("tipId is required"))
			return
		}

		result, err := s.ask(s.Engine.GetVerificationActor(), &actors.ListVerificationsMsg{TipID: tipID})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
