package handlers

import (
	"net/http"

	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// CreateCommentRequest represents a request to create a new comment
type CreateCommentRequest struct {
	TipID   string `json:"tipId"`
	Content string `json:"content"`
}

// HandleComments lists (GET ?tipId=), creates (POST) or deletes (DELETE ?id=) comments
func (s *Server) HandleComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tipID := r.URL.Query().Get("tipId")
			if tipID == "" {
				s.writeError(w, r, utils.NewValidationError("tipId is required"))
				return
			}
			result, err := s.ask(s.Engine.GetCommentActor(), &actors.GetCommentsForTipMsg{TipID: tipID})
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)

		case http.MethodPost:
			userID, err := requireUser(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			var req CreateCommentRequest
			if err := decodeBody(r, &req); err != nil {
				s.writeError(w, r, err)
				return
			}

			result, err := s.ask(s.Engine.GetCommentActor(), &actors.CreateCommentMsg{
				TipID:    req.TipID,
				AuthorID: userID,
				Content:  req.Content,
			})
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, result)

		case http.MethodDelete:
			userID, err := requireUser(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			commentID := r.URL.Query().Get("id")
			if commentID == "" {
				s.writeError(w, r, utils.NewValidationError("id is required"))
				return
			}

			result, err := s.ask(s.Engine.GetCommentActor(), &actors.DeleteCommentMsg{CommentID: commentID, UserID: userID})
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
