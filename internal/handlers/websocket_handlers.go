package handlers

import (
	"net/http"

	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/feed"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/blanchy21/TipsterNew-sub000/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HandleWebSocket upgrades a session to a push connection. The session id
// comes from ?session=; an optional ?token= signs the session in.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	upgrader := ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.CORS.OriginAllowed(origin)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			s.writeError(w, r, utils.NewValidationError("session is required"))
			return
		}

		var userID string
		if token := r.URL.Query().Get("token"); token != "" {
			claims, err := s.Auth.ValidateToken(token)
			if err != nil {
				s.writeError(w, r, utils.NewAppError(utils.ErrInvalidToken, "Invalid or expired token", err))
				return
			}
			userID = claims.UserID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the HTTP error.
			utils.Log.WithError(err).WithField("sessionID", sessionID).Warn("WebSocket upgrade failed")
			return
		}

		client := &websocket.Client{
			Hub:       s.Hub,
			SessionID: sessionID,
			UserID:    userID,
			Conn:      conn,
			Send:      make(chan []byte, 256),
			OnCommand: s.handleCommand,
		}
		client.Hub.Register <- client

		utils.Log.WithFields(logrus.Fields{
			"sessionID": sessionID,
			"userID":    userID,
		}).Info("WebSocket client connected")

		go client.WritePump()
		go client.ReadPump()

		// Later pushes only happen on change, so the current feed goes out now.
		go s.pushCurrentFeed(socketSession(sessionID, userID))
	}
}

// socketSession leaves the session's user alone when the socket carried no
// token; the same session may be signed in over HTTP.
func socketSession(sessionID, userID string) actors.Session {
	return actors.Session{SessionID: sessionID, UserID: userID, KeepUser: userID == ""}
}

func (s *Server) pushCurrentFeed(session actors.Session) {
	result, err := s.ask(s.Engine.GetFeedSupervisor(), &actors.GetFeedMsg{Session: session, Config: feed.Config{}})
	if err != nil {
		s.Hub.FeedChanged(session.SessionID, nil, err)
		return
	}
	resp := result.(*actors.FeedResponse)
	if resp.Error != "" {
		s.Hub.FeedChanged(session.SessionID, nil, utils.NewStoreUnavailableError("feed", nil))
		return
	}
	s.Hub.FeedChanged(session.SessionID, resp.Tips, nil)
}

// handleCommand routes socket commands to the session's feed actor.
func (s *Server) handleCommand(c *websocket.Client, cmd websocket.Command) {
	session := socketSession(c.SessionID, c.UserID)
	switch cmd.Type {
	case "watch":
		s.Context.Send(s.Engine.GetFeedSupervisor(), &actors.WatchVerificationsMsg{Session: session, TipID: cmd.TipID})
	case "unwatch":
		s.Context.Send(s.Engine.GetFeedSupervisor(), &actors.UnwatchVerificationsMsg{Session: session, TipID: cmd.TipID})
	default:
		utils.Log.WithFields(logrus.Fields{
			"sessionID": c.SessionID,
			"type":      cmd.Type,
		}).Debug("Ignoring unknown websocket command")
	}
}

// EndSocketSession is installed as the hub's OnSessionClosed callback.
func (s *Server) EndSocketSession(sessionID string) {
	s.Context.Send(s.Engine.GetFeedSupervisor(), &actors.EndSessionMsg{SessionID: sessionID})
}
