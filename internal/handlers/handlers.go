package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/engine"
	"github.com/blanchy21/TipsterNew-sub000/internal/engine/actors"
	"github.com/blanchy21/TipsterNew-sub000/internal/middleware"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/blanchy21/TipsterNew-sub000/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server holds all server dependencies, including the actor system and engine
type Server struct {
	System         *actor.ActorSystem
	Context        *actor.RootContext
	Engine         *engine.Engine
	Store          database.Store
	Metrics        *utils.MetricsCollector
	Hub            *websocket.Hub
	Auth           *middleware.Auth
	CORS           *middleware.CORSConfig
	RequestTimeout time.Duration
	MetricsEnabled bool // serve /metrics
}

// NewServer creates a new Server instance with the given components
func NewServer(
	system *actor.ActorSystem,
	engine *engine.Engine,
	store database.Store,
	metrics *utils.MetricsCollector,
	hub *websocket.Hub,
	auth *middleware.Auth,
	cors *middleware.CORSConfig,
	requestTimeout time.Duration,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second // Default timeout for actor requests
	}
	return &Server{
		System:         system,
		Context:        system.Root,
		Engine:         engine,
		Store:          store,
		Metrics:        metrics,
		Hub:            hub,
		Auth:           auth,
		CORS:           cors,
		RequestTimeout: requestTimeout,
		MetricsEnabled: true,
	}
}

// Routes registers every endpoint. Each handler sees the bearer token's
// claims, if any, in its request context.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(path string, handler http.HandlerFunc) {
		mux.HandleFunc(path, s.instrument(path, s.Auth.OptionalAuth(handler)))
	}

	handle("/health", s.HandleHealth())
	handle("/feed", s.HandleFeed())
	handle("/session", s.HandleEndSession())
	handle("/tips", s.HandleTips())
	handle("/tips/like", s.HandleLike())
	handle("/tips/view", s.HandleView())
	handle("/tips/verify", s.HandleVerify())
	handle("/tips/verifications", s.HandleVerifications())
	handle("/comments", s.HandleComments())
	handle("/users", s.HandleSaveProfile())
	handle("/users/stats", s.HandleUserStats())
	handle("/leaderboard", s.HandleLeaderboard())
	mux.HandleFunc("/ws", s.instrument("/ws", s.HandleWebSocket()))
	if s.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	return middleware.CORSMiddleware(s.CORS)(mux)
}

func (s *Server) instrument(path string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.Metrics.IncrementRequests()
		handler(w, r)
		s.Metrics.AddOperationLatency("http"+path, time.Since(start))
	}
}

// ask sends msg to pid and unwraps an *utils.AppError reply into an error.
func (s *Server) ask(pid *actor.PID, msg interface{}) (interface{}, error) {
	result, err := s.Context.RequestFuture(pid, msg, s.RequestTimeout).Result()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrActorTimeout, "Actor communication timeout", err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

// sessionFrom builds the actor session for a request from the session header
// and the authenticated user.
func sessionFrom(r *http.Request) (actors.Session, error) {
	sessionID := r.Header.Get(middleware.SessionHeader)
	if sessionID == "" {
		return actors.Session{}, utils.NewValidationError(middleware.SessionHeader + " header is required")
	}
	return actors.Session{
		SessionID: sessionID,
		UserID:    middleware.GetUserIDFromContext(r.Context()),
	}, nil
}

func requireUser(r *http.Request) (string, error) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		return "", utils.NewUnauthorizedError("sign in required")
	}
	return userID, nil
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.NewValidationError("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.WithError(err).Warn("Failed to encode response")
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := utils.ToAppError(err)
	status := utils.AppErrorToHTTPStatus(appErr.Code)
	s.Metrics.IncrementErrors()

	entry := utils.Log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"code":   appErr.Code,
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.Debug(appErr.Message)
	}

	writeJSON(w, status, errorResponse{Code: appErr.Code, Message: appErr.Message})
}
