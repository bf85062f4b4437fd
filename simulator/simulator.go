package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/middleware"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type SimConfig struct {
	NumUsers         int
	NumModerators    int
	SimulationTime   time.Duration
	TipFrequency     float64 // tips per user per hour
	LikeFrequency    float64
	CommentFrequency float64
	VerifyInterval   time.Duration
	ZipfS            float64
	EngineURL        string
	JWTSecret        string
}

// SimulationMetrics is a point-in-time summary of a run.
type SimulationMetrics struct {
	TotalUsers     int
	TotalRequests  int64
	FailedRequests int64
	TotalTips      int64
	TotalLikes     int64
	TotalComments  int64
	TotalVerified  int64
	AverageLatency time.Duration
	RequestsPerSec float64
}

type SimulatedUser struct {
	ID          string
	SessionID   string
	Token       string
	IsModerator bool
}

type Simulator struct {
	config SimConfig
	auth   *middleware.Auth
	rules  *models.SportRules
	client *http.Client
	users  []*SimulatedUser
	mods   []*SimulatedUser
	start  time.Time

	mu        sync.RWMutex
	tips      []string // pending tip ids, oldest first
	tipSports map[string]string

	requests  atomic.Int64
	failed    atomic.Int64
	latencyNs atomic.Int64
	tipCount  atomic.Int64
	likes     atomic.Int64
	comments  atomic.Int64
	verified  atomic.Int64
}

var sports = []string{"Football", "Basketball", "Tennis", "Horse Racing", "Golf", "Greyhound Racing"}

var outcomes = []models.TipStatus{models.StatusWin, models.StatusLoss, models.StatusVoid, models.StatusPlace}

func NewSimulator(config SimConfig) *Simulator {
	return &Simulator{
		config:    config,
		auth:      middleware.NewAuth(config.JWTSecret),
		rules:     models.NewSportRules(models.DefaultPlacingSports),
		client:    &http.Client{Timeout: 10 * time.Second},
		tipSports: make(map[string]string),
	}
}

// Run creates the simulated users and drives activity until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.start = time.Now()
	if err := s.createUsers(ctx); err != nil {
		return errors.Wrap(err, "initialization failed")
	}

	var wg sync.WaitGroup
	for _, u := range s.users {
		wg.Add(1)
		go func(u *SimulatedUser) {
			defer wg.Done()
			s.simulateUser(ctx, u)
		}(u)
	}
	for _, m := range s.mods {
		wg.Add(1)
		go func(m *SimulatedUser) {
			defer wg.Done()
			s.simulateModerator(ctx, m)
		}(m)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	s.endSessions()
	return nil
}

func (s *Simulator) createUsers(ctx context.Context) error {
	for i := 0; i < s.config.NumUsers+s.config.NumModerators; i++ {
		isMod := i >= s.config.NumUsers
		role := ""
		if isMod {
			role = middleware.RoleModerator
		}
		id := fmt.Sprintf("sim-user-%d", i)
		token, err := s.auth.GenerateToken(id, role)
		if err != nil {
			return err
		}
		u := &SimulatedUser{ID: id, SessionID: uuid.NewString(), Token: token, IsModerator: isMod}

		if !isMod {
			profile := map[string]interface{}{
				"displayName":     fmt.Sprintf("Tipster %d", i),
				"handle":          fmt.Sprintf("@tipster%d", i),
				"specializations": []string{sports[i%len(sports)]},
			}
			if _, err := s.request(ctx, u, http.MethodPost, "/users", profile); err != nil {
				return errors.Wrapf(err, "saving profile for %s", id)
			}
			s.users = append(s.users, u)
		} else {
			s.mods = append(s.mods, u)
		}
	}
	utils.Log.WithFields(logrus.Fields{
		"users":      len(s.users),
		"moderators": len(s.mods),
	}).Info("Simulated users created")
	return nil
}

// simulateUser publishes, likes, views and comments with exponentially
// distributed gaps derived from the configured hourly frequencies.
func (s *Simulator) simulateUser(ctx context.Context, u *SimulatedUser) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(u.ID))))
	total := s.config.TipFrequency + s.config.LikeFrequency + s.config.CommentFrequency
	if total <= 0 {
		return
	}
	rate := total / 3600
	for {
		wait := time.Duration(rng.ExpFloat64() / rate * float64(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		pick := rng.Float64() * total
		switch {
		case pick < s.config.TipFrequency:
			s.publishTip(ctx, u, rng)
		case pick < s.config.TipFrequency+s.config.LikeFrequency:
			s.likeTip(ctx, u, rng)
		default:
			s.commentOnTip(ctx, u, rng)
		}
	}
}

func (s *Simulator) publishTip(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	sport := sports[rng.Intn(len(sports))]
	body := map[string]interface{}{
		"sport":   sport,
		"title":   fmt.Sprintf("%s pick #%d", sport, rng.Intn(10000)),
		"content": "Simulated analysis",
		"odds":    fmt.Sprintf("%d/%d", rng.Intn(9)+1, rng.Intn(4)+1),
		"tags":    []string{sport, "sim"},
	}
	data, err := s.request(ctx, u, http.MethodPost, "/tips", body)
	if err != nil {
		return
	}
	var tip struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &tip); err != nil || tip.ID == "" {
		return
	}
	s.mu.Lock()
	s.tips = append(s.tips, tip.ID)
	s.tipSports[tip.ID] = sport
	s.mu.Unlock()
	s.tipCount.Add(1)
}

func (s *Simulator) likeTip(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	tipID, ok := s.pickTip(rng)
	if !ok {
		return
	}
	if _, err := s.request(ctx, u, http.MethodPost, "/tips/view", map[string]string{"tipId": tipID}); err != nil {
		return
	}
	if _, err := s.request(ctx, u, http.MethodPost, "/tips/like", map[string]string{"tipId": tipID}); err == nil {
		s.likes.Add(1)
	}
}

func (s *Simulator) commentOnTip(ctx context.Context, u *SimulatedUser, rng *rand.Rand) {
	tipID, ok := s.pickTip(rng)
	if !ok {
		return
	}
	body := map[string]string{"tipId": tipID, "content": "Good shout"}
	if _, err := s.request(ctx, u, http.MethodPost, "/comments", body); err == nil {
		s.comments.Add(1)
	}
}

// simulateModerator settles the oldest pending tip on every tick and reads
// the leaderboard.
func (s *Simulator) simulateModerator(ctx context.Context, m *SimulatedUser) {
	interval := s.config.VerifyInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if len(s.tips) == 0 {
			s.mu.Unlock()
			continue
		}
		tipID := s.tips[0]
		s.tips = s.tips[1:]
		sport := s.tipSports[tipID]
		delete(s.tipSports, tipID)
		s.mu.Unlock()

		status := outcomes[rng.Intn(len(outcomes))]
		if !s.rules.AllowsStatus(sport, status) {
			status = models.StatusLoss
		}
		body := map[string]string{"tipId": tipID, "status": string(status), "note": "simulated result"}
		if _, err := s.request(ctx, m, http.MethodPost, "/tips/verify", body); err == nil {
			s.verified.Add(1)
		}
		_, _ = s.request(ctx, m, http.MethodGet, "/leaderboard", nil)
	}
}

// pickTip favours recent tips with a Zipf distribution over the pending list.
func (s *Simulator) pickTip(rng *rand.Rand) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.tips)
	if n == 0 {
		return "", false
	}
	if n == 1 || s.config.ZipfS <= 1 {
		return s.tips[rng.Intn(n)], true
	}
	zipf := rand.NewZipf(rng, s.config.ZipfS, 1, uint64(n-1))
	return s.tips[n-1-int(zipf.Uint64())], true
}

func (s *Simulator) endSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, u := range append(append([]*SimulatedUser(nil), s.users...), s.mods...) {
		_, _ = s.request(ctx, u, http.MethodDelete, "/session", nil)
	}
}

func (s *Simulator) request(ctx context.Context, u *SimulatedUser, method, endpoint string, data interface{}) ([]byte, error) {
	start := time.Now()
	body, err := s.do(ctx, u, method, endpoint, data)
	s.requests.Add(1)
	s.latencyNs.Add(int64(time.Since(start)))
	// Requests cut off by the end of the run are not failures.
	if err != nil && ctx.Err() == nil {
		s.failed.Add(1)
		utils.Log.WithFields(logrus.Fields{
			"user":     u.ID,
			"method":   method,
			"endpoint": endpoint,
		}).WithError(err).Debug("Request failed")
	}
	return body, err
}

func (s *Simulator) do(ctx context.Context, u *SimulatedUser, method, endpoint string, data interface{}) ([]byte, error) {
	var reader io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.Token)
	req.Header.Set(middleware.SessionHeader, u.SessionID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return body, errors.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			utils.Log.WithFields(logrus.Fields{
				"requests":    m.TotalRequests,
				"failed":      m.FailedRequests,
				"tips":        m.TotalTips,
				"likes":       m.TotalLikes,
				"comments":    m.TotalComments,
				"verified":    m.TotalVerified,
				"avg_latency": m.AverageLatency,
				"rps":         fmt.Sprintf("%.1f", m.RequestsPerSec),
			}).Info("Simulation progress")
		}
	}
}

func (s *Simulator) GetMetrics() SimulationMetrics {
	requests := s.requests.Load()
	m := SimulationMetrics{
		TotalUsers:     len(s.users) + len(s.mods),
		TotalRequests:  requests,
		FailedRequests: s.failed.Load(),
		TotalTips:      s.tipCount.Load(),
		TotalLikes:     s.likes.Load(),
		TotalComments:  s.comments.Load(),
		TotalVerified:  s.verified.Load(),
	}
	if requests > 0 {
		m.AverageLatency = time.Duration(s.latencyNs.Load() / requests)
	}
	if elapsed := time.Since(s.start).Seconds(); elapsed > 0 && !s.start.IsZero() {
		m.RequestsPerSec = float64(requests) / elapsed
	}
	return m
}
