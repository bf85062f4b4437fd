package simulator

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	mu       sync.Mutex
	calls    map[string]int
	sessions map[string]bool
}

func (e *recordingEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	e.calls[r.Method+" "+r.URL.Path]++
	e.sessions[r.Header.Get(middleware.SessionHeader)] = true
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/tips":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"tip-1"}`))
	case "/leaderboard":
		_, _ = w.Write([]byte(`[]`))
	default:
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

func (e *recordingEngine) count(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[key]
}

func TestSimulatorDrivesTheAPI(t *testing.T) {
	engine := &recordingEngine{calls: make(map[string]int), sessions: make(map[string]bool)}
	srv := httptest.NewServer(engine)
	defer srv.Close()

	sim := NewSimulator(SimConfig{
		NumUsers:       3,
		NumModerators:  1,
		TipFrequency:   36000,
		VerifyInterval: 20 * time.Millisecond,
		ZipfS:          1.07,
		EngineURL:      srv.URL,
		JWTSecret:      "sim-secret",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	assert.Equal(t, 3, engine.count("POST /users"))
	assert.Equal(t, 4, engine.count("DELETE /session"))
	assert.Greater(t, engine.count("POST /tips"), 0)
	assert.Len(t, engine.sessions, 4)

	m := sim.GetMetrics()
	assert.Equal(t, 4, m.TotalUsers)
	assert.Greater(t, m.TotalTips, int64(0))
	assert.Zero(t, m.FailedRequests)
}

func TestSimulatorStopsOnEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sim := NewSimulator(SimConfig{NumUsers: 1, EngineURL: srv.URL, JWTSecret: "sim-secret"})
	err := sim.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialization failed")
}

func TestPickTipPrefersPendingTips(t *testing.T) {
	sim := NewSimulator(SimConfig{ZipfS: 1.5})
	_, ok := sim.pickTip(nil)
	assert.False(t, ok)

	sim.tips = []string{"a", "b", "c"}
	rng := newTestRand()
	for i := 0; i < 20; i++ {
		id, ok := sim.pickTip(rng)
		require.True(t, ok)
		assert.Contains(t, sim.tips, id)
	}
}

func newTestRand() *rand.Rand { return rand.New(rand.NewSource(1)) }
