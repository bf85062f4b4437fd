package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/blanchy21/TipsterNew-sub000/simulator"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()
	utils.InitLogger("tipster-simulator", getEnv("LOG_LEVEL", "info"), os.Getenv("LOG_JSON") == "true")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		utils.Log.Fatal("JWT_SECRET is required to mint simulated user tokens")
	}

	config := simulator.SimConfig{
		NumUsers:         getInt("SIM_USERS", 10),
		NumModerators:    getInt("SIM_MODERATORS", 1),
		SimulationTime:   getDuration("SIM_DURATION", 10*time.Minute),
		TipFrequency:     20.0,
		LikeFrequency:    120.0,
		CommentFrequency: 40.0,
		VerifyInterval:   5 * time.Second,
		ZipfS:            1.07,
		EngineURL:        getEnv("ENGINE_URL", "http://localhost:8080"),
		JWTSecret:        secret,
	}

	utils.Log.WithFields(logrus.Fields{
		"engine":     config.EngineURL,
		"users":      config.NumUsers,
		"moderators": config.NumModerators,
		"duration":   config.SimulationTime,
		"zipf":       config.ZipfS,
	}).Info("Starting simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.SimulationTime)
	defer cancel()

	sim := simulator.NewSimulator(config)
	if err := sim.Run(ctx); err != nil {
		utils.Log.WithError(err).Fatal("Simulation failed")
	}

	m := sim.GetMetrics()
	utils.Log.WithFields(logrus.Fields{
		"users":       m.TotalUsers,
		"requests":    m.TotalRequests,
		"failed":      m.FailedRequests,
		"tips":        m.TotalTips,
		"likes":       m.TotalLikes,
		"comments":    m.TotalComments,
		"verified":    m.TotalVerified,
		"avg_latency": m.AverageLatency,
	}).Info("Simulation completed")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n >= 0 {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}
