package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"auction-engine/internal/coordinator"
	"auction-engine/internal/realtime"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
)

func main() {

	repo := repository.NewMemoryRepo()

	registry := realtime.NewRegistry()
	limiter := realtime.NewRateLimiter(messageLimit(), realtime.DefaultWindow)
	router := realtime.NewRouter(registry, limiter)

	coord := coordinator.New(repo, repo, router)
	coord.SetLockTimeout(lockTimeout())

	engine := server.SetupRouter(coord, router, server.Options{
		APIRateRPS:   20,
		APIRateBurst: 40,
	})

	port := getPort()
	fmt.Printf("Starting auction server on %s...\n", port)
	if err := engine.Run(port); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// getPort returns the server port from env or defaults to ":8080"
func getPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return fmt.Sprintf(":%s", p)
	}
	return ":8080"
}

// messageLimit returns the per-connection websocket message allowance
// per window, overridable via WS_MESSAGE_LIMIT.
func messageLimit() int {
	if v := os.Getenv("WS_MESSAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return realtime.DefaultMessageLimit
}

// lockTimeout returns how long a bid waits for its auction's writer
// slot, overridable via LOCK_TIMEOUT (Go duration syntax).
func lockTimeout() time.Duration {
	if v := os.Getenv("LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return coordinator.DefaultLockTimeout
}
