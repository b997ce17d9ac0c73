// Package config loads process configuration from the environment, the
// way the teacher repo's composition root reads PORT and DATABASE_URL
// directly from os.Getenv rather than a config file or flag set.
package config

import (
	"os"
	"strconv"
)

// Config holds every environment-derived setting the composition root
// needs to build a Bus and its transports.
type Config struct {
	// Port is the HTTP listen port. Defaults to "8080".
	Port string
	// DatabaseURL, if set, enables the Postgres audit sink. Unset means
	// the audit sink is skipped entirely — persistence is a non-goal of
	// the bus itself, so its absence is never fatal.
	DatabaseURL string
	// AsyncCapacityBytes bounds the size of an event's safe payload
	// region; Publish panics if a payload exceeds it.
	AsyncCapacityBytes int
	// Workers bounds concurrent AsyncFn handler invocations bus-wide.
	Workers int
}

// Load reads Config from the environment, applying the same defaults the
// teacher applies for PORT.
func Load() Config {
	return Config{
		Port:               envString("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AsyncCapacityBytes: envInt("EVENTMESH_ASYNC_CAPACITY", 384),
		Workers:            envInt("EVENTMESH_WORKERS", 8),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
