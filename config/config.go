package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Redis configuration for the quote cache; empty disables caching
	RedisAddr string

	// HTTP server
	ListenAddr string

	// Lender policy defaults. The original platform hard-coded these in
	// several screens; they are configuration here so a per-lender layer
	// can override them per request.
	AffordabilityThreshold float64 // EMI may not exceed this fraction of monthly income
	EMIGraceDays           int     // days past due date before an installment is overdue
	DefaultOverdueDays     int     // overdue days before a loan may be marked defaulted

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		ListenAddr: ":8080",

		// Policy defaults
		AffordabilityThreshold: 0.30,
		EMIGraceDays:           3,
		DefaultOverdueDays:     90,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}

	if threshold := os.Getenv("AFFORDABILITY_THRESHOLD"); threshold != "" {
		parsed, err := strconv.ParseFloat(threshold, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			return nil, fmt.Errorf("invalid AFFORDABILITY_THRESHOLD: %s", threshold)
		}
		config.AffordabilityThreshold = parsed
	}

	if days := os.Getenv("EMI_GRACE_DAYS"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid EMI_GRACE_DAYS: %s", days)
		}
		config.EMIGraceDays = parsed
	}

	if days := os.Getenv("DEFAULT_OVERDUE_DAYS"); days != "" {
		parsed, err := strconv.Atoi(days)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid DEFAULT_OVERDUE_DAYS: %s", days)
		}
		config.DefaultOverdueDays = parsed
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return config, nil
}
