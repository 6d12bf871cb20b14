package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the streaming service reads from the
// environment so main stays lean.
type Config struct {
	Addr string

	// DatabaseURL points at the destination configuration database.
	DatabaseURL string

	// RedisURL backs the live feature-flag checker. Empty disables Redis and
	// leaves flags at their configured defaults.
	RedisURL string

	// Kafka inbox. Empty brokers disable the worker; the HTTP ingest surface
	// still works.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// SecretsMasterKey decrypts destination secret tokens at rest.
	SecretsMasterKey string

	// ConsolidatedStreaming is the default for the dispatch-path flag when
	// the flag store has no live value.
	ConsolidatedStreaming bool

	// AllowLocalNetwork disables the webhook private-address guard. Meant
	// for self-contained installations streaming to in-network sinks.
	AllowLocalNetwork bool

	ShutdownTimeout time.Duration
}

// FromEnv builds the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                  envOr("AUDITSTREAM_ADDR", ":8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		KafkaTopic:            envOr("KAFKA_TOPIC", "audit-events"),
		KafkaGroup:            envOr("KAFKA_GROUP", "auditstream"),
		SecretsMasterKey:      os.Getenv("SECRETS_MASTER_KEY"),
		ConsolidatedStreaming: envBool("CONSOLIDATED_STREAMING", false),
		AllowLocalNetwork:     envBool("ALLOW_LOCAL_NETWORK", false),
		ShutdownTimeout:       10 * time.Second,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
