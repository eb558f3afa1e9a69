package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type config struct {
	Port              string
	StoreDriver       string
	DatabaseURL       string
	DBMaxConns        int
	PropertyBaseURL   string
	StaticProperties  string
	ClosingBaseURL    string
	CallbackSecret    string
	KafkaBrokers      []string
	KafkaTopic        string
	PartyTokens       string
	LogLevel          slog.Level
	HTTPClientTimeout time.Duration
}

func loadConfig(getenv func(string) string) (config, error) {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }
	cfg := config{
		Port:              env("SERVICE_PORT"),
		StoreDriver:       strings.ToLower(env("STORE_DRIVER")),
		DatabaseURL:       env("DATABASE_URL"),
		DBMaxConns:        envIntDefault(getenv, "DB_MAX_CONNS", 10),
		PropertyBaseURL:   env("PROPERTY_BASE_URL"),
		StaticProperties:  env("STATIC_PROPERTIES"),
		ClosingBaseURL:    env("CLOSING_BASE_URL"),
		CallbackSecret:    env("CLOSING_CALLBACK_SECRET"),
		KafkaBrokers:      csv(env("KAFKA_BROKERS")),
		KafkaTopic:        env("KAFKA_TOPIC"),
		PartyTokens:       env("PARTY_TOKENS"),
		HTTPClientTimeout: time.Duration(envIntDefault(getenv, "HTTP_CLIENT_TIMEOUT_SECONDS", 10)) * time.Second,
	}
	if cfg.Port == "" {
		cfg.Port = "8085"
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = "postgres"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "negotiation.events"
	}
	level, err := parseLevel(env("LOG_LEVEL"))
	if err != nil {
		return config{}, err
	}
	cfg.LogLevel = level

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return config{}, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
		if cfg.PartyTokens == "" {
			return config{}, fmt.Errorf("PARTY_TOKENS is required when STORE_DRIVER=memory")
		}
	default:
		return config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.PropertyBaseURL == "" && cfg.StaticProperties == "" {
		return config{}, fmt.Errorf("one of PROPERTY_BASE_URL or STATIC_PROPERTIES is required")
	}
	return cfg, nil
}

func envIntDefault(getenv func(string) string, key string, def int) int {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v <= 0 {
		return def
	}
	return v
}

func csv(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", raw)
}
