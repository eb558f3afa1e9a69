package main

import (
	"log/slog"
	"testing"
	"time"
)

func envMap(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"DATABASE_URL":      "postgres://localhost/dealroom",
		"PROPERTY_BASE_URL": "http://properties:8080",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "8085" || cfg.StoreDriver != "postgres" || cfg.DBMaxConns != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KafkaTopic != "negotiation.events" || len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("unexpected kafka defaults: %+v", cfg)
	}
	if cfg.HTTPClientTimeout != 10*time.Second || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected timeout/level: %+v", cfg)
	}
}

func TestLoadConfigMemoryMode(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{
		"STORE_DRIVER":                "Memory",
		"PARTY_TOKENS":                "tb:buyer,ts:seller",
		"STATIC_PROPERTIES":           "prop_1:seller:house",
		"KAFKA_BROKERS":               "kafka-1:9092, kafka-2:9092,",
		"LOG_LEVEL":                   "debug",
		"DB_MAX_CONNS":                "-3",
		"HTTP_CLIENT_TIMEOUT_SECONDS": "3",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.DBMaxConns != 10 || cfg.HTTPClientTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigRejectsIncompleteSetups(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url":  {"PROPERTY_BASE_URL": "http://p"},
		"memory without tokens": {"STORE_DRIVER": "memory", "STATIC_PROPERTIES": "p:s:house"},
		"no property source":    {"DATABASE_URL": "postgres://x"},
		"unknown driver":        {"STORE_DRIVER": "sqlite", "PROPERTY_BASE_URL": "http://p"},
		"unknown log level":     {"DATABASE_URL": "postgres://x", "PROPERTY_BASE_URL": "http://p", "LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		if _, err := loadConfig(envMap(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
