package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Options struct {
	DSN      string
	MaxConns int32
}

func Connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func MustConnect(ctx context.Context, opts Options) *pgxpool.Pool {
	pool, err := Connect(ctx, opts)
	if err != nil {
		panic(err)
	}
	return pool
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
  transaction_id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  property_id TEXT NOT NULL,
  property_type TEXT NOT NULL,
  stage SMALLINT NOT NULL DEFAULT 0,
  buyer_accepted_offer TEXT NULL,
  seller_accepted_offer TEXT NULL,
  buyer_accepted_contract BOOLEAN NOT NULL DEFAULT FALSE,
  seller_accepted_contract BOOLEAN NOT NULL DEFAULT FALSE,
  contracts_equal BOOLEAN NOT NULL DEFAULT FALSE,
  closing_id TEXT NULL,
  closed_at TIMESTAMPTZ NULL,
  payment_ref TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT transactions_parties_uniq UNIQUE (buyer_id, seller_id, property_id),
  CONSTRAINT transactions_stage_chk CHECK (stage BETWEEN 0 AND 2)
);

CREATE TABLE IF NOT EXISTS offers (
  offer_id TEXT PRIMARY KEY,
  seq BIGSERIAL,
  transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id),
  owner_id TEXT NOT NULL,
  amount BIGINT NOT NULL,
  deposit BIGINT NOT NULL,
  comment TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS offers_owner_idx ON offers(transaction_id, owner_id, created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS contracts (
  contract_id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id),
  owner_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  CONSTRAINT contracts_owner_uniq UNIQUE (transaction_id, owner_id)
);

CREATE TABLE IF NOT EXISTS clauses (
  clause_id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL REFERENCES contracts(contract_id) ON DELETE CASCADE,
  position INT NOT NULL,
  clause_key TEXT NOT NULL,
  title TEXT NOT NULL,
  kind TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  prompt TEXT NOT NULL DEFAULT '',
  explanation TEXT NOT NULL DEFAULT '',
  preview TEXT NOT NULL DEFAULT '',
  required BOOLEAN NOT NULL DEFAULT FALSE,
  text_type TEXT NOT NULL DEFAULT '',
  options JSONB NOT NULL DEFAULT '[]'::jsonb,
  value JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS clauses_contract_idx ON clauses(contract_id, position);

CREATE TABLE IF NOT EXISTS transaction_events (
  event_id TEXT PRIMARY KEY,
  seq BIGSERIAL,
  transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id),
  event_type TEXT NOT NULL,
  actor_id TEXT NOT NULL DEFAULT '',
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transaction_events_tx_idx ON transaction_events(transaction_id, seq);

CREATE TABLE IF NOT EXISTS idempotency_records (
  party_id TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  endpoint TEXT NOT NULL,
  response_status INT NOT NULL,
  response_body JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (party_id, idempotency_key, endpoint)
);

CREATE TABLE IF NOT EXISTS party_credentials (
  token_hash TEXT PRIMARY KEY,
  party_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  revoked_at TIMESTAMPTZ NULL
);
`
