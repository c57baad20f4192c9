package repository

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"

	"github.com/jackc/pgx/v5/pgconn"
)

// PgExecer is the part of pgxpool.Pool the alert store uses.
type PgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

const createAlertsTable = `
CREATE TABLE IF NOT EXISTS alerts (
	id         BIGSERIAL PRIMARY KEY,
	ticker     TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	severity   TEXT NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT alerts_ticker_type_ts_key UNIQUE (ticker, alert_type, ts)
);
CREATE INDEX IF NOT EXISTS alerts_ts_idx ON alerts (ts DESC);`

const insertAlert = `INSERT INTO alerts (ticker, alert_type, severity, value, ts)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (ticker, alert_type, ts) DO NOTHING`

// PostgresAlertStore is the durable alert record. Re-inserting an alert
// with the same (ticker, type, ts) is a no-op, so retries are safe.
type PostgresAlertStore struct {
	db PgExecer
}

func NewPostgresAlertStore(db PgExecer) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

func (s *PostgresAlertStore) Init(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createAlertsTable); err != nil {
		return fmt.Errorf("postgres: create alerts: %w", err)
	}
	return nil
}

func (s *PostgresAlertStore) SaveAlert(ctx context.Context, a models.AlertEvent) error {
	_, err := s.db.Exec(ctx, insertAlert,
		a.Symbol, string(a.Type), string(a.Severity), a.Value, time.UnixMilli(a.Ts).UTC())
	if err != nil {
		return fmt.Errorf("postgres: save alert %s@%d: %w", a.Symbol, a.Ts, err)
	}
	return nil
}

func (s *PostgresAlertStore) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

var _ domrepo.AlertStore = (*PostgresAlertStore)(nil)
