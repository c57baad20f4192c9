package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/clickhouse"
)

// Rows per INSERT statement.
const archiveChunkSize = 2000

// ClickHouseTradeArchive appends accepted trades to the raw_trades table.
type ClickHouseTradeArchive struct {
	db       *sql.DB
	database string
	table    string
	ttlDays  int
}

func NewClickHouseTradeArchive(db *sql.DB, database, table string, ttlDays int) *ClickHouseTradeArchive {
	return &ClickHouseTradeArchive{db: db, database: database, table: table, ttlDays: ttlDays}
}

func (s *ClickHouseTradeArchive) Init(ctx context.Context) error {
	for _, stmt := range clickhouse.RawTradesSchema(s.database, s.table, s.ttlDays) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse: init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseTradeArchive) StoreBatch(ctx context.Context, trades []models.TradeEvent) error {
	for start := 0; start < len(trades); start += archiveChunkSize {
		end := start + archiveChunkSize
		if end > len(trades) {
			end = len(trades)
		}
		q, args := buildTradeInsert(s.database+"."+s.table, trades[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("clickhouse: insert %d trades: %w", len(args)/5, err)
		}
	}
	return nil
}

// buildTradeInsert renders a multi-row insert. Rows without a symbol or
// timestamp are skipped; an empty query means nothing to write.
func buildTradeInsert(table string, trades []models.TradeEvent) (string, []interface{}) {
	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*5)
	for _, t := range trades {
		if t.Symbol == "" || t.EventTimeMs <= 0 {
			continue
		}
		conditions := t.Conditions
		if conditions == nil {
			conditions = []string{}
		}
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, t.Symbol, t.Price, t.Volume, time.UnixMilli(t.EventTimeMs).UTC(), conditions)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, price, volume, trade_ts, conditions) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func (s *ClickHouseTradeArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.TradeArchive = (*ClickHouseTradeArchive)(nil)
