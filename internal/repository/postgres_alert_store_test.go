package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"TradePulse/internal/domain/models"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExec struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeExec) Ping(context.Context) error { return f.err }

func TestPostgresAlertStoreSave(t *testing.T) {
	db := &fakeExec{}
	s := NewPostgresAlertStore(db)
	a := models.AlertEvent{Symbol: "AAPL", Type: models.AlertVolumeSpike, Severity: models.SeverityHigh, Value: 5.4, Ts: 1_700_000_040_000}

	if err := s.SaveAlert(context.Background(), a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(db.sql[0], "ON CONFLICT (ticker, alert_type, ts) DO NOTHING") {
		t.Fatalf("insert is not idempotent: %s", db.sql[0])
	}
	args := db.args[0]
	if args[0] != "AAPL" || args[1] != "volume_spike" || args[2] != "high" || args[3] != 5.4 {
		t.Fatalf("args = %v", args)
	}
	if ts, ok := args[4].(time.Time); !ok || !ts.Equal(time.UnixMilli(1_700_000_040_000)) {
		t.Fatalf("ts arg = %v", args[4])
	}
}

func TestPostgresAlertStoreWrapsErrors(t *testing.T) {
	boom := errors.New("conn refused")
	s := NewPostgresAlertStore(&fakeExec{err: boom})
	if err := s.SaveAlert(context.Background(), models.AlertEvent{Symbol: "X"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Init(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("init err = %v", err)
	}
}
