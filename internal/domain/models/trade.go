package models

// TradeEvent is one executed trade as received from the input stream.
// It is not modified once decoded.
type TradeEvent struct {
	Symbol      string
	Price       float64
	Volume      int64
	EventTimeMs int64
	Conditions  []string
}

// MetricsSnapshot is the per-symbol indicator set emitted on every tick.
type MetricsSnapshot struct {
	Symbol        string
	Price         float64
	Ts            int64
	VWAP1m        float64
	VWAP5m        float64
	VWAP15m       float64
	EMA9          float64
	EMA21         float64
	Volatility10m float64
}

type AlertType string

const AlertVolumeSpike AlertType = "volume_spike"

type Severity string

const SeverityHigh Severity = "high"

// AlertEvent is a fired anomaly. Ts is the start of the offending 1-minute
// bucket, so (Symbol, Type, Ts) identifies an alert.
type AlertEvent struct {
	Symbol   string
	Type     AlertType
	Severity Severity
	Value    float64
	Ts       int64
}

// SymbolDebug is a read-only view of a worker's state for operators.
type SymbolDebug struct {
	Symbol          string  `json:"symbol"`
	Samples         int     `json:"samples"`
	WatermarkMs     int64   `json:"watermark_ms"`
	LatestEventMs   int64   `json:"latest_event_ms"`
	LastAlertBucket int64   `json:"last_alert_bucket"`
	EMA9            float64 `json:"ema9"`
	EMA21           float64 `json:"ema21"`
	Ingested        uint64  `json:"ingested"`
	Late            uint64  `json:"late"`
	Restarts        uint64  `json:"restarts"`
	MailboxDepth    int     `json:"mailbox_depth"`
}

// DebugStateRequest is the query of the worker introspection endpoint.
type DebugStateRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,max=32"`
}

// SymbolsRequest lists tracked symbols.
type SymbolsRequest struct {
	Limit int `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
