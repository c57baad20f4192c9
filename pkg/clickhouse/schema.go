package clickhouse

import "fmt"

// RawTradesSchema returns the DDL for the raw trade archive. Rows are
// partitioned by day and expire after ttlDays (0 keeps them forever).
func RawTradesSchema(database, table string, ttlDays int) []string {
	ttl := ""
	if ttlDays > 0 {
		ttl = fmt.Sprintf("\nTTL toDateTime(trade_ts) + INTERVAL %d DAY", ttlDays)
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	symbol LowCardinality(String),
	price Float64,
	volume Int64,
	trade_ts DateTime64(3, 'UTC'),
	conditions Array(String),
	ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMMDD(trade_ts)
ORDER BY (symbol, trade_ts)%s`, database, table, ttl),
	}
}
