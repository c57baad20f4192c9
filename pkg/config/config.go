package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" env:"ENVIRONMENT" default:"development" validate:"oneof=development staging production test"`
	Log         LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Server      ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Metrics     MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Engine      EngineConfig     `yaml:"engine" envPrefix:"ENGINE_"`
	Sink        SinkConfig       `yaml:"sink" envPrefix:"SINK_"`
	Kafka       KafkaConfig      `yaml:"kafka" envPrefix:"KAFKA_"`
	Redis       RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	Postgres    PostgresConfig   `yaml:"postgres" envPrefix:"POSTGRES_"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse" envPrefix:"CLICKHOUSE_"`
	Archive     ArchiveConfig    `yaml:"archive" envPrefix:"ARCHIVE_"`
}

type LogConfig struct {
	Level     string `yaml:"level" env:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format    string `yaml:"format" env:"FORMAT" default:"json" validate:"oneof=json console"`
	Output    string `yaml:"output" env:"OUTPUT" default:"stdout"`
	Collector struct {
		Enabled        bool          `yaml:"enabled" env:"ENABLED"`
		Topic          string        `yaml:"topic" env:"TOPIC" default:"trades-logs"`
		Interval       time.Duration `yaml:"interval" env:"INTERVAL" default:"1m"`
		CountThreshold int           `yaml:"count_threshold" env:"COUNT_THRESHOLD" default:"100" validate:"gte=1"`
	} `yaml:"collector" envPrefix:"COLLECTOR_"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"20s" validate:"gt=0"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" default:"true"`
	Path    string `yaml:"path" env:"PATH" default:"/metrics" validate:"startswith=/"`
}

// EngineConfig drives the per-symbol workers.
type EngineConfig struct {
	EmitInterval     time.Duration `yaml:"emit_interval" env:"EMIT_INTERVAL" default:"5s" validate:"gt=0"`
	AllowedLateness  time.Duration `yaml:"allowed_lateness" env:"ALLOWED_LATENESS" default:"30s" validate:"gte=0"`
	Retention        time.Duration `yaml:"retention" env:"RETENTION" default:"15m" validate:"gt=0"`
	VolatilityWindow time.Duration `yaml:"volatility_window" env:"VOLATILITY_WINDOW" default:"10m" validate:"gt=0"`
	SpikeThreshold   float64       `yaml:"spike_threshold" env:"SPIKE_THRESHOLD" default:"2.0" validate:"gt=1"`
	SpikeBucket      time.Duration `yaml:"spike_bucket" env:"SPIKE_BUCKET" default:"1m" validate:"gt=0"`
	SpikeBaseline    time.Duration `yaml:"spike_baseline" env:"SPIKE_BASELINE" default:"10m" validate:"gt=0"`
	MailboxSize      int           `yaml:"mailbox_size" env:"MAILBOX_SIZE" default:"1024" validate:"gte=1"`
	Backpressure     string        `yaml:"backpressure" env:"BACKPRESSURE" default:"block" validate:"oneof=block drop"`
	MaxSymbols       int           `yaml:"max_symbols" env:"MAX_SYMBOLS" validate:"gte=0"`
	Symbols          []string      `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	MaxRPS           int           `yaml:"max_rps" env:"MAX_RPS" validate:"gte=0"`
}

// SinkConfig drives the outbox in front of Redis and Postgres.
type SinkConfig struct {
	BufferSize     int           `yaml:"buffer_size" env:"BUFFER_SIZE" default:"64" validate:"gte=1"`
	MaxAttempts    int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" default:"5" validate:"gte=1"`
	BackoffMin     time.Duration `yaml:"backoff_min" env:"BACKOFF_MIN" default:"100ms" validate:"gt=0"`
	BackoffMax     time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX" default:"5s" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"3s" validate:"gt=0"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"PUBLISH_TIMEOUT" default:"3s" validate:"gt=0"`
	DropPolicy     string        `yaml:"drop_policy" env:"DROP_POLICY" default:"drop_oldest" validate:"oneof=drop_oldest drop_newest"`
	MetricsTTL     time.Duration `yaml:"metrics_ttl" env:"METRICS_TTL" default:"120s" validate:"gt=0"`
	FlushTimeout   time.Duration `yaml:"flush_timeout" env:"FLUSH_TIMEOUT" default:"10s" validate:"gt=0"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"BROKERS" envSeparator:"," default:"[\"localhost:9092\"]" validate:"min=1,dive,required"`
	Compression string   `yaml:"compression" env:"COMPRESSION" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
	Topics      struct {
		Trades string `yaml:"trades" env:"TRADES" default:"trades-raw" validate:"required"`
		Alerts string `yaml:"alerts" env:"ALERTS" default:"trades-alerts"`
		DLQ    string `yaml:"dlq" env:"DLQ"`
	} `yaml:"topics" envPrefix:"TOPIC_"`
	Producer struct {
		RequiredAcks int           `yaml:"required_acks" env:"REQUIRED_ACKS" default:"-1" validate:"oneof=-1 0 1"`
		MaxAttempts  int           `yaml:"max_attempts" env:"MAX_ATTEMPTS" default:"3"`
		Linger       time.Duration `yaml:"linger" env:"LINGER" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" env:"BATCH_BYTES" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	} `yaml:"producer" envPrefix:"PRODUCER_"`
	Consumer struct {
		GroupID         string        `yaml:"group_id" env:"GROUP_ID" default:"tradepulse-engine" validate:"required"`
		AutoOffsetReset string        `yaml:"auto_offset_reset" env:"AUTO_OFFSET_RESET" default:"latest" validate:"oneof=earliest latest"`
		Workers         int           `yaml:"workers" env:"WORKERS" default:"4" validate:"gte=1"`
		BufferSize      int           `yaml:"buffer_size" env:"BUFFER_SIZE" default:"256" validate:"gte=1"`
		RetryMax        int           `yaml:"retry_max" env:"RETRY_MAX" default:"3" validate:"gte=0"`
		BackoffMin      time.Duration `yaml:"backoff_min" env:"BACKOFF_MIN" default:"50ms"`
		BackoffMax      time.Duration `yaml:"backoff_max" env:"BACKOFF_MAX" default:"2s"`
		MinBytes        int           `yaml:"min_bytes" env:"MIN_BYTES" default:"1"`
		MaxBytes        int           `yaml:"max_bytes" env:"MAX_BYTES" default:"10485760"`
	} `yaml:"consumer" envPrefix:"CONSUMER_"`
}

// RedisConfig configures the snapshot store. With Enabled false snapshots
// stay in process memory.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED" default:"true"`
	Host         string        `yaml:"host" env:"HOST" default:"localhost"`
	Port         int           `yaml:"port" env:"PORT" default:"6379" validate:"gte=1,lte=65535"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB" validate:"gte=0"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE" default:"20"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS" default:"4"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT" default:"5s"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn" env:"DSN"`
	Host     string `yaml:"host" env:"HOST" default:"localhost"`
	Port     int    `yaml:"port" env:"PORT" default:"5432" validate:"gte=1,lte=65535"`
	Database string `yaml:"database" env:"DATABASE" default:"tradepulse"`
	User     string `yaml:"user" env:"USER" default:"tradepulse"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns int    `yaml:"min_conns" env:"MIN_CONNS" default:"1" validate:"gte=0"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" env:"HOST"`
	Port             int           `yaml:"port" env:"PORT" default:"9000"`
	Database         string        `yaml:"database" env:"DATABASE" default:"tradepulse"`
	User             string        `yaml:"user" env:"USER" default:"default"`
	Password         string        `yaml:"password" env:"PASSWORD"`
	UseHTTP          bool          `yaml:"use_http" env:"USE_HTTP"`
	AsyncInsert      bool          `yaml:"async_insert" env:"ASYNC_INSERT" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert" env:"WAIT_FOR_ASYNC_INSERT"`
	DialTimeout      time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" env:"MAX_EXECUTION_TIME" default:"30s"`
}

// ArchiveConfig controls the raw trade archive in ClickHouse.
type ArchiveConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Table        string        `yaml:"table" env:"TABLE" default:"raw_trades" validate:"required"`
	TTLDays      int           `yaml:"ttl_days" env:"TTL_DAYS" default:"30" validate:"gte=0"`
	BufferSize   int           `yaml:"buffer_size" env:"BUFFER_SIZE" default:"10000" validate:"gte=1"`
	BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE" default:"500" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT" default:"2s" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Load builds the configuration: defaults, then the YAML file (if path is
// not empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	for i, s := range c.Engine.Symbols {
		c.Engine.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks tags and the relations between fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	e := c.Engine
	if e.VolatilityWindow > e.Retention {
		return fmt.Errorf("engine.volatility_window %s exceeds engine.retention %s", e.VolatilityWindow, e.Retention)
	}
	if e.SpikeBaseline+e.SpikeBucket > e.Retention {
		return fmt.Errorf("engine.spike_baseline + engine.spike_bucket exceeds engine.retention %s", e.Retention)
	}
	if c.Sink.BackoffMin > c.Sink.BackoffMax {
		return fmt.Errorf("sink.backoff_min %s exceeds sink.backoff_max %s", c.Sink.BackoffMin, c.Sink.BackoffMax)
	}
	if c.Kafka.Consumer.BackoffMin > c.Kafka.Consumer.BackoffMax {
		return fmt.Errorf("kafka.consumer.backoff_min exceeds kafka.consumer.backoff_max")
	}
	if c.Archive.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when archive is enabled")
	}
	if c.Log.Collector.Enabled && c.Log.Collector.Topic == "" {
		return fmt.Errorf("log.collector.topic is required when the collector is enabled")
	}
	if c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host or postgres.dsn is required")
	}
	return nil
}
