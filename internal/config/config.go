package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the matching engine service.
type Config struct {
	Port            int
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	SnapshotDepth   int      // default depth for book snapshots and feeds
	TradeWindow     int      // max retained trades per symbol, 0 = unbounded
	WSBuffer        int      // per-subscriber channel buffer for feeds
	JournalDir      string   // pebble trade journal directory, empty = disabled
	KafkaBrokers    []string // empty = Kafka publishing disabled
	KafkaTopic      string
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	snapshotDepth, err := getInt("SNAPSHOT_DEPTH", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_DEPTH: %w", err)
	}
	if snapshotDepth < 1 || snapshotDepth > 50 {
		return nil, fmt.Errorf("invalid SNAPSHOT_DEPTH: must be between 1 and 50")
	}

	tradeWindow, err := getInt("TRADE_WINDOW", 10000)
	if err != nil {
		return nil, fmt.Errorf("invalid TRADE_WINDOW: %w", err)
	}
	if tradeWindow < 0 {
		return nil, fmt.Errorf("invalid TRADE_WINDOW: must not be negative")
	}

	wsBuffer, err := getInt("WS_BUFFER", 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_BUFFER: %w", err)
	}
	if wsBuffer < 1 {
		return nil, fmt.Errorf("invalid WS_BUFFER: must be at least 1")
	}

	kafkaBrokers := splitList(getStr("KAFKA_BROKERS", ""))
	kafkaTopic := getStr("KAFKA_TOPIC", "nmsbook.events")
	if len(kafkaBrokers) > 0 && kafkaTopic == "" {
		return nil, fmt.Errorf("invalid KAFKA_TOPIC: required when KAFKA_BROKERS is set")
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
		SnapshotDepth:   snapshotDepth,
		TradeWindow:     tradeWindow,
		WSBuffer:        wsBuffer,
		JournalDir:      getStr("JOURNAL_DIR", ""),
		KafkaBrokers:    kafkaBrokers,
		KafkaTopic:      kafkaTopic,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

// splitList parses a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
