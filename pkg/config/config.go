package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"carbid/pkg/logger"
)

type Config struct {
	PostgresURL         string
	PostgresConnTimeout time.Duration
	PostgresMaxConns    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	// HTTP API rate limiting (per client).
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Real-time admission control (per origin).
	MaxConnsPerOrigin  int
	MessageRateLimit   int
	MessageRateWindow  time.Duration
	BidQueueDepth      int
	BidProcessTimeout  time.Duration
	ConnSendBufferSize int
	MaxInboundMsgBytes int64

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log *logger.Logger
}

func Load(serviceName string) *Config {
	cfg := &Config{
		PostgresURL:         getEnvStr(EnvPostgresURL, DefaultPostgresURL),
		PostgresConnTimeout: getEnvDuration(EnvPostgresConnTimeout, DefaultPostgresConnTimeout),
		PostgresMaxConns:    getEnvNum(EnvPostgresMaxConns, DefaultPostgresMaxConns),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		MaxConnsPerOrigin:  getEnvNum(EnvMaxConnsPerOrigin, DefaultMaxConnsPerOrigin),
		MessageRateLimit:   getEnvNum(EnvMessageRateLimit, DefaultMessageRateLimit),
		MessageRateWindow:  getEnvDuration(EnvMessageRateWindow, DefaultMessageRateWindow),
		BidQueueDepth:      getEnvNum(EnvBidQueueDepth, DefaultBidQueueDepth),
		BidProcessTimeout:  getEnvDuration(EnvBidProcessTimeout, DefaultBidProcessTimeout),
		ConnSendBufferSize: getEnvNum(EnvConnSendBufferSize, DefaultConnSendBufferSize),
		MaxInboundMsgBytes: int64(getEnvNum(EnvMaxInboundMsgBytes, DefaultMaxInboundMsgBytes)),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.PostgresURL == "" {
		errors = append(errors, "PostgresURL cannot be empty")
	} else if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresURL) {
		errors = append(errors, fmt.Sprintf("PostgresURL must start with 'postgres://' or 'postgresql://', got: %s", cfg.PostgresURL))
	}
	if cfg.PostgresConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PostgresConnTimeout must be positive, got: %s", cfg.PostgresConnTimeout))
	}
	if cfg.PostgresMaxConns <= 0 {
		errors = append(errors, fmt.Sprintf("PostgresMaxConns must be positive, got: %d", cfg.PostgresMaxConns))
	}

	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}

	if cfg.MaxConnsPerOrigin <= 0 {
		errors = append(errors, fmt.Sprintf("MaxConnsPerOrigin must be positive, got: %d", cfg.MaxConnsPerOrigin))
	}
	if cfg.MessageRateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("MessageRateLimit must be positive, got: %d", cfg.MessageRateLimit))
	}
	if cfg.MessageRateWindow <= 0 {
		errors = append(errors, fmt.Sprintf("MessageRateWindow must be positive, got: %s", cfg.MessageRateWindow))
	}
	if cfg.BidQueueDepth <= 0 {
		errors = append(errors, fmt.Sprintf("BidQueueDepth must be positive, got: %d", cfg.BidQueueDepth))
	}
	if cfg.BidProcessTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("BidProcessTimeout must be positive, got: %s", cfg.BidProcessTimeout))
	}
	if cfg.ConnSendBufferSize <= 0 {
		errors = append(errors, fmt.Sprintf("ConnSendBufferSize must be positive, got: %d", cfg.ConnSendBufferSize))
	}
	if cfg.MaxInboundMsgBytes <= 0 {
		errors = append(errors, fmt.Sprintf("MaxInboundMsgBytes must be positive, got: %d", cfg.MaxInboundMsgBytes))
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"postgres_url", redactPostgresURL(cfg.PostgresURL),
		"postgres_conn_timeout", cfg.PostgresConnTimeout,
		"postgres_max_conns", cfg.PostgresMaxConns,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"max_conns_per_origin", cfg.MaxConnsPerOrigin,
		"message_rate_limit", cfg.MessageRateLimit,
		"message_rate_window", cfg.MessageRateWindow,
		"bid_queue_depth", cfg.BidQueueDepth,
		"bid_process_timeout", cfg.BidProcessTimeout,
		"conn_send_buffer_size", cfg.ConnSendBufferSize,
		"max_inbound_msg_bytes", cfg.MaxInboundMsgBytes,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactPostgresURL(url string) string {
	credentialRegex := regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(url, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	if offset < 0 {
		return 0
	}
	return offset
}
