package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func() error{
		func() error { return validateServer(cfg.Server) },
		func() error { return validateKafka(cfg.Broker.Kafka) },
		func() error { return validateDatabase(cfg.Database) },
		func() error { return validateReports(cfg.Reports) },
		func() error { return validateJobs(cfg.Jobs) },
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Topics.InventoryEvents == "" {
		return &ValidationError{
			Field:   "broker.kafka.topics.inventory_events",
			Message: "inventory events topic is required",
		}
	}

	if err := validateSecurity(cfg); err != nil {
		return err
	}

	if cfg.Batch.MaxMessages < 0 {
		return &ValidationError{
			Field:   "broker.kafka.batch.max_messages",
			Message: "max_messages must be non-negative",
		}
	}

	return validateRetry("broker.kafka.redelivery", cfg.Redelivery)
}

func validateSecurity(cfg KafkaConfig) error {
	switch strings.ToLower(cfg.SecurityProtocol) {
	case "", "plain", "plaintext":
		return nil
	case "ssl":
		return nil
	case "sasl_ssl", "sasl_plaintext":
	default:
		return &ValidationError{
			Field:   "broker.kafka.security_protocol",
			Message: fmt.Sprintf("unknown security protocol: %s (supported: plain, plaintext, ssl, sasl_ssl, sasl_plaintext)", cfg.SecurityProtocol),
		}
	}

	switch strings.ToUpper(cfg.SASL.Mechanism) {
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return &ValidationError{
			Field:   "broker.kafka.sasl.mechanism",
			Message: fmt.Sprintf("unsupported SASL mechanism: %q (supported: PLAIN, SCRAM-SHA-256, SCRAM-SHA-512)", cfg.SASL.Mechanism),
		}
	}

	if cfg.SASL.Username == "" {
		return &ValidationError{
			Field:   "broker.kafka.sasl.username",
			Message: "SASL username is required",
		}
	}

	return nil
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier < 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if err := validatePostgres(cfg.Postgres); err != nil {
		return err
	}

	return validateRedis(cfg.Redis)
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateReports(cfg ReportsConfig) error {
	if cfg.MaxSizeBytes < 0 {
		return &ValidationError{
			Field:   "reports.max_size_bytes",
			Message: "max_size_bytes must be non-negative",
		}
	}

	if cfg.RateLimitRPS < 0 {
		return &ValidationError{
			Field:   "reports.rate_limit_rps",
			Message: "rate_limit_rps must be non-negative",
		}
	}

	if cfg.S3.Endpoint != "" {
		if _, err := url.Parse("//" + cfg.S3.Endpoint); err != nil || strings.Contains(cfg.S3.Endpoint, "://") {
			return &ValidationError{
				Field:   "reports.s3.endpoint",
				Message: "endpoint must be host[:port] without a scheme",
			}
		}
		if cfg.SSLOnly && !cfg.S3.UseTLS {
			return &ValidationError{
				Field:   "reports.s3.use_tls",
				Message: "use_tls must be enabled when reports.ssl_only is set",
			}
		}
	}

	return validateRetry("reports.retry", cfg.Retry)
}

func validateJobs(cfg JobsConfig) error {
	if cfg.Queue == "" {
		return &ValidationError{
			Field:   "jobs.queue",
			Message: "job queue name is required",
		}
	}

	if cfg.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "jobs.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	return nil
}
