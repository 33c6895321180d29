package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 9000)
	viper.SetDefault("server.read_timeout_seconds", 10*time.Second)
	viper.SetDefault("server.write_timeout_seconds", 10*time.Second)

	viper.SetDefault("broker.kafka.client_id", "compliance-inventory")
	viper.SetDefault("broker.kafka.security_protocol", "plaintext")
	viper.SetDefault("broker.kafka.topics.inventory_events", "platform.inventory.events")
	viper.SetDefault("broker.kafka.topics.notifications", "platform.notifications.ingress")
	viper.SetDefault("broker.kafka.topics.remediation_updates", "platform.remediation-updates.compliance")
	viper.SetDefault("broker.kafka.batch.max_messages", 100)
	viper.SetDefault("broker.kafka.batch.max_wait", time.Second)
	viper.SetDefault("broker.kafka.redelivery.initial_interval", time.Second)
	viper.SetDefault("broker.kafka.redelivery.max_interval", 30*time.Second)
	viper.SetDefault("broker.kafka.redelivery.multiplier", 2.0)

	viper.SetDefault("reports.ssl_only", true)
	viper.SetDefault("reports.max_size_bytes", 100<<20)
	viper.SetDefault("reports.timeout", 30*time.Second)
	viper.SetDefault("reports.retry.max_attempts", 3)
	viper.SetDefault("reports.retry.initial_interval", 500*time.Millisecond)
	viper.SetDefault("reports.retry.max_interval", 5*time.Second)
	viper.SetDefault("reports.retry.multiplier", 2.0)

	viper.SetDefault("jobs.queue", "compliance:jobs:delete_host")
	viper.SetDefault("jobs.worker", true)
	viper.SetDefault("jobs.poll_timeout", 5*time.Second)
	viper.SetDefault("jobs.max_attempts", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("tracing.service_name", "compliance-inventory-consumer")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.security_protocol", "BROKER_KAFKA_SECURITY_PROTOCOL")
	viper.BindEnv("broker.kafka.source", "APPLICATION_TYPE")
	viper.BindEnv("broker.kafka.sasl.mechanism", "BROKER_KAFKA_SASL_MECHANISM")
	viper.BindEnv("broker.kafka.sasl.username", "BROKER_KAFKA_SASL_USERNAME")
	viper.BindEnv("broker.kafka.sasl.password", "BROKER_KAFKA_SASL_PASSWORD")
	viper.BindEnv("broker.kafka.ssl_ca_location", "BROKER_KAFKA_SSL_CA_LOCATION")
	viper.BindEnv("broker.kafka.topics.inventory_events", "BROKER_KAFKA_TOPICS_INVENTORY_EVENTS")
	viper.BindEnv("broker.kafka.topics.upload_validation", "BROKER_KAFKA_TOPICS_UPLOAD_VALIDATION")
	viper.BindEnv("broker.kafka.topics.notifications", "BROKER_KAFKA_TOPICS_NOTIFICATIONS")
	viper.BindEnv("broker.kafka.topics.remediation_updates", "BROKER_KAFKA_TOPICS_REMEDIATION_UPDATES")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("reports.ssl_only", "REPORTS_SSL_ONLY")
	viper.BindEnv("reports.s3.endpoint", "REPORTS_S3_ENDPOINT")
	viper.BindEnv("reports.s3.access_key", "REPORTS_S3_ACCESS_KEY")
	viper.BindEnv("reports.s3.secret_key", "REPORTS_S3_SECRET_KEY")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
