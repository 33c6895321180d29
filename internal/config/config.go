package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Reports        ReportsConfig
	Compliance     ComplianceConfig
	Jobs           JobsConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers          []string     `mapstructure:"brokers"`
	GroupID          string       `mapstructure:"group_id"`
	ClientID         string       `mapstructure:"client_id"`
	SecurityProtocol string       `mapstructure:"security_protocol"`
	Source           string       `mapstructure:"source"`
	SASL             SASLConfig   `mapstructure:"sasl"`
	SSLCALocation    string       `mapstructure:"ssl_ca_location"`
	Topics           TopicsConfig `mapstructure:"topics"`
	Batch            BatchConfig  `mapstructure:"batch"`
	Redelivery       RetryConfig  `mapstructure:"redelivery"`
}

type SASLConfig struct {
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

type TopicsConfig struct {
	InventoryEvents    string `mapstructure:"inventory_events"`
	UploadValidation   string `mapstructure:"upload_validation"`
	Notifications      string `mapstructure:"notifications"`
	RemediationUpdates string `mapstructure:"remediation_updates"`
}

type BatchConfig struct {
	MaxMessages int           `mapstructure:"max_messages"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReportsConfig struct {
	SSLOnly      bool          `mapstructure:"ssl_only"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimitRPS float64       `mapstructure:"rate_limit_rps"`
	FailFast     bool          `mapstructure:"fail_fast"`
	Retry        RetryConfig   `mapstructure:"retry"`
	S3           S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseTLS    bool   `mapstructure:"use_tls"`
	Region    string `mapstructure:"region"`
}

type ComplianceConfig struct {
	Rule string `mapstructure:"rule"`
}

type JobsConfig struct {
	Queue       string        `mapstructure:"queue"`
	Worker      bool          `mapstructure:"worker"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
