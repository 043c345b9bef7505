package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Session   SessionSettings   `mapstructure:"session"`
	Anomaly   AnomalySettings   `mapstructure:"anomaly"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and the key namespaces the
// repositories use.
type RedisSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              int           `mapstructure:"db"`
	Password        string        `mapstructure:"password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	ActivityPrefix  string        `mapstructure:"activity_prefix"`
	ActivityTTL     time.Duration `mapstructure:"activity_ttl"`
	PatternPrefix   string        `mapstructure:"pattern_prefix"`
	RateLimitPrefix string        `mapstructure:"rate_limit_prefix"`
	RateLimitTTL    time.Duration `mapstructure:"rate_limit_ttl"`
}

// KafkaSettings configures the audit event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures sliding windows and attempt ceilings per
// endpoint group.
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	KeyExchangeAttempts int           `mapstructure:"key_exchange_attempts"`
	MessageReadAttempts int           `mapstructure:"message_read_attempts"`
	AdminAttempts       int           `mapstructure:"admin_attempts"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// SessionSettings tunes the crypto session lifecycle.
type SessionSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	SweepPeriod time.Duration `mapstructure:"sweep_period"`
}

// AnomalySettings carries the detector threshold table.
type AnomalySettings struct {
	MessagesPerMinute  int           `mapstructure:"messages_per_minute"`
	MessagesPerHour    int           `mapstructure:"messages_per_hour"`
	FailedLogins       int           `mapstructure:"failed_logins"`
	FailedLoginWindow  time.Duration `mapstructure:"failed_login_window"`
	MinLoginHistory    int           `mapstructure:"min_login_history"`
	TypicalHourShare   float64       `mapstructure:"typical_hour_share"`
	MaxTravelSpeedKmH  float64       `mapstructure:"max_travel_speed_kmh"`
	UploadsPerHour     int           `mapstructure:"uploads_per_hour"`
	UploadBytesPerHour int64         `mapstructure:"upload_bytes_per_hour"`
	MaxSingleFileBytes int64         `mapstructure:"max_single_file_bytes"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CHAT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.activity_prefix",
		"redis.activity_ttl",
		"redis.pattern_prefix",
		"redis.rate_limit_prefix",
		"redis.rate_limit_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.access_token_ttl",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.key_exchange_attempts",
		"rate_limit.message_read_attempts",
		"rate_limit.admin_attempts",
		"session.ttl",
		"session.sweep_period",
		"anomaly.messages_per_minute",
		"anomaly.messages_per_hour",
		"anomaly.failed_logins",
		"anomaly.failed_login_window",
		"anomaly.min_login_history",
		"anomaly.typical_hour_share",
		"anomaly.max_travel_speed_kmh",
		"anomaly.uploads_per_hour",
		"anomaly.upload_bytes_per_hour",
		"anomaly.max_single_file_bytes",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chat-security-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "chat")
	v.SetDefault("postgres.password", "chat_password")
	v.SetDefault("postgres.database", "chat")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.activity_prefix", "chat:activity")
	v.SetDefault("redis.activity_ttl", "24h")
	v.SetDefault("redis.pattern_prefix", "chat:pattern")
	v.SetDefault("redis.rate_limit_prefix", "chat:ratelimit")
	v.SetDefault("redis.rate_limit_ttl", "1h")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "chat")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", "15m")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "chat-security-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.key_exchange_attempts", 10)
	v.SetDefault("rate_limit.message_read_attempts", 120)
	v.SetDefault("rate_limit.admin_attempts", 30)

	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.sweep_period", "10m")

	v.SetDefault("anomaly.messages_per_minute", 30)
	v.SetDefault("anomaly.messages_per_hour", 500)
	v.SetDefault("anomaly.failed_logins", 3)
	v.SetDefault("anomaly.failed_login_window", "5m")
	v.SetDefault("anomaly.min_login_history", 10)
	v.SetDefault("anomaly.typical_hour_share", 0.30)
	v.SetDefault("anomaly.max_travel_speed_kmh", 900)
	v.SetDefault("anomaly.uploads_per_hour", 20)
	v.SetDefault("anomaly.upload_bytes_per_hour", 209715200)
	v.SetDefault("anomaly.max_single_file_bytes", 52428800)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "CHAT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
