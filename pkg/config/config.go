package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration for the agent hub.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Security  SecurityConfig  `yaml:"security"`
	Mailer    MailerConfig    `yaml:"mailer"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures the Postgres store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the optional Redis backend for the completion
// cache and long-term memory. An empty URL disables both.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// NATSConfig configures the optional lifecycle event bus.
type NATSConfig struct {
	URL        string `yaml:"url"`
	StreamName string `yaml:"stream_name"`
}

// ProviderTier names one model tier of the generative-text collaborator.
type ProviderTier struct {
	Name     string `yaml:"name"` // "primary", "fallback"
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// ProvidersConfig configures the chat-completion backends. ModelOrder is the
// classifier's fixed preference order (highest capability first).
type ProvidersConfig struct {
	Tiers          []ProviderTier `yaml:"tiers"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
}

// CacheConfig configures completion response caching.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Backend    string        `yaml:"backend"` // "memory" or "redis"
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxSize    int           `yaml:"max_size"`
}

// SecurityConfig configures authentication.
type SecurityConfig struct {
	EnableAuth     bool     `yaml:"enable_auth"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MailerConfig configures outbound guest mail. An empty webhook URL keeps
// mail delivery as a no-op.
type MailerConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// AutopilotConfig carries the tunable decision heuristics. The coefficients
// are configuration, not invariant business law.
type AutopilotConfig struct {
	BaseScore            int           `yaml:"base_score"`
	AggressiveBonus      int           `yaml:"aggressive_bonus"`
	OccupancyThreshold   int           `yaml:"occupancy_threshold"`
	OccupancyWeight      float64       `yaml:"occupancy_weight"`
	FeedbackPenaltyCap   int           `yaml:"feedback_penalty_cap"`
	HighPriorityCutoff   int           `yaml:"high_priority_cutoff"`
	CircuitWindow        time.Duration `yaml:"circuit_window"`
	CircuitThreshold     int           `yaml:"circuit_threshold"`
	RetryAttempts        int           `yaml:"retry_attempts"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay"`
	DispatchCallTimeout  time.Duration `yaml:"dispatch_call_timeout"`
}

// SchedulerConfig configures the cron-driven background jobs.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	EventScanSpec  string `yaml:"event_scan_spec"`
	DailyTasksSpec string `yaml:"daily_tasks_spec"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// LoadFromFile loads configuration from a YAML file. Environment variables
// referenced as ${VAR} are expanded before parsing so API keys and DSNs can
// stay out of the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "postgres://localhost/agenthub?sslmode=disable",
		},
		NATS: NATSConfig{
			StreamName: "AGENTHUB",
		},
		Providers: ProvidersConfig{
			RequestTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			DefaultTTL: time.Hour,
			MaxSize:    10000,
		},
		Security: SecurityConfig{
			EnableAuth:     false,
			AllowedOrigins: []string{"*"},
		},
		Autopilot: DefaultAutopilot(),
		Scheduler: SchedulerConfig{
			Enabled:        true,
			EventScanSpec:  "@every 1m",
			DailyTasksSpec: "0 0 6 * * *",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "agenthub",
		},
	}
}

// DefaultAutopilot returns the reference tuning for the decision engine.
func DefaultAutopilot() AutopilotConfig {
	return AutopilotConfig{
		BaseScore:           50,
		AggressiveBonus:     15,
		OccupancyThreshold:  30,
		OccupancyWeight:     1.5,
		FeedbackPenaltyCap:  20,
		HighPriorityCutoff:  70,
		CircuitWindow:       15 * time.Minute,
		CircuitThreshold:    5,
		RetryAttempts:       3,
		RetryBaseDelay:      time.Second,
		DispatchCallTimeout: 30 * time.Second,
	}
}
