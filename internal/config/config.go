package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Intake struct {
		AllowedApplications []string `mapstructure:"allowedApplications"` // application_name allow-list
	} `mapstructure:"intake"`
	CDP     CDPConfig     `mapstructure:"cdp"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
}

// CDPConfig holds the downstream delivery settings
type CDPConfig struct {
	Systems        []CDPSystemConfig `mapstructure:"systems"`
	MaxRetries     int               `mapstructure:"maxRetries"`     // retry budget per failed delivery
	RetryBaseDelay time.Duration     `mapstructure:"retryBaseDelay"` // base delay for exponential backoff
	RetryMaxDelay  time.Duration     `mapstructure:"retryMaxDelay"`  // cap for exponential backoff
}

// RetryConfig holds the failed-delivery drain settings
type RetryConfig struct {
	Schedule   string `mapstructure:"schedule"`   // cron spec for the failed-delivery drain
	BatchLimit int    `mapstructure:"batchLimit"` // max records per drain pass
}

// ScoringConfig holds the lead scoring settings
type ScoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
}

// CDPSystemConfig describes one downstream CDP system deliveries fan out to
type CDPSystemConfig struct {
	Name    string        `mapstructure:"name"`
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"apiKey"`
	Timeout time.Duration `mapstructure:"timeout"` // per-attempt timeout, one slow system never stalls the others
}

// QueueConfig holds the JetStream delivery-handoff settings. When disabled the
// orchestrator dispatches synchronously in the request path instead.
type QueueConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Stream        string        `mapstructure:"stream"`
	Subject       string        `mapstructure:"subject"`
	Workers       int           `mapstructure:"workers"`       // delivery worker pool size
	MaxAgeDays    int           `mapstructure:"maxAgeDays"`    // stream retention
	MaxDeliver    int           `mapstructure:"maxDeliver"`    // redelivery attempts for the consumer
	AckWait       time.Duration `mapstructure:"ackWait"`       // ack wait timeout
	MaxAckPending int           `mapstructure:"maxAckPending"` // max pending ACKs
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)

	// Intake defaults: the three known source systems
	v.SetDefault("intake.allowedApplications", []string{"morizon", "gratka", "hms"})

	// CDP retry defaults
	v.SetDefault("cdp.maxRetries", 3)
	v.SetDefault("cdp.retryBaseDelay", time.Minute)
	v.SetDefault("cdp.retryMaxDelay", 15*time.Minute)

	// Retry scheduler defaults
	v.SetDefault("retry.schedule", "@every 1m")
	v.SetDefault("retry.batchLimit", 50)

	// Delivery queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.stream", "lead_delivery")
	v.SetDefault("queue.subject", "v1.leads.created")
	v.SetDefault("queue.workers", 8)
	v.SetDefault("queue.maxAgeDays", 7)
	v.SetDefault("queue.maxDeliver", 5)
	v.SetDefault("queue.ackWait", 30*time.Second)
	v.SetDefault("queue.maxAckPending", 100)

	// Scoring defaults
	v.SetDefault("scoring.enabled", false)
	v.SetDefault("scoring.model", "gpt-4o-mini")

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")    // REQUIRED if the config file does not have the extension in the name

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.lead-intake-service")
	v.AddConfigPath("/etc/lead-intake-service")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("queue.url", url)
	}
	if key := os.Getenv("SCORING_API_KEY"); key != "" {
		v.Set("scoring.apiKey", key)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
