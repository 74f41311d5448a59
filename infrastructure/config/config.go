// Package config loads static configuration from a YAML file and the
// environment, and watches a dynamic overlay for runtime changes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address     string `yaml:"address"`
	Environment string `yaml:"environment" validate:"oneof=development staging production"`
	EnableCORS  bool   `yaml:"enableCors"`
	IsLambda    bool   `yaml:"isLambda"`
}

// PersistenceConfig selects and parameterizes the storage backend.
type PersistenceConfig struct {
	Driver        string `yaml:"driver" validate:"oneof=memory dynamodb"`
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamodbTable"`
	EventBusName  string `yaml:"eventBusName"`
}

// GeminiConfig holds the synthesis model settings.
type GeminiConfig struct {
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
}

// TelephonyConfig holds the outbound calling provider settings.
type TelephonyConfig struct {
	BaseURL      string `yaml:"baseUrl"`
	AccountSID   string `yaml:"accountSid"`
	AuthToken    string `yaml:"authToken"`
	CallerNumber string `yaml:"callerNumber"`
}

// MessagingConfig holds the email and SMS delivery settings.
type MessagingConfig struct {
	SMTPHost      string `yaml:"smtpHost"`
	SMTPPort      int    `yaml:"smtpPort" validate:"gte=0,lte=65535"`
	SMTPUsername  string `yaml:"smtpUsername"`
	SMTPPassword  string `yaml:"smtpPassword"`
	FromAddress   string `yaml:"fromAddress"`
	SMSGatewayURL string `yaml:"smsGatewayUrl"`
	SMSAPIKey     string `yaml:"smsApiKey"`
}

// VectorStoreConfig holds the embedded vector index settings.
type VectorStoreConfig struct {
	Path string `yaml:"path"`
}

// SweeperConfig holds the periodic redispatch settings.
type SweeperConfig struct {
	Enabled          bool `yaml:"enabled"`
	IntervalSeconds  int  `yaml:"intervalSeconds" validate:"gt=0"`
	StalenessMinutes int  `yaml:"stalenessMinutes" validate:"gt=0"`
}

// ObservabilityConfig holds metrics and tracing toggles.
type ObservabilityConfig struct {
	EnableMetrics bool   `yaml:"enableMetrics"`
	EnableTracing bool   `yaml:"enableTracing"`
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	LogLevel      string `yaml:"logLevel" validate:"oneof=debug info warn error"`
}

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Persistence   PersistenceConfig   `yaml:"persistence"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Telephony     TelephonyConfig     `yaml:"telephony"`
	Messaging     MessagingConfig     `yaml:"messaging"`
	VectorStore   VectorStoreConfig   `yaml:"vectorStore"`
	Sweeper       SweeperConfig       `yaml:"sweeper"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns the development defaults applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:     ":8080",
			Environment: "development",
			EnableCORS:  true,
		},
		Persistence: PersistenceConfig{
			Driver:        "memory",
			AWSRegion:     "us-west-2",
			DynamoDBTable: "analyst",
			EventBusName:  "analyst-events",
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
		},
		VectorStore: VectorStoreConfig{
			Path: "analyst-vectors.db",
		},
		Sweeper: SweeperConfig{
			Enabled:          true,
			IntervalSeconds:  60,
			StalenessMinutes: 60,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			LogLevel:      "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// given), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Server.Environment == "production" && cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required in production")
	}
	return cfg, nil
}

// SweepInterval returns the sweep interval as a duration
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweeper.IntervalSeconds) * time.Second
}

// SweepStaleness returns the redispatch staleness window as a duration
func (c *Config) SweepStaleness() time.Duration {
	return time.Duration(c.Sweeper.StalenessMinutes) * time.Minute
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) applyEnv() {
	setString(&c.Server.Address, "SERVER_ADDRESS")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setBool(&c.Server.IsLambda, "IS_LAMBDA")
	setString(&c.Persistence.Driver, "PERSISTENCE_DRIVER")
	setString(&c.Persistence.AWSRegion, "AWS_REGION")
	setString(&c.Persistence.DynamoDBTable, "DYNAMODB_TABLE")
	setString(&c.Persistence.EventBusName, "EVENT_BUS_NAME")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Telephony.BaseURL, "TELEPHONY_BASE_URL")
	setString(&c.Telephony.AccountSID, "TELEPHONY_ACCOUNT_SID")
	setString(&c.Telephony.AuthToken, "TELEPHONY_AUTH_TOKEN")
	setString(&c.Telephony.CallerNumber, "TELEPHONY_CALLER_NUMBER")
	setString(&c.Messaging.SMTPHost, "SMTP_HOST")
	setInt(&c.Messaging.SMTPPort, "SMTP_PORT")
	setString(&c.Messaging.SMTPUsername, "SMTP_USERNAME")
	setString(&c.Messaging.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Messaging.FromAddress, "SMTP_FROM")
	setString(&c.Messaging.SMSGatewayURL, "SMS_GATEWAY_URL")
	setString(&c.Messaging.SMSAPIKey, "SMS_API_KEY")
	setString(&c.VectorStore.Path, "VECTOR_STORE_PATH")
	setBool(&c.Sweeper.Enabled, "SWEEPER_ENABLED")
	setInt(&c.Sweeper.IntervalSeconds, "SWEEP_INTERVAL_SECONDS")
	setInt(&c.Sweeper.StalenessMinutes, "SWEEP_STALENESS_MINUTES")
	setBool(&c.Observability.EnableMetrics, "ENABLE_METRICS")
	setBool(&c.Observability.EnableTracing, "ENABLE_TRACING")
	setString(&c.Observability.OTLPEndpoint, "OTLP_ENDPOINT")
	setString(&c.Observability.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1" || v == "yes"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
