// Package config holds the settings needed to start the shopping assistant.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "SHOPASSIST"

const (
	DefaultPollInterval = time.Second
	DefaultRunTimeout   = 120 * time.Second
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

type Config struct {
	Addr     string
	LogLevel string

	Driver      string
	DSN         string
	DynamoTable string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ParamPrefix     string
	ExtractionModel string

	// Assistant ids; resolved from the parameter store when empty.
	ChatAssistantID        string
	DescriptionAssistantID string
	ComparisonAssistantID  string

	PollInterval time.Duration
	RunTimeout   time.Duration

	MockLLM bool
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("driver", DriverMemory)
	v.SetDefault("dsn", "shopping-assistant.db")
	v.SetDefault("extraction-model", "gpt-4o")
	v.SetDefault("poll-interval", DefaultPollInterval)
	v.SetDefault("run-timeout", DefaultRunTimeout)
}

// BindEnv makes every key readable from SHOPASSIST_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func FromViper(v *viper.Viper) Config {
	return Config{
		Addr:                   v.GetString("addr"),
		LogLevel:               v.GetString("log-level"),
		Driver:                 strings.ToLower(v.GetString("driver")),
		DSN:                    v.GetString("dsn"),
		DynamoTable:            v.GetString("dynamo-table"),
		OpenAIAPIKey:           v.GetString("openai-api-key"),
		OpenAIBaseURL:          v.GetString("openai-base-url"),
		ParamPrefix:            v.GetString("param-prefix"),
		ExtractionModel:        v.GetString("extraction-model"),
		ChatAssistantID:        v.GetString("chat-assistant-id"),
		DescriptionAssistantID: v.GetString("description-assistant-id"),
		ComparisonAssistantID:  v.GetString("comparison-assistant-id"),
		PollInterval:           v.GetDuration("poll-interval"),
		RunTimeout:             v.GetDuration("run-timeout"),
		MockLLM:                v.GetBool("mock-llm"),
	}
}

// Validate rejects incomplete combinations before any client is built.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.DSN == "" {
			return errors.New("sqlite driver requires --dsn")
		}
	case DriverDynamoDB:
		if c.DynamoTable == "" {
			return errors.New("dynamodb driver requires --dynamo-table")
		}
	default:
		return errors.Errorf("unsupported driver %q", c.Driver)
	}

	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RunTimeout < c.PollInterval {
		return errors.Errorf("run timeout %s is shorter than poll interval %s", c.RunTimeout, c.PollInterval)
	}

	if c.MockLLM {
		return nil
	}
	if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
		return errors.New("either --openai-api-key or --param-prefix is required unless --mock-llm is set")
	}
	if c.ParamPrefix == "" && !c.HasAssistantIDs() {
		return errors.New("assistant ids are required when no --param-prefix is configured")
	}
	return nil
}

func (c Config) HasAssistantIDs() bool {
	return c.ChatAssistantID != "" && c.DescriptionAssistantID != "" && c.ComparisonAssistantID != ""
}
