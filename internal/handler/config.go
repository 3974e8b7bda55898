package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/swatto/smsbridge/internal/channel"
	"github.com/swatto/smsbridge/internal/sms"
)

// Config holds the configuration for the handler
//
//nolint:govet // fieldalignment: minor optimization not worth reduced readability
type Config struct {
	AccountSid             string  `yaml:"account_sid"`
	AuthToken              string  `yaml:"auth_token"`     // Auth Token (used when API Key is not provided)
	APIKey                 string  `yaml:"api_key"`        // API Key SID (optional, takes precedence over AuthToken)
	APIKeySecret           string  `yaml:"api_key_secret"` // API Key Secret (required if APIKey is set)
	Sender                 string  `yaml:"sender"`
	MessagingServiceSID    string  `yaml:"messaging_service_sid"`     // Send through a Messaging Service instead of Sender
	TwilioBaseURL          string  `yaml:"twilio_base_url"`           // Optional: override Twilio API base URL (for testing)
	TwilioMessagingBaseURL string  `yaml:"twilio_messaging_base_url"` // Optional: override Messaging API base URL (for testing)
	ChannelName            string  `yaml:"channel_name"`              // Method channel name (default: pennywise/sms)
	Port                   string  `yaml:"port"`
	LogFormat              string  `yaml:"log_format"` // Access log format: "simple" (default) or "nginx"
	LogLevel               string  `yaml:"log_level"`  // debug, info (default), warn, error
	WebhookSecret          string  `yaml:"webhook_secret"` // If set, POST routes require Authorization: Bearer <secret or HS256 JWT>
	DryRun                 bool    `yaml:"dry_run"`        // If true, log messages instead of calling Twilio
	OTLPEndpoint           string  `yaml:"otlp_endpoint"`  // OTLP/HTTP trace endpoint (tracing off when empty)
	TraceSampleRate        float64 `yaml:"trace_sample_rate"`
}

// LoadConfigFile reads a YAML config file. Unknown keys are rejected.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if !c.DryRun {
		if c.AccountSid == "" {
			return fmt.Errorf("missing required configuration: AccountSid (env SID)")
		}
		if c.Sender == "" && c.MessagingServiceSID == "" {
			return fmt.Errorf("missing required configuration: Sender (env SENDER) or MessagingServiceSID (env MESSAGING_SERVICE_SID)")
		}
		if c.APIKey != "" {
			if c.APIKeySecret == "" {
				return fmt.Errorf("APIKeySecret is required when APIKey is set")
			}
		} else if c.AuthToken == "" {
			return fmt.Errorf("missing required configuration: AuthToken (env TOKEN) or APIKey + APIKeySecret")
		}
	}
	switch c.LogFormat {
	case "", "simple", "nginx":
	default:
		return fmt.Errorf("LogFormat must be \"simple\" or \"nginx\" (got %q)", c.LogFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TraceSampleRate must be between 0 and 1 (got %g)", c.TraceSampleRate)
	}
	if name := c.Channel(); strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("ChannelName must not start or end with \"/\" (got %q)", name)
	}
	return nil
}

// Channel returns the configured channel name or the default.
func (c *Config) Channel() string {
	if name := strings.TrimSpace(c.ChannelName); name != "" {
		return name
	}
	return channel.DefaultName
}

// ProviderOptions converts the Twilio settings into provider options.
// API Key credentials take precedence over the Auth Token.
func (c *Config) ProviderOptions(logger *slog.Logger) sms.ProviderOptions {
	authUser := c.AccountSid
	authPassword := c.AuthToken
	if c.APIKey != "" {
		authUser = c.APIKey
		authPassword = c.APIKeySecret
	}
	return sms.ProviderOptions{
		Twilio: sms.TwilioConfig{
			AccountSid:       c.AccountSid,
			AuthUser:         authUser,
			AuthPassword:     authPassword,
			BaseURL:          c.TwilioBaseURL,
			MessagingBaseURL: c.TwilioMessagingBaseURL,
		},
		From:                c.Sender,
		MessagingServiceSid: c.MessagingServiceSID,
		DryRun:              c.DryRun,
		Logger:              logger,
	}
}

// ParseLogLevel maps a level name to a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LogLevel must be one of debug, info, warn, error (got %q)", s)
	}
}
