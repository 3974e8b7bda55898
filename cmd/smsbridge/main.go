package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swatto/smsbridge/internal/handler"
	"github.com/swatto/smsbridge/internal/sms"
	"github.com/swatto/smsbridge/internal/telemetry"
)

const (
	// AppName is the name of the application
	AppName = "smsbridge"
	// AppDescription provides a brief description of the application
	AppDescription = "Method channel to Twilio SMS bridge"
)

// Version can be set at build time via ldflags
var Version = "1.0.0"

var configPath string // overridable via --config flag

func main() {
	root := &cobra.Command{
		Use:   AppName,
		Short: AppDescription,
		Long:  "smsbridge answers sendSMS method calls over HTTP and sends them through Twilio.",
		RunE:  runServe,
		// Errors are logged by the commands themselves.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default: $CONFIG_FILE)")

	root.AddCommand(serveCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		slog.Error("smsbridge: command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", AppName, Version)
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, configPath)
}

// resolveConfigPath returns the config path from --config or CONFIG_FILE.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv("CONFIG_FILE")
}

// loadConfig reads the optional YAML file and applies environment
// overrides on top of it. It returns the config and the listen port.
func loadConfig(path string) (*handler.Config, string, error) {
	cfg := &handler.Config{}
	if path = resolveConfigPath(path); path != "" {
		loaded, err := handler.LoadConfigFile(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}

	for env, field := range map[string]*string{
		"SID":                         &cfg.AccountSid,
		"TOKEN":                       &cfg.AuthToken,
		"API_KEY":                     &cfg.APIKey,
		"API_KEY_SECRET":              &cfg.APIKeySecret,
		"SENDER":                      &cfg.Sender,
		"MESSAGING_SERVICE_SID":       &cfg.MessagingServiceSID,
		"TWILIO_BASE_URL":             &cfg.TwilioBaseURL,
		"TWILIO_MESSAGING_BASE_URL":   &cfg.TwilioMessagingBaseURL,
		"CHANNEL_NAME":                &cfg.ChannelName,
		"PORT":                        &cfg.Port,
		"LOG_FORMAT":                  &cfg.LogFormat,
		"LOG_LEVEL":                   &cfg.LogLevel,
		"WEBHOOK_SECRET":              &cfg.WebhookSecret,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &cfg.OTLPEndpoint,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("DRY_RUN"); v != "" {
		cfg.DryRun = v == "true"
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TraceSampleRate = rate
		}
	}

	port := cfg.Port
	if port == "" {
		port = "9090"
	}
	return cfg, port, nil
}

// setupLogger installs the default text logger on stderr at the
// configured level.
func setupLogger(cfg *handler.Config) *slog.Logger {
	level, _ := handler.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// bridge is the dispatch stack shared by serve and send.
type bridge struct {
	dispatcher *sms.Dispatcher
	provider   string
	telemetry  *telemetry.Provider
}

// newBridge validates cfg, sets up tracing and resolves the provider.
func newBridge(ctx context.Context, cfg *handler.Config, logger *slog.Logger) (*bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    AppName,
		ServiceVersion: Version,
		Endpoint:       cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
	})
	if err != nil {
		return nil, err
	}

	provider := sms.SelectProvider(cfg.ProviderOptions(logger))
	platform, err := provider.Platform(ctx)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}

	return &bridge{
		dispatcher: sms.NewDispatcher(platform,
			sms.WithLogger(logger),
			sms.WithTracerProvider(tp),
		),
		provider:  provider.Name(),
		telemetry: tp,
	}, nil
}

func (b *bridge) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.telemetry.Shutdown(ctx); err != nil {
		slog.Error("telemetry: shutdown failed", "error", err)
	}
}

// run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func run(ctx context.Context, path string) error {
	cfg, port, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogger(cfg)

	b, err := newBridge(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	h := handler.New(cfg, b.dispatcher, b.provider, Version)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	printBanner(port, cfg, b.provider)

	go func() {
		slog.Info("Server started successfully", "app", AppName, "version", Version, "port", port, "provider", b.provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	}

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to terminate: %w", err)
	}

	slog.Info("Server stopped gracefully")
	return nil
}
