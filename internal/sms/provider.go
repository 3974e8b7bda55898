package sms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Provider names.
const (
	ProviderDryRun           = "dry-run"
	ProviderMessagingService = "messaging-service"
	ProviderDefaultSender    = "default-sender"
)

// Provider resolves the Platform the dispatcher sends through. It is
// resolved once at startup.
type Provider interface {
	Name() string
	Platform(ctx context.Context) (Platform, error)
}

// ProviderOptions select and configure a Provider.
type ProviderOptions struct {
	Twilio              TwilioConfig
	From                string
	MessagingServiceSid string
	DryRun              bool
	Logger              *slog.Logger
}

// SelectProvider picks the dry-run provider when DryRun is set, the
// Messaging Service lookup when a service SID is configured, and the
// default sender otherwise.
func SelectProvider(opts ProviderOptions) Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case opts.DryRun:
		return &DryRunProvider{Logger: logger}
	case opts.MessagingServiceSid != "":
		return &ServiceProvider{
			Client:     NewTwilioClient(opts.Twilio),
			ServiceSid: opts.MessagingServiceSid,
			Logger:     logger,
		}
	default:
		return &DefaultSenderProvider{
			Client: NewTwilioClient(opts.Twilio),
			From:   opts.From,
			Logger: logger,
		}
	}
}

// ServiceProvider looks the Messaging Service up before handing out a
// platform bound to it.
type ServiceProvider struct {
	Client     *TwilioClient
	ServiceSid string
	Logger     *slog.Logger
}

func (p *ServiceProvider) Name() string { return ProviderMessagingService }

// Platform fetches the configured service and fails if it does not
// resolve.
func (p *ServiceProvider) Platform(ctx context.Context) (Platform, error) {
	svc, err := p.Client.FetchService(ctx, p.ServiceSid)
	if err != nil {
		return nil, fmt.Errorf("provider: messaging service %s lookup failed: %w", p.ServiceSid, err)
	}
	p.Logger.Info("provider: resolved messaging service", "sid", svc.Sid, "name", svc.FriendlyName)
	return NewTwilioServicePlatform(p.Client, svc.Sid, p.Logger), nil
}

// DefaultSenderProvider hands out one shared platform sending from a
// fixed number.
type DefaultSenderProvider struct {
	Client *TwilioClient
	From   string
	Logger *slog.Logger

	once     sync.Once
	platform *TwilioPlatform
}

func (p *DefaultSenderProvider) Name() string { return ProviderDefaultSender }

// Platform returns the same platform on every call.
func (p *DefaultSenderProvider) Platform(context.Context) (Platform, error) {
	if p.From == "" {
		return nil, fmt.Errorf("provider: default sender requires a From number")
	}
	p.once.Do(func() {
		p.platform = NewTwilioPlatform(p.Client, p.From, p.Logger)
	})
	return p.platform, nil
}

// DryRunProvider hands out a LogPlatform.
type DryRunProvider struct {
	Logger *slog.Logger
}

func (p *DryRunProvider) Name() string { return ProviderDryRun }

func (p *DryRunProvider) Platform(context.Context) (Platform, error) {
	return &LogPlatform{Logger: p.Logger}, nil
}

// LogPlatform logs messages instead of sending them.
type LogPlatform struct {
	Logger *slog.Logger
}

func (p *LogPlatform) Split(text string) []string {
	return Segment(text)
}

func (p *LogPlatform) SendSingle(_ context.Context, recipient, text string) error {
	p.logger().Info("dry-run: would send SMS", "recipient", recipient, "body", text)
	return nil
}

func (p *LogPlatform) SendMultipart(_ context.Context, recipient string, parts []string) error {
	for i, part := range parts {
		p.logger().Info("dry-run: would send SMS part",
			"recipient", recipient, "part", i+1, "of", len(parts), "body", part)
	}
	return nil
}

func (p *LogPlatform) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
