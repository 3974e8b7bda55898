package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

const (
	defaultTwilioBaseURL    = "https://api.twilio.com"
	defaultMessagingBaseURL = "https://messaging.twilio.com"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// TwilioConfig holds what a TwilioClient needs to authenticate.
// AccountSid is used for URL construction, AuthUser/AuthPassword for
// HTTP Basic Auth (an API Key pair or the Account SID and Auth Token).
type TwilioConfig struct {
	AccountSid       string
	AuthUser         string
	AuthPassword     string
	BaseURL          string // optional, defaults to https://api.twilio.com
	MessagingBaseURL string // optional, defaults to https://messaging.twilio.com
}

// TwilioClient talks to the Twilio REST API.
type TwilioClient struct {
	httpClient       *http.Client
	accountSid       string
	authUser         string
	authPassword     string
	baseURL          string
	messagingBaseURL string
}

// NewTwilioClient creates a new TwilioClient.
func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	messagingBaseURL := strings.TrimRight(cfg.MessagingBaseURL, "/")
	if messagingBaseURL == "" {
		messagingBaseURL = defaultMessagingBaseURL
	}
	return &TwilioClient{
		accountSid:       cfg.AccountSid,
		authUser:         cfg.AuthUser,
		authPassword:     cfg.AuthPassword,
		baseURL:          baseURL,
		messagingBaseURL: messagingBaseURL,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
	}
}

// MessageParams are the form fields of a Messages.json request. Exactly
// one of From and MessagingServiceSid should be set.
type MessageParams struct {
	To                  string
	From                string
	MessagingServiceSid string
	Body                string
}

// MessageResource is the subset of a Twilio message we care about.
type MessageResource struct {
	Sid         string
	Status      string
	NumSegments string
}

// ServiceResource is the subset of a Twilio Messaging Service we care about.
type ServiceResource struct {
	Sid          string
	FriendlyName string
}

// TwilioError is a non-2xx response from the Twilio API.
type TwilioError struct {
	Status   int
	Code     int64
	Message  string
	MoreInfo string
	Body     string
}

func (e *TwilioError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio: API error (status %d): %s", e.Status, e.Body)
	}
	if e.Code != 0 {
		return fmt.Sprintf("twilio: API error (status %d, code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio: API error (status %d): %s", e.Status, e.Message)
}

// CreateMessage sends an SMS using the Twilio REST API.
func (t *TwilioClient) CreateMessage(ctx context.Context, p MessageParams) (*MessageResource, error) {
	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSid))

	data := url.Values{}
	data.Set("To", p.To)
	if p.MessagingServiceSid != "" {
		data.Set("MessagingServiceSid", p.MessagingServiceSid)
	} else {
		data.Set("From", p.From)
	}
	data.Set("Body", p.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := t.do(req)
	if err != nil {
		return nil, err
	}

	msg := &MessageResource{}
	msg.Sid, _ = jsonparser.GetString(body, "sid")
	msg.Status, _ = jsonparser.GetString(body, "status")
	msg.NumSegments, _ = jsonparser.GetString(body, "num_segments")
	return msg, nil
}

// FetchService looks up a Messaging Service by SID.
func (t *TwilioClient) FetchService(ctx context.Context, sid string) (*ServiceResource, error) {
	apiURL := fmt.Sprintf("%s/v1/Services/%s", t.messagingBaseURL, url.PathEscape(sid))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to create HTTP request: %w", err)
	}

	body, err := t.do(req)
	if err != nil {
		return nil, err
	}

	svc := &ServiceResource{}
	svc.Sid, _ = jsonparser.GetString(body, "sid")
	svc.FriendlyName, _ = jsonparser.GetString(body, "friendly_name")
	if svc.Sid == "" {
		svc.Sid = sid
	}
	return svc, nil
}

func (t *TwilioClient) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(t.authUser, t.authPassword)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to send HTTP request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("twilio: failed to close response body", "error", err)
		}
	}()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if readErr != nil {
			return nil, fmt.Errorf("twilio: API error (status %d), failed to read error response", resp.StatusCode)
		}
		return nil, parseTwilioError(resp.StatusCode, body)
	}
	if readErr != nil {
		return nil, fmt.Errorf("twilio: failed to read response: %w", readErr)
	}
	return body, nil
}

func parseTwilioError(status int, body []byte) *TwilioError {
	e := &TwilioError{Status: status, Body: strings.TrimSpace(string(body))}
	e.Code, _ = jsonparser.GetInt(body, "code")
	e.Message, _ = jsonparser.GetString(body, "message")
	e.MoreInfo, _ = jsonparser.GetString(body, "more_info")
	return e
}

// TwilioPlatform sends through Twilio, either from a fixed sender number
// or through a Messaging Service.
type TwilioPlatform struct {
	client     *TwilioClient
	from       string
	serviceSid string
	logger     *slog.Logger
}

// NewTwilioPlatform returns a platform sending from the given number.
func NewTwilioPlatform(client *TwilioClient, from string, logger *slog.Logger) *TwilioPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioPlatform{client: client, from: from, logger: logger}
}

// NewTwilioServicePlatform returns a platform sending through a
// Messaging Service.
func NewTwilioServicePlatform(client *TwilioClient, serviceSid string, logger *slog.Logger) *TwilioPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioPlatform{client: client, serviceSid: serviceSid, logger: logger}
}

// Split segments text the way the carrier will.
func (p *TwilioPlatform) Split(text string) []string {
	return Segment(text)
}

// SendSingle posts one message.
func (p *TwilioPlatform) SendSingle(ctx context.Context, recipient, text string) error {
	_, err := p.create(ctx, recipient, text)
	return err
}

// SendMultipart posts the ordered parts as one request. Twilio delivers a
// long body as a single concatenated SMS, so the parts stay one logical
// message.
func (p *TwilioPlatform) SendMultipart(ctx context.Context, recipient string, parts []string) error {
	msg, err := p.create(ctx, recipient, strings.Join(parts, ""))
	if err != nil {
		return err
	}
	if msg.NumSegments != "" && msg.NumSegments != fmt.Sprint(len(parts)) {
		p.logger.Debug("twilio: segment count differs from local split",
			"local", len(parts), "twilio", msg.NumSegments, "sid", msg.Sid)
	}
	return nil
}

func (p *TwilioPlatform) create(ctx context.Context, recipient, body string) (*MessageResource, error) {
	msg, err := p.client.CreateMessage(ctx, MessageParams{
		To:                  recipient,
		From:                p.from,
		MessagingServiceSid: p.serviceSid,
		Body:                body,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("twilio: message accepted", "sid", msg.Sid, "status", msg.Status, "segments", msg.NumSegments)
	return msg, nil
}
