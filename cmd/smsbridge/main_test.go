package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/swatto/smsbridge/internal/handler"
	"github.com/swatto/smsbridge/internal/sms"
)

// setEnv sets multiple env vars for the duration of the test.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

// minimalEnv returns the minimum env vars required for a valid config.
func minimalEnv() map[string]string {
	return map[string]string{
		"SID":    "AC_test",
		"TOKEN":  "tok_test",
		"SENDER": "+15550000000",
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smsbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// ---------- loadConfig tests ----------

func TestLoadConfig_Defaults(t *testing.T) {
	setEnv(t, minimalEnv())

	cfg, port, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != "9090" {
		t.Errorf("expected default port 9090, got %q", port)
	}
	if cfg.Channel() != "pennywise/sms" {
		t.Errorf("expected default channel, got %q", cfg.Channel())
	}
	if cfg.DryRun {
		t.Error("expected DryRun to be false by default")
	}
}

func TestLoadConfig_CustomPort(t *testing.T) {
	env := minimalEnv()
	env["PORT"] = "8080"
	setEnv(t, env)

	_, port, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != "8080" {
		t.Errorf("expected port 8080, got %q", port)
	}
}

func TestLoadConfig_APIKeyFields(t *testing.T) {
	env := minimalEnv()
	env["API_KEY"] = "SK_key"
	env["API_KEY_SECRET"] = "secret"
	setEnv(t, env)

	cfg, _, _ := loadConfig("")
	if cfg.APIKey != "SK_key" {
		t.Errorf("expected API_KEY SK_key, got %q", cfg.APIKey)
	}
	if cfg.APIKeySecret != "secret" {
		t.Errorf("expected API_KEY_SECRET secret, got %q", cfg.APIKeySecret)
	}
}

func TestLoadConfig_OptionalFields(t *testing.T) {
	env := minimalEnv()
	env["TWILIO_BASE_URL"] = "http://localhost:9999"
	env["MESSAGING_SERVICE_SID"] = "MG123"
	env["CHANNEL_NAME"] = "acme/texts"
	env["LOG_FORMAT"] = "nginx"
	env["DRY_RUN"] = "true"
	env["OTEL_TRACES_SAMPLER_ARG"] = "0.5"
	setEnv(t, env)

	cfg, _, _ := loadConfig("")
	if cfg.TwilioBaseURL != "http://localhost:9999" {
		t.Errorf("unexpected TwilioBaseURL %q", cfg.TwilioBaseURL)
	}
	if cfg.MessagingServiceSID != "MG123" {
		t.Errorf("unexpected MessagingServiceSID %q", cfg.MessagingServiceSID)
	}
	if cfg.Channel() != "acme/texts" {
		t.Errorf("unexpected channel %q", cfg.Channel())
	}
	if cfg.LogFormat != "nginx" {
		t.Errorf("unexpected LogFormat %q", cfg.LogFormat)
	}
	if !cfg.DryRun {
		t.Error("expected DryRun to be true")
	}
	if cfg.TraceSampleRate != 0.5 {
		t.Errorf("unexpected TraceSampleRate %g", cfg.TraceSampleRate)
	}
}

func TestLoadConfig_InvalidSampleRateIgnored(t *testing.T) {
	env := minimalEnv()
	env["OTEL_TRACES_SAMPLER_ARG"] = "abc"
	setEnv(t, env)

	cfg, _, _ := loadConfig("")
	if cfg.TraceSampleRate != 0 {
		t.Errorf("expected sample rate to stay unset, got %g", cfg.TraceSampleRate)
	}
}

func TestLoadConfig_FileWithEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
account_sid: AC_file
auth_token: tok_file
sender: "+15551111111"
port: "7070"
`)
	t.Setenv("SENDER", "+15552222222")

	cfg, port, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccountSid != "AC_file" {
		t.Errorf("expected AccountSid from file, got %q", cfg.AccountSid)
	}
	if cfg.Sender != "+15552222222" {
		t.Errorf("expected env to override sender, got %q", cfg.Sender)
	}
	if port != "7070" {
		t.Errorf("expected port from file, got %q", port)
	}
}

func TestLoadConfig_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "account_sid: AC_env_file\n")
	t.Setenv("CONFIG_FILE", path)

	cfg, _, err := loadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AccountSid != "AC_env_file" {
		t.Errorf("expected AccountSid from CONFIG_FILE, got %q", cfg.AccountSid)
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := writeConfigFile(t, "no_such_key: 1\n")

	if _, _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

// ---------- run tests ----------

func TestRun_InvalidConfig(t *testing.T) {
	// No env vars set → validation must fail
	err := run(context.Background(), "")
	if err == nil {
		t.Fatal("expected error from invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected 'invalid configuration' in error, got %q", err)
	}
}

func TestRun_StartsAndStops(t *testing.T) {
	port := freePort(t)
	env := minimalEnv()
	env["PORT"] = port
	setEnv(t, env)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	addr := "http://127.0.0.1:" + port
	if err := waitForServer(addr, 3*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start: %v", err)
	}

	resp, err := http.Get(addr + "/")
	if err != nil {
		cancel()
		t.Fatalf("GET / failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ping" {
		t.Errorf("expected 'ping', got %q", body)
	}

	resp, err = http.Get(addr + "/health")
	if err != nil {
		cancel()
		t.Fatalf("GET /health failed: %v", err)
	}
	var health handler.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		cancel()
		t.Fatalf("failed to decode health response: %v", err)
	}
	_ = resp.Body.Close()
	if health.Status != "ok" {
		t.Errorf("expected health status 'ok', got %q", health.Status)
	}
	if health.Provider != sms.ProviderDefaultSender {
		t.Errorf("expected provider %q, got %q", sms.ProviderDefaultSender, health.Provider)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after context cancellation")
	}
}

func TestRun_DryRunChannelCall(t *testing.T) {
	port := freePort(t)
	setEnv(t, map[string]string{"DRY_RUN": "true", "PORT": port})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	addr := "http://127.0.0.1:" + port
	if err := waitForServer(addr, 3*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	payload := `{"method":"sendSMS","arguments":{"phone":"+15551234567","message":"hi"}}`
	resp, err := http.Post(addr+"/channel/pennywise/sms", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if strings.TrimSpace(string(body)) != `{"result":true}` {
		t.Errorf("unexpected reply %s", body)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run returned unexpected error: %v", err)
	}
}

func TestRun_PortConflict(t *testing.T) {
	port := freePort(t)
	env := minimalEnv()
	env["PORT"] = port
	setEnv(t, env)

	// Occupy the port so run() will fail to bind
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		t.Fatalf("failed to occupy port %s: %v", port, err)
	}
	defer func() { _ = ln.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runErr := run(ctx, "")
	if runErr == nil {
		t.Fatal("expected error from port conflict, got nil")
	}
	if !strings.Contains(runErr.Error(), "failed to start HTTP server") {
		t.Errorf("expected 'failed to start HTTP server' in error, got %q", runErr)
	}
}

// ---------- runSend tests ----------

func TestRunSend_DryRun(t *testing.T) {
	t.Setenv("DRY_RUN", "true")

	var out bytes.Buffer
	err := runSend(context.Background(), "", sms.NewSendRequest("+15551234567", "hello"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != `{"result":true}` {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestRunSend_MissingPhone(t *testing.T) {
	t.Setenv("DRY_RUN", "true")
	body := "hello"

	var out bytes.Buffer
	err := runSend(context.Background(), "", sms.SendRequest{Body: &body}, &out)

	var smsErr *sms.Error
	if !errors.As(err, &smsErr) || smsErr.Kind != sms.KindInvalidArguments {
		t.Fatalf("expected invalid arguments error, got %v", err)
	}
	if !strings.Contains(out.String(), `"code":"INVALID_ARGS"`) {
		t.Errorf("expected INVALID_ARGS reply, got %q", out.String())
	}
}

func TestRunSend_InvalidConfig(t *testing.T) {
	var out bytes.Buffer
	err := runSend(context.Background(), "", sms.NewSendRequest("+1", "hi"), &out)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if !strings.Contains(out.String(), Version) {
		t.Errorf("expected version in output, got %q", out.String())
	}
}

// ---------- helpers ----------

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return fmt.Sprintf("%d", port)
}

func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/")
		if err == nil {
			_ = resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server at %s not ready after %v", addr, timeout)
}
