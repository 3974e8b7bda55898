package main

import (
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/swatto/smsbridge/internal/handler"
)

const (
	boxInnerWidth = 64
	configValueAt = 24 // column where config values start
)

// padCenter returns s centered in a string of length width, padded with spaces.
func padCenter(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	pad := width - len(s)
	left := pad / 2
	right := pad - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// boxLine returns a box line with s centered between the vertical borders.
func boxLine(s string) string {
	return "║" + padCenter(s, boxInnerWidth) + "║"
}

// configLine returns a config line with label and value, value aligned at configValueAt.
// Padding counts runes so the bullet does not break alignment.
func configLine(label, value string) string {
	prefix := "    • " + label + ":"
	prefixWidth := utf8.RuneCountInString(prefix)
	pad := max(1, configValueAt-prefixWidth)
	return prefix + strings.Repeat(" ", pad) + value
}

// printBanner prints startup information about the application
func printBanner(port string, cfg *handler.Config, provider string) {
	border := "╔" + strings.Repeat("═", boxInnerWidth) + "╗"
	fmt.Println()
	fmt.Println(border)
	fmt.Println(boxLine(AppName))
	fmt.Println(boxLine(AppDescription))
	fmt.Println("╚" + strings.Repeat("═", boxInnerWidth) + "╝")
	fmt.Println()
	fmt.Printf("  Version:        %s\n", Version)
	fmt.Printf("  Go version:     %s\n", runtime.Version())
	fmt.Printf("  OS/Arch:        %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println()
	fmt.Println("  Configuration:")
	fmt.Println(configLine("Port", port))
	fmt.Println(configLine("Provider", provider))
	fmt.Println(configLine("Channel", cfg.Channel()))
	if cfg.MessagingServiceSID != "" {
		fmt.Println(configLine("Messaging service", cfg.MessagingServiceSID))
	} else {
		fmt.Println(configLine("Sender", cfg.Sender))
	}
	if cfg.APIKey != "" {
		fmt.Println(configLine("Auth method", "API Key (recommended)"))
	} else {
		fmt.Println(configLine("Auth method", "Account SID/Token"))
	}
	logFmt := cfg.LogFormat
	if logFmt == "" {
		logFmt = "simple"
	}
	fmt.Println(configLine("Log format", logFmt))
	if cfg.TwilioBaseURL != "" {
		fmt.Println(configLine("Twilio base URL", cfg.TwilioBaseURL+" (custom)"))
	}
	if cfg.WebhookSecret != "" {
		fmt.Println(configLine("Webhook auth", "enabled (Bearer)"))
	}
	if cfg.DryRun {
		fmt.Println(configLine("Dry-run", "enabled (no SMS sent)"))
	}
	if cfg.OTLPEndpoint != "" {
		fmt.Println(configLine("Tracing", cfg.OTLPEndpoint))
	}
	fmt.Println()
	fmt.Printf("  Server listening on http://0.0.0.0:%s\n", port)
	fmt.Println()
}
