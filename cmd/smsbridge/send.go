package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swatto/smsbridge/internal/channel"
	"github.com/swatto/smsbridge/internal/sms"
)

func sendCmd() *cobra.Command {
	var phone, message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one SMS and print the result",
		Long: `Dispatches a single sendSMS call with the configured provider and
prints the method channel reply as JSON. Exits non-zero unless the
message was sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// An omitted flag is an absent argument, not an empty one.
			var req sms.SendRequest
			if cmd.Flags().Changed("phone") {
				req.Recipient = &phone
			}
			if cmd.Flags().Changed("message") {
				req.Body = &message
			}
			return runSend(ctx, configPath, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&phone, "phone", "p", "", "recipient phone number")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	return cmd
}

// runSend dispatches req once and writes the reply to out.
func runSend(ctx context.Context, path string, req sms.SendRequest, out io.Writer) error {
	cfg, _, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogger(cfg)

	b, err := newBridge(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	outcome := b.dispatcher.Dispatch(ctx, req)
	_, reply := channel.ReplyFor(outcome)
	enc := json.NewEncoder(out)
	if err := enc.Encode(reply); err != nil {
		return fmt.Errorf("send: failed to encode reply: %w", err)
	}
	return outcome.Err()
}
