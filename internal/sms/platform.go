// Package sms dispatches text messages to a platform send capability,
// choosing between a single send and a multi-part send depending on how
// the platform segments the body.
package sms

import "context"

// MethodSendSMS is the only method the dispatcher implements.
const MethodSendSMS = "sendSMS"

// Argument names of a sendSMS call.
const (
	ArgPhone   = "phone"
	ArgMessage = "message"
)

// Platform is the text-messaging capability the dispatcher sends through.
//
// Split must be pure and return at least one part; empty or short text
// comes back as a single-element slice. SendMultipart must transmit the
// parts as one logical message, in order.
type Platform interface {
	Split(text string) []string
	SendSingle(ctx context.Context, recipient, text string) error
	SendMultipart(ctx context.Context, recipient string, parts []string) error
}

// SendRequest is a single sendSMS call. A nil field means the caller did
// not supply it.
type SendRequest struct {
	Recipient *string
	Body      *string
}

// NewSendRequest builds a request with both fields present.
func NewSendRequest(recipient, body string) SendRequest {
	return SendRequest{Recipient: &recipient, Body: &body}
}

// Arguments gives access to the named arguments of a method call.
// Lookup reports false when the argument is absent or null.
type Arguments interface {
	Lookup(name string) (string, bool)
}

// requestFromArguments reads phone and message from args.
func requestFromArguments(args Arguments) SendRequest {
	var req SendRequest
	if args == nil {
		return req
	}
	if v, ok := args.Lookup(ArgPhone); ok {
		req.Recipient = &v
	}
	if v, ok := args.Lookup(ArgMessage); ok {
		req.Body = &v
	}
	return req
}
