package sms

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/swatto/smsbridge/internal/sms"

// Dispatcher turns sendSMS calls into platform sends. It holds no mutable
// state and is safe for concurrent use.
type Dispatcher struct {
	platform Platform
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider used for dispatch spans.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewDispatcher returns a Dispatcher sending through p.
func NewDispatcher(p Platform, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		platform: p,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke handles a method call. Any method other than sendSMS yields a
// NotImplemented outcome without touching the platform.
func (d *Dispatcher) Invoke(ctx context.Context, method string, args Arguments) Outcome {
	if method != MethodSendSMS {
		d.logger.Warn("send: method not implemented", "method", method)
		return notImplemented(method)
	}
	return d.Dispatch(ctx, requestFromArguments(args))
}

// Dispatch validates req, segments the body and sends it with exactly one
// platform call. Platform errors and panics are converted to a
// PlatformSendError outcome; nothing propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req SendRequest) (out Outcome) {
	ctx, span := d.tracer.Start(ctx, "sms.Dispatch")
	defer func() {
		span.SetAttributes(
			attribute.String("sms.outcome", out.Kind.String()),
			attribute.Int("sms.parts", out.Parts),
		)
		if !out.OK() {
			span.SetStatus(codes.Error, out.Detail)
		}
		span.End()
	}()

	if req.Recipient == nil || req.Body == nil {
		d.logger.Warn("send: rejected call with missing arguments",
			"has_phone", req.Recipient != nil,
			"has_message", req.Body != nil,
		)
		return invalidArguments()
	}

	recipient, body := *req.Recipient, *req.Body
	parts, err := d.send(ctx, recipient, body)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("send: platform send failed",
			"recipient", MaskNumber(recipient),
			"parts", parts,
			"error", err,
		)
		return platformSendError(err.Error(), parts)
	}

	d.logger.Info("Message sent", "recipient", MaskNumber(recipient), "parts", parts)
	return success(parts)
}

// send runs the platform calls inside a recover so a panicking platform
// still produces an error.
func (d *Dispatcher) send(ctx context.Context, recipient, body string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	parts := d.platform.Split(body)
	n = len(parts)
	if n > 1 {
		return n, d.platform.SendMultipart(ctx, recipient, parts)
	}
	return n, d.platform.SendSingle(ctx, recipient, body)
}

// MaskNumber hides all but the last four characters of a phone number.
func MaskNumber(number string) string {
	r := []rune(number)
	if len(r) <= 4 {
		return number
	}
	masked := make([]rune, len(r))
	for i := range r {
		if i < len(r)-4 {
			masked[i] = '*'
		} else {
			masked[i] = r[i]
		}
	}
	return string(masked)
}
