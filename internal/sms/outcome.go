package sms

import "fmt"

// Kind classifies the result of a dispatch.
type Kind int

const (
	KindSuccess Kind = iota
	KindInvalidArguments
	KindPlatformSendError
	KindNotImplemented
)

// Error codes reported to method channel callers.
const (
	CodeSMSError    = "SMS_ERROR"
	CodeInvalidArgs = "INVALID_ARGS"
)

// missingArgsDetail is the detail reported when phone or message is absent.
const missingArgsDetail = "recipient or message is missing"

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindInvalidArguments:
		return "invalid_arguments"
	case KindPlatformSendError:
		return "platform_send_error"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Code returns the channel error code for k, or "" when k carries none.
func (k Kind) Code() string {
	switch k {
	case KindInvalidArguments:
		return CodeInvalidArgs
	case KindPlatformSendError:
		return CodeSMSError
	default:
		return ""
	}
}

// Outcome is the result of exactly one dispatch.
type Outcome struct {
	Kind   Kind
	Detail string
	// Parts is the number of segments the body was split into, 0 if no
	// split happened.
	Parts int
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns nil for a success and an *Error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Kind: o.Kind, Detail: o.Detail}
}

// Error is the error form of a failed Outcome.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "sms: " + e.Kind.String()
	}
	return "sms: " + e.Kind.String() + ": " + e.Detail
}

func success(parts int) Outcome {
	return Outcome{Kind: KindSuccess, Parts: parts}
}

func invalidArguments() Outcome {
	return Outcome{Kind: KindInvalidArguments, Detail: missingArgsDetail}
}

func platformSendError(detail string, parts int) Outcome {
	return Outcome{Kind: KindPlatformSendError, Detail: detail, Parts: parts}
}

func notImplemented(method string) Outcome {
	return Outcome{Kind: KindNotImplemented, Detail: method}
}
