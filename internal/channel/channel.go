// Package channel implements the JSON method-call transport: a call names
// a method and carries an object of named arguments, and the reply is a
// result, a coded error, or a not-implemented marker.
package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/buger/jsonparser"

	"github.com/swatto/smsbridge/internal/sms"
)

// DefaultName is the channel name callers address.
const DefaultName = "pennywise/sms"

// Call is a decoded method call.
type Call struct {
	Method    string
	Arguments Arguments
}

// Arguments is the raw JSON object of a call's arguments.
type Arguments []byte

// Lookup returns the string value of an argument. Missing keys, JSON null
// and non-string values all read as absent.
func (a Arguments) Lookup(name string) (string, bool) {
	if len(a) == 0 {
		return "", false
	}
	value, dataType, _, err := jsonparser.Get(a, name)
	if err != nil || dataType != jsonparser.String {
		return "", false
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return "", false
	}
	return s, true
}

// Decode parses a method call envelope: {"method": ..., "arguments": {...}}.
func Decode(body []byte) (Call, error) {
	if err := requireObject(body); err != nil {
		return Call{}, err
	}

	method, err := jsonparser.GetString(body, "method")
	if err != nil || method == "" {
		return Call{}, errors.New("channel: missing method")
	}

	args, err := objectField(body, "arguments")
	if err != nil {
		return Call{}, err
	}
	return Call{Method: method, Arguments: args}, nil
}

// DecodeArguments treats body as the arguments object of an implied call.
func DecodeArguments(method string, body []byte) (Call, error) {
	if err := requireObject(body); err != nil {
		return Call{}, err
	}
	return Call{Method: method, Arguments: Arguments(body)}, nil
}

func requireObject(body []byte) error {
	_, dataType, _, err := jsonparser.Get(body)
	if err != nil {
		return fmt.Errorf("channel: invalid JSON: %w", err)
	}
	if dataType != jsonparser.Object {
		return fmt.Errorf("channel: expected a JSON object, got %s", dataType)
	}
	if !json.Valid(body) {
		return errors.New("channel: invalid JSON")
	}
	return nil
}

func objectField(body []byte, key string) (Arguments, error) {
	value, dataType, _, err := jsonparser.Get(body, key)
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("channel: invalid %s: %w", key, err)
	}
	switch dataType {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return Arguments(value), nil
	default:
		return nil, fmt.Errorf("channel: %s must be an object, got %s", key, dataType)
	}
}

// ErrorBody is the error half of a reply.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// Reply is the JSON body written back to the caller.
type Reply struct {
	Result         *bool      `json:"result,omitempty"`
	Error          *ErrorBody `json:"error,omitempty"`
	NotImplemented bool       `json:"notImplemented,omitempty"`
	Method         string     `json:"method,omitempty"`
}

// ReplyFor maps an outcome to an HTTP status and reply body.
func ReplyFor(out sms.Outcome) (int, Reply) {
	switch out.Kind {
	case sms.KindSuccess:
		ok := true
		return http.StatusOK, Reply{Result: &ok}
	case sms.KindInvalidArguments:
		return http.StatusBadRequest, Reply{Error: &ErrorBody{Code: sms.CodeInvalidArgs, Message: out.Detail}}
	case sms.KindNotImplemented:
		return http.StatusNotImplemented, Reply{NotImplemented: true, Method: out.Detail}
	default:
		return http.StatusBadGateway, Reply{Error: &ErrorBody{Code: sms.CodeSMSError, Message: out.Detail}}
	}
}

// WriteOutcome writes the reply for out as JSON.
func WriteOutcome(w http.ResponseWriter, out sms.Outcome) {
	status, reply := ReplyFor(out)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		slog.Error("channel: failed to encode reply", "error", err)
	}
}
