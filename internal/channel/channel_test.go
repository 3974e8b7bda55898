package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swatto/smsbridge/internal/sms"
)

func TestDecode(t *testing.T) {
	call, err := Decode([]byte(`{"method":"sendSMS","arguments":{"phone":"+15551234567","message":"Hello \"you\"\n"}}`))
	require.NoError(t, err)

	assert.Equal(t, "sendSMS", call.Method)
	phone, ok := call.Arguments.Lookup("phone")
	assert.True(t, ok)
	assert.Equal(t, "+15551234567", phone)
	msg, ok := call.Arguments.Lookup("message")
	assert.True(t, ok)
	assert.Equal(t, "Hello \"you\"\n", msg)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"not json", `hello`},
		{"array", `[1,2]`},
		{"missing method", `{"arguments":{}}`},
		{"empty method", `{"method":""}`},
		{"arguments not object", `{"method":"sendSMS","arguments":"phone"}`},
		{"trailing garbage", `{"method":"sendSMS"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDecode_AbsentArguments(t *testing.T) {
	for _, body := range []string{`{"method":"sendSMS"}`, `{"method":"sendSMS","arguments":null}`} {
		call, err := Decode([]byte(body))
		require.NoError(t, err, body)
		_, ok := call.Arguments.Lookup("phone")
		assert.False(t, ok, body)
	}
}

func TestArguments_Lookup(t *testing.T) {
	args := Arguments(`{"phone":null,"message":42,"empty":"","nested":{"a":"b"}}`)

	_, ok := args.Lookup("phone")
	assert.False(t, ok, "null reads as absent")
	_, ok = args.Lookup("message")
	assert.False(t, ok, "number reads as absent")
	_, ok = args.Lookup("nested")
	assert.False(t, ok, "object reads as absent")
	_, ok = args.Lookup("missing")
	assert.False(t, ok)

	v, ok := args.Lookup("empty")
	assert.True(t, ok, "empty string is present")
	assert.Empty(t, v)
}

func TestDecodeArguments(t *testing.T) {
	call, err := DecodeArguments(sms.MethodSendSMS, []byte(`{"phone":"+1","message":"Hi"}`))
	require.NoError(t, err)
	assert.Equal(t, sms.MethodSendSMS, call.Method)
	v, ok := call.Arguments.Lookup("message")
	assert.True(t, ok)
	assert.Equal(t, "Hi", v)

	_, err = DecodeArguments(sms.MethodSendSMS, []byte(`"text"`))
	assert.Error(t, err)
}

func TestWriteOutcome(t *testing.T) {
	tests := []struct {
		name       string
		outcome    sms.Outcome
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			outcome:    sms.Outcome{Kind: sms.KindSuccess, Parts: 1},
			wantStatus: http.StatusOK,
			wantBody:   `{"result":true}`,
		},
		{
			name:       "invalid args",
			outcome:    sms.Outcome{Kind: sms.KindInvalidArguments, Detail: "recipient or message is missing"},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":{"code":"INVALID_ARGS","message":"recipient or message is missing","details":null}}`,
		},
		{
			name:       "send error",
			outcome:    sms.Outcome{Kind: sms.KindPlatformSendError, Detail: "permission denied"},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":{"code":"SMS_ERROR","message":"permission denied","details":null}}`,
		},
		{
			name:       "not implemented",
			outcome:    sms.Outcome{Kind: sms.KindNotImplemented, Detail: "readInbox"},
			wantStatus: http.StatusNotImplemented,
			wantBody:   `{"notImplemented":true,"method":"readInbox"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteOutcome(w, tt.outcome)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())

			var reply Reply
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
		})
	}
}
