package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(500, "http://localhost:5000/chatbot", "internal server error")
	require.NotNil(t, err)

	assert.Equal(t, "API error [500] at http://localhost:5000/chatbot: internal server error", err.Error())
	assert.Equal(t, "API error at ep: boom", NewAPIError(0, "ep", "boom").Error())
}

func TestAPIErrorWithBody(t *testing.T) {
	err := NewAPIErrorWithBody(502, "ep", "bad gateway", "upstream down")
	wrapped := fmt.Errorf("send: %w", err)

	assert.Equal(t, 502, GetHTTPStatus(wrapped))
	assert.Equal(t, "ep", GetEndpoint(wrapped))
	assert.Equal(t, "upstream down", GetResponseBody(wrapped))
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkErrorWithEndpoint("send message", "http://127.0.0.1:5000/chatbot", cause)

	assert.Equal(t, "network error during send message at http://127.0.0.1:5000/chatbot: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("turn failed: %w", err)
	assert.True(t, IsNetworkError(wrapped))
	assert.Equal(t, "http://127.0.0.1:5000/chatbot", GetEndpoint(wrapped))
	assert.Zero(t, GetHTTPStatus(wrapped), "network errors carry no HTTP status")

	plain := NewNetworkError("send message", cause)
	assert.Equal(t, "network error during send message: connection refused", plain.Error())
}

func TestTimeoutError(t *testing.T) {
	assert.Equal(t, "request timed out: test timeout error", NewTimeoutError("test timeout error").Error())
	assert.Equal(t, "request timed out", NewTimeoutError("").Error())
}

func TestIsTimeoutError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout error", NewTimeoutError("x"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"network wrapping deadline", NewNetworkError("send", context.DeadlineExceeded), true},
		{"plain", errors.New("nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeoutError(tt.err))
		})
	}
}

func TestParseError(t *testing.T) {
	err := NewParseError("missing field", "response")

	assert.Equal(t, "parse error at response: missing field", err.Error())
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.ErrorIs(t, err, ErrNoContent, "a missing field is missing content")
	assert.NotErrorIs(t, err, errors.New("standard error"))

	notJSON := NewParseError("body is not JSON", "")
	assert.Equal(t, "parse error: body is not JSON", notJSON.Error())
	assert.NotErrorIs(t, notJSON, ErrNoContent)
	assert.True(t, IsParseError(fmt.Errorf("wrap: %w", notJSON)))
}

func TestIsDetached(t *testing.T) {
	assert.True(t, IsDetached(fmt.Errorf("append line: %w", ErrDetached)))
	assert.False(t, IsDetached(ErrClientClosed))
}

func TestGetters_NoMatch(t *testing.T) {
	err := errors.New("plain")
	assert.Zero(t, GetHTTPStatus(err))
	assert.Empty(t, GetEndpoint(err))
	assert.Empty(t, GetResponseBody(err))
}
