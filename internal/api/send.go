package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/polychat/internal/errors"
	"github.com/diogo/polychat/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// Sender sends one message and returns the chatbot's reply text
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Send posts message to the chatbot endpoint and returns the reply.
// It issues exactly one request; failures are never retried.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	if c.IsClosed() {
		return "", apierrors.ErrClientClosed
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.Endpoint(models.EndpointChatbot)

	payload, err := json.Marshal(models.ChatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", apierrors.NewNetworkErrorWithEndpoint("send message", endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("chatbot responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", apierrors.NewAPIErrorWithBody(resp.StatusCode, endpoint, "send message failed", string(errorBody))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("read reply", endpoint, err)
	}

	return parseReply(body)
}

// parseReply extracts the "response" field of a chatbot reply
func parseReply(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", apierrors.NewParseError("reply body is not valid JSON", "")
	}

	result := gjson.GetBytes(body, PathResponse)
	if !result.Exists() {
		return "", apierrors.NewParseError("reply has no response field", PathResponse)
	}
	if result.Type != gjson.String {
		return "", apierrors.NewParseError(fmt.Sprintf("response field is %s, not a string", result.Type), PathResponse)
	}

	return result.String(), nil
}

// Ask sends message through sender and folds the result into an Outcome
func Ask(ctx context.Context, sender Sender, message string) models.Outcome {
	reply, err := sender.Send(ctx, message)
	if err != nil {
		return models.Failed(err)
	}
	return models.Succeeded(reply)
}
