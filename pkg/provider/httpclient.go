package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient speaks the OpenAI-compatible chat completions wire format,
// which local runtimes and the hosted providers in the default registry
// all accept.
type HTTPClient struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a client for one backend. timeout bounds the whole
// upstream call unless the caller's context is tighter.
func NewHTTPClient(name, baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the backend name.
func (c *HTTPClient) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Generate performs one chat completion and returns the raw response text.
// Failures come back as *Error with the kind the fallback loop needs.
func (c *HTTPClient) Generate(ctx context.Context, params GenerateParams) (string, error) {
	if _, err := url.Parse(c.baseURL); err != nil {
		return "", &Error{Kind: KindNetwork, ModelID: params.Model.ID, Err: fmt.Errorf("invalid base URL: %w", err)}
	}

	var msgs []chatMessage
	if params.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: params.SystemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: params.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       params.Model.ID,
		Messages:    msgs,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, ModelID: params.Model.ID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindNetwork, ModelID: params.Model.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			kind = KindTimeout
		}
		return "", &Error{Kind: kind, ModelID: params.Model.ID, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, ModelID: params.Model.ID, Err: fmt.Errorf("read response: %w", err)}
	}

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return "", &Error{Kind: kind, ModelID: params.Model.ID,
			Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, trim(respBody, 200))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindMalformed, ModelID: params.Model.ID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, ModelID: params.Model.ID, Err: fmt.Errorf("response has no choices")}
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return "", &Error{Kind: KindSafety, ModelID: params.Model.ID, Err: fmt.Errorf("response blocked by content filter")}
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		return "", &Error{Kind: KindMalformed, ModelID: params.Model.ID, Err: fmt.Errorf("response has empty content")}
	}
	return content, nil
}

// classifyStatus maps upstream status codes onto the error taxonomy.
func classifyStatus(code int) (ErrorKind, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusTooManyRequests:
		return KindRateLimit, true
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout, true
	case code == http.StatusForbidden:
		return KindSafety, true
	default:
		return KindNetwork, true
	}
}

func isClientTimeout(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

func trim(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
