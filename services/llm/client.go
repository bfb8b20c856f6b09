// Package llm calls the configured chat-completions endpoint used for mood
// analysis. One operation, one fixed prompt contract.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable marks transport-level failures that survived every retry.
var ErrUnavailable = errors.New("llm unavailable")

// Options configures a Client.
type Options struct {
	APIURL     string
	APIKey     string
	Model      string
	Retries    int
	Timeout    time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
}

type Client struct {
	apiURL     string
	apiKey     string
	model      string
	retries    int
	retryDelay time.Duration
	httpc      *http.Client
}

func New(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "meta-llama/llama-3.1-8b-instruct"
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		apiURL:     strings.TrimSpace(opts.APIURL),
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      opts.Model,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		httpc:      httpc,
	}
}

func (c *Client) IsConfigured() bool {
	return c.apiURL != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

// Complete sends the system prompt and user text and returns the decoded
// provider response. Only transport-level failures are retried, with a fixed
// delay between attempts; HTTP responses of any status (including auth
// errors) are returned immediately.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (map[string]any, error) {
	if !c.IsConfigured() {
		return nil, errors.New("llm api url not configured")
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal llm request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[llm] http error (attempt %d/%d): %v", attempt+1, c.retries, err)
			continue
		}

		out, err := decodeResponse(resp)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func decodeResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("llm request failed (%d): %s", resp.StatusCode, string(body))
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}
	return out, nil
}

// ExtractText pulls plain text out of a provider-shaped response. Supported
// shapes, in order: a direct content string, content as a list of typed text
// blocks, OpenAI-style choices/message/content, and top-level
// output/result/text fields. Anything else stringifies the whole response.
func ExtractText(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	if text := contentText(resp["content"]); text != "" {
		return text
	}
	if choices, ok := resp["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if text := contentText(msg["content"]); text != "" {
					return text
				}
			}
			if text, ok := choice["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	for _, field := range []string{"output", "result", "text"} {
		if text, ok := resp[field].(string); ok && text != "" {
			return text
		}
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprint(resp)
	}
	return string(raw)
}

// contentText handles both a plain string and a list of {type, text} blocks.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, block := range v {
			m, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
