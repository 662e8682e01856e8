package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
)

// DefaultBaseURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultBaseURL = "http://localhost:11434/v1/chat/completions"

// Options is the sampling configuration of one generation call. Nil
// sampling fields leave the provider default in place.
type Options struct {
	System      string
	Temperature *float64
	TopP        *float64
}

// Float returns a pointer to v, for Options fields.
func Float(v float64) *float64 { return &v }

// Generator produces text for a prompt. Retryable failures wrap
// internalerr.ErrTransient, others internalerr.ErrFatal.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var messages []chatMessage
	if opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
	return c.complete(ctx, req)
}

// Chat sends a system and a user message with default sampling.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	return c.Generate(ctx, user, Options{System: system})
}

func (c *Client) complete(ctx context.Context, chat chatRequest) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("llm: base URL and model required: %w", internalerr.ErrFatal)
	}
	payload, err := c.send(ctx, chat)
	if err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response: %w", internalerr.ErrFatal)
	}
	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: empty message: %w", internalerr.ErrTransient)
	}
	return content, nil
}

func (c *Client) send(ctx context.Context, chat chatRequest) (*chatResponse, error) {
	reqBody, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", internalerr.ErrFatal)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: %v: %w", err, internalerr.ErrFatal)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("llm: http %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), classifyStatus(resp.StatusCode))
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm: decode response: %v: %w", err, internalerr.ErrFatal)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error: %s: %w", payload.Error.Message, internalerr.ErrFatal)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return internalerr.ErrTransient
	default:
		return internalerr.ErrFatal
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Timeouts and connection failures are worth another attempt.
	return fmt.Errorf("llm: %v: %w", err, internalerr.ErrTransient)
}
