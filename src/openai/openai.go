package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wordbridge/src/log"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// ConfigurationError is returned when the client cannot be configured, e.g.
// a missing API key. Callers must not retry it.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ResponseError is returned when the request fails in transit or the service
// returns an invalid or empty response.
type ResponseError struct {
	Message string
	Err     error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ResponseError) Unwrap() error { return e.Err }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client is a minimal chat-completions client for OpenAI-compatible APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient builds a client. A missing API key is not an error here: it
// surfaces as a ConfigurationError on the first call, so each job fails
// permanently rather than the whole process refusing to start. Request
// timeouts belong to the supplied http.Client, not to the callers.
func NewClient(apiKey, baseURL, model string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		httpClient: c,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// GenerateJSON sends a system and user message pair and returns the raw JSON
// object the model produced.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	if c.apiKey == "" {
		return "", &ConfigurationError{Message: "openai api key is not configured"}
	}

	reqBody := chatRequest{
		Model:          c.model,
		Temperature:    temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error(err, "chat completion request failed")
		return "", &ResponseError{Message: "chat completion request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ResponseError{Message: "error reading response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error(nil, "chat completion returned non-2xx status", "status", resp.Status)
		return "", &ResponseError{Message: fmt.Sprintf("chat completion returned status %s", resp.Status)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ResponseError{Message: "error unmarshaling response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &ResponseError{Message: "response contained no choices"}
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		return "", &ResponseError{Message: "response message was empty"}
	}
	return content, nil
}
