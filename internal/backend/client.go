// Package backend provides a typed HTTP client for the first-party chat
// backend service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second

	chatPath = "/chat/v1/messages"
)

// DocumentRef is one retrieved source document cited by a chat answer.
type DocumentRef struct {
	DocumentID string `json:"documentId"`
	SourceFile string `json:"sourceFile"`
	// SensitivityLabel is a label GUID or plain label name from the index.
	SensitivityLabel string `json:"sensitivityLabel,omitempty"`
}

// ChatRequest is one chat turn sent to the backend.
type ChatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// ChatResponse is the backend's answer for one turn.
type ChatResponse struct {
	ConversationID string        `json:"conversationId"`
	Answer         string        `json:"answer"`
	Documents      []DocumentRef `json:"documents,omitempty"`
}

// Config holds backend client configuration.
type Config struct {
	// TokenRefresh optionally resolves a token dynamically when Token is empty.
	TokenRefresh func(ctx context.Context) (string, error)
	// BaseURL is the root URL of the chat backend.
	BaseURL string
	// Token is the bearer token used for API requests.
	Token string
	// Timeout is the per-request timeout. Defaults to 60s.
	Timeout time.Duration
}

// Client is the typed HTTP client for the chat backend.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     Config
}

// New creates a new backend chat client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = baseURL

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: baseURL,
		cfg:     cfg,
	}, nil
}

// Chat submits one user message and returns the generated answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("backend: encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("backend: building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	token := strings.TrimSpace(c.cfg.Token)
	if token == "" && c.cfg.TokenRefresh != nil {
		token, err = c.cfg.TokenRefresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend: resolving token: %w", err)
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: sending chat message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("backend: chat endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("backend: decoding chat response: %w", err)
	}
	return &result, nil
}
