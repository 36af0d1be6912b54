// Package graph provides a typed HTTP client SDK for the Microsoft Graph
// data security and governance (Purview) endpoints purviewgate consumes.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattgotteiner/purviewgate/pkg/types"
)

const (
	defaultTimeout = 30 * time.Second

	protectionScopesPath = "/me/dataSecurityAndGovernance/protectionScopes/compute"
	processContentPath   = "/me/dataSecurityAndGovernance/processContent"
	sensitivityLabelPath = "/security/dataSecurityAndGovernance/sensitivityLabels"

	// Two distinct correlation slots: one the client chooses, one echoed by
	// the service side. Both are stamped with a fresh UUID on every call.
	headerClientRequestID  = "client-request-id"
	headerServiceRequestID = "x-ms-client-request-id"

	userAgent = "purviewgate-go-client"
)

// Config holds Graph client configuration.
type Config struct {
	// TokenRefresh optionally resolves a bearer token dynamically when Token
	// is empty. Called once per request.
	TokenRefresh func(ctx context.Context) (string, error)
	// BaseURL is the Graph API root (for example: https://graph.microsoft.com/v1.0).
	BaseURL string
	// Token is the bearer token used for API requests.
	Token string
	// Timeout is the per-request timeout. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the underlying transport. Defaults to a client
	// with Timeout applied.
	HTTPClient *http.Client
}

// Client is the typed HTTP SDK for Graph data-security APIs.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     Config
}

// New creates a new Graph data-security client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("graph: BaseURL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = baseURL

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		cfg:     cfg,
	}, nil
}

// ComputeProtectionScopes computes the caller's current DLP protection scope.
// A non-empty ifNoneMatch tag is attached as a conditional-revalidation
// precondition; a 304 answer yields NotModified=true with the tag echoed
// unchanged and an empty scope identifier.
func (c *Client) ComputeProtectionScopes(ctx context.Context, ifNoneMatch string) (*ProtectionScopesResponse, error) {
	body := map[string]string{"dataType": "text"}
	req, err := c.newRequest(ctx, http.MethodPost, protectionScopesPath, body)
	if err != nil {
		return nil, err
	}
	if tag := strings.TrimSpace(ifNoneMatch); tag != "" {
		req.Header.Set("If-None-Match", tag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "computing protection scopes", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &ProtectionScopesResponse{
			ETag:        strings.TrimSpace(ifNoneMatch),
			NotModified: true,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, endpointError("computing protection scopes", resp)
	}

	var result ProtectionScopesResponse
	decodeLenient(resp.Body, &result)
	result.ETag = strings.TrimSpace(resp.Header.Get("ETag"))
	return &result, nil
}

// ProcessContent submits one content entry for policy evaluation against the
// scope named in the request envelope.
func (c *Client) ProcessContent(ctx context.Context, payload *ProcessContentRequest) (*ProcessContentResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, processContentPath, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "processing content", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, endpointError("processing content", resp)
	}

	var result ProcessContentResponse
	decodeLenient(resp.Body, &result)
	result.StatusCode = resp.StatusCode
	result.Header = resp.Header.Clone()
	return &result, nil
}

// GetSensitivityLabel resolves one Purview sensitivity label by GUID.
func (c *Client) GetSensitivityLabel(ctx context.Context, id string) (*types.SensitivityLabel, error) {
	labelID := strings.TrimSpace(id)
	if labelID == "" {
		return nil, fmt.Errorf("graph: label id is required")
	}

	path := fmt.Sprintf("%s/%s", sensitivityLabelPath, url.PathEscape(labelID))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("resolving sensitivity label %q", labelID), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, endpointError(fmt.Sprintf("resolving sensitivity label %q", labelID), resp)
	}

	var label types.SensitivityLabel
	decodeLenient(resp.Body, &label)
	if label.ID == "" {
		label.ID = labelID
	}
	return &label, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("graph: encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("graph: building request: %w", err)
	}

	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: resolving token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerClientRequestID, uuid.NewString())
	req.Header.Set(headerServiceRequestID, uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		return token, nil
	}
	if c.cfg.TokenRefresh != nil {
		token, err := c.cfg.TokenRefresh(ctx)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(token), nil
	}
	return "", nil
}

// decodeLenient decodes a 2xx JSON body into v. A malformed body degrades to
// the zero value rather than failing the call; strict validation of required
// fields happens in the consuming layer.
func decodeLenient(r io.Reader, v any) {
	data, err := io.ReadAll(r)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return
	}
	_ = json.Unmarshal(data, v)
}

func endpointError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &EndpointError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       bytes.TrimSpace(raw),
	}
}
