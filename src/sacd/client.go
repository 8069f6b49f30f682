package sacd

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a thin wrapper around SACD's remote declaration endpoint. All
// declaration content is produced by PrepareDeclarationParameter; the client
// only moves bytes and the session token around.
type Client struct {
	baseURL    string
	providerID string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, providerID, password string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, providerID, password, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP is used by tests to point the client at a local server.
func NewClientWithHTTP(baseURL, providerID, password string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		providerID: providerID,
		password:   password,
		httpClient: httpClient,
	}
}

type loginRequest struct {
	XMLName  xml.Name `xml:"Login"`
	Provider string   `xml:"Provider"`
	Password string   `xml:"Password"`
}

type loginResponse struct {
	XMLName xml.Name `xml:"Session"`
	Token   string   `xml:"Token"`
}

// Login opens a session and returns its token. The body is marshaled so
// reserved XML characters in credentials stay escaped.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, err := xml.Marshal(loginRequest{Provider: c.providerID, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("sacd: encode login request: %w", err)
	}
	payload, err := c.post(ctx, "/login", "", string(body))
	if err != nil {
		return "", err
	}

	var session loginResponse
	if err := xml.Unmarshal(payload, &session); err != nil {
		return "", fmt.Errorf("sacd: decode login response: %w", err)
	}
	if session.Token == "" {
		return "", fmt.Errorf("sacd: login response carries no token")
	}
	return session.Token, nil
}

// Declare submits a prepared declaration payload and returns the parsed
// acknowledgement.
func (c *Client) Declare(ctx context.Context, token, declarationPayload string) (DeclarationResponse, error) {
	payload, err := c.post(ctx, "/declare", token, declarationPayload)
	if err != nil {
		return DeclarationResponse{}, err
	}
	return ParseDeclarationResponse(payload)
}

// Logout closes the session. Failures are returned but are safe to ignore;
// sessions expire server-side anyway.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.post(ctx, "/logout", token, "")
	return err
}

func (c *Client) post(ctx context.Context, path, token, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sacd: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sacd: %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sacd: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The body is SACD's own error payload; surface it as-is.
		return nil, fmt.Errorf("sacd: unexpected status %d on %s: %s", resp.StatusCode, path, string(payload))
	}
	return payload, nil
}
