package glowmarkt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.glowmarkt.com/api/v0-1/"

	headerApplicationID = "applicationId"
	headerToken         = "token"
)

// ErrInvalidAuth is the only distinguished error kind: the API rejected the
// token or the credentials. Everything else is returned wrapped as-is.
var ErrInvalidAuth = errors.New("glowmarkt: invalid auth")

// Client talks to the Glowmarkt metering API. The token is mutable so a
// session owner can swap it in after a re-authentication.
type Client struct {
	baseURL string
	appID   string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, appID, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		appID:   appID,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticate exchanges username/password for a bearer token. The client's
// own token is not updated; callers decide when to adopt the new one.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Auth, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"auth", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerApplicationID, c.appID)

	var resp struct {
		Valid bool   `json:"valid"`
		Token string `json:"token"`
		Exp   int64  `json:"exp"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid || resp.Token == "" {
		return nil, ErrInvalidAuth
	}

	auth := &Auth{Token: resp.Token}
	if resp.Exp > 0 {
		auth.ExpiresAt = time.Unix(resp.Exp, 0)
	}
	return auth, nil
}

// RetrieveResources lists the account's meter resources.
func (c *Client) RetrieveResources(ctx context.Context) ([]Resource, error) {
	req, err := c.getRequest(ctx, "resource")
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ResourceID                 string `json:"resourceId"`
		Label                      string `json:"label"`
		Classifier                 string `json:"classifier"`
		DataSourceResourceTypeInfo struct {
			Type string `json:"type"`
		} `json:"dataSourceResourceTypeInfo"`
	}
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(raw))
	for _, r := range raw {
		resources = append(resources, Resource{
			ID:         r.ResourceID,
			Label:      r.Label,
			Classifier: r.Classifier,
			SourceType: parseSourceType(r.DataSourceResourceTypeInfo.Type),
		})
	}
	return resources, nil
}

// CurrentUsage fetches the latest consumption reading for a resource.
func (c *Client) CurrentUsage(ctx context.Context, resourceID string) (*Reading, error) {
	req, err := c.getRequest(ctx, fmt.Sprintf("resource/%s/current", resourceID))
	if err != nil {
		return nil, err
	}

	var raw struct {
		Data  [][2]float64 `json:"data"`
		Units string       `json:"units"`
	}
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}

	return &Reading{
		Data:  raw.Data,
		Units: raw.Units,
		At:    time.Now(),
	}, nil
}

func (c *Client) getRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerApplicationID, c.appID)
	req.Header.Set(headerToken, c.currentToken())
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("glowmarkt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrInvalidAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("glowmarkt http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
