package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.hubapi.com"

// Association type ids defined by HubSpot.
const (
	assocDealToContact = 3
	assocNoteToDeal    = 214
)

type Config struct {
	AccessToken string `envconfig:"HUBSPOT_ACCESS_TOKEN"`
	BaseURL     string `envconfig:"HUBSPOT_BASE_URL" default:"https://api.hubapi.com"`
	// PortalLink is shown to clients as their document portal.
	PortalLink string `envconfig:"HUBSPOT_PORTAL_LINK" default:"https://drive.google.com/"`
}

// Client is a thin HubSpot CRM v3/v4 REST client. Without an access token it
// runs in simulation mode and returns fixed identifiers.
type Client struct {
	baseURL    string
	token      string
	portalLink string
	httpClient *http.Client
	now        func() time.Time
}

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL:    base,
		token:      cfg.AccessToken,
		portalLink: cfg.PortalLink,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// Simulated reports whether the client has no credentials.
func (c *Client) Simulated() bool {
	return c.token == ""
}

// APIError is a non-2xx HubSpot response.
type APIError struct {
	Status   int
	Message  string
	Category string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hubspot: status %d", e.Status)
	}
	return fmt.Sprintf("hubspot: status %d: %s", e.Status, e.Message)
}

var existingIDPattern = regexp.MustCompile(`Existing ID:\s*(\d+)`)

// existingID extracts the contact id HubSpot reports on a duplicate create.
func (e *APIError) existingID() string {
	if e.Status != http.StatusConflict {
		return ""
	}
	if m := existingIDPattern.FindStringSubmatch(e.Message); len(m) == 2 {
		return m[1]
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp struct {
			Message  string `json:"message"`
			Category string `json:"category"`
		}
		if json.Unmarshal(data, &errResp) == nil {
			apiErr.Message = errResp.Message
			apiErr.Category = errResp.Category
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func objectPath(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}
