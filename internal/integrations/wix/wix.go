package wix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lofty-concierge/server/internal/agent/model"
)

const defaultSource = "LOFTY AI Chatbot"

type Config struct {
	WebhookURL string `envconfig:"WIX_WEBHOOK_URL"`
	Source     string `envconfig:"WIX_SOURCE" default:"LOFTY AI Chatbot"`
}

// Client pushes leads to a Wix site function that adds them to contacts and
// the newsletter.
type Client struct {
	url        string
	source     string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	source := cfg.Source
	if source == "" {
		source = defaultSource
	}
	return &Client{
		url:        strings.TrimSpace(cfg.WebhookURL),
		source:     source,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c.url != ""
}

type subscriber struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Source    string `json:"source"`
}

// UpsertSubscriber returns false without error when no webhook is configured.
func (c *Client) UpsertSubscriber(ctx context.Context, name, email, phone string) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	parts := strings.Fields(name)
	sub := subscriber{Email: email, Phone: phone, Source: c.source}
	if len(parts) > 0 {
		sub.FirstName = parts[0]
		sub.LastName = strings.Join(parts[1:], " ")
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("error marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("wix sync failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return true, nil
}

var _ model.MailingList = (*Client)(nil)
