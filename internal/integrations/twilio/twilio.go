package twilio

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lofty-concierge/server/internal/agent/model"
)

const (
	defaultBaseURL  = "https://api.twilio.com"
	defaultGreeting = "Welcome to F and L Design Builders. Please hold while we connect you to a project manager."
	noAgentMessage  = "No agent is currently available. Please leave a message."
)

type Config struct {
	AccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	FromNumber string `envconfig:"TWILIO_PHONE_NUMBER"`
	// ForwardTo receives inbound calls.
	ForwardTo string `envconfig:"CLIENT_PERSONAL_PHONE"`
	Greeting  string `envconfig:"TWILIO_GREETING"`
	BaseURL   string `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
}

// Client sends SMS through the Twilio REST API and renders TwiML for inbound calls.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	cfg.FromNumber = strings.TrimSpace(cfg.FromNumber)
	cfg.ForwardTo = strings.TrimSpace(cfg.ForwardTo)
	if cfg.Greeting == "" {
		cfg.Greeting = defaultGreeting
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{cfg: cfg, baseURL: base, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// Enabled reports whether credentials and a sender number are configured.
func (c *Client) Enabled() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.FromNumber != ""
}

// SendSMS returns the message sid. It returns "" without error when disabled.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	form := url.Values{}
	form.Set("To", strings.TrimSpace(to))
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	var out struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	_ = json.Unmarshal(data, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio: status %d: code %d: %s", resp.StatusCode, out.Code, out.Message)
	}
	return out.SID, nil
}

type say struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type voiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     []say    `xml:"Say"`
	Dial    string   `xml:"Dial,omitempty"`
}

// RenderInboundCallResponse greets the caller and forwards to the operator phone.
func (c *Client) RenderInboundCallResponse() (string, error) {
	resp := voiceResponse{Say: []say{{Voice: "alice", Language: "en-US", Text: c.cfg.Greeting}}}
	if c.cfg.ForwardTo != "" {
		resp.Dial = c.cfg.ForwardTo
	} else {
		resp.Say = append(resp.Say, say{Text: noAgentMessage})
	}
	return marshalTwiML(resp)
}

type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// RenderMessageResponse replies to an inbound SMS inline.
func RenderMessageResponse(text string) (string, error) {
	return marshalTwiML(messagingResponse{Message: text})
}

func marshalTwiML(v any) (string, error) {
	b, err := xml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(b), nil
}

var _ model.Telephony = (*Client)(nil)
