package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/lofty-concierge/server/internal/agent/model"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"
	scopeReadOnly  = "https://www.googleapis.com/auth/drive.readonly"
	folderMIME     = "application/vnd.google-apps.folder"
)

type Config struct {
	CredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE" default:"credentials.json"`
	BaseURL         string `envconfig:"GOOGLE_DRIVE_BASE_URL" default:"https://www.googleapis.com/drive/v3"`
}

// Client finds a client's project folder by email and lists its files.
// Without credentials it is disabled and lists nothing.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New authenticates with the service account file. A missing file yields a
// disabled client, not an error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if errors.Is(err, fs.ErrNotExist) {
		logx.Warn().Str("file", cfg.CredentialsFile).Msg("drive credentials not found; drive features disabled")
		return &Client{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, scopeReadOnly)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	return NewWithHTTPClient(cfg.BaseURL, oauth2.NewClient(ctx, creds.TokenSource)), nil
}

// NewWithHTTPClient uses an already authorized HTTP client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{baseURL: base, httpClient: httpClient}
}

func (c *Client) Enabled() bool {
	return c.httpClient != nil
}

type driveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WebViewLink string `json:"webViewLink"`
}

// ListClientFiles returns the files in the first folder whose name contains email.
func (c *Client) ListClientFiles(ctx context.Context, email string) ([]model.ClientFile, error) {
	if !c.Enabled() || strings.TrimSpace(email) == "" {
		return nil, nil
	}

	folders, err := c.list(ctx,
		fmt.Sprintf("mimeType = '%s' and name contains '%s' and trashed = false", folderMIME, quote(email)),
		"files(id, name)")
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, nil
	}

	files, err := c.list(ctx,
		fmt.Sprintf("'%s' in parents and trashed = false", quote(folders[0].ID)),
		"files(id, name, webViewLink)")
	if err != nil {
		return nil, err
	}

	out := make([]model.ClientFile, 0, len(files))
	for _, f := range files {
		out = append(out, model.ClientFile{ID: f.ID, Name: f.Name, Link: f.WebViewLink})
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, q, fields string) ([]driveFile, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("fields", fields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("drive: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Files []driveFile `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return out.Files, nil
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

var _ model.DocumentStore = (*Client)(nil)
