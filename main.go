package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/core"
	"github.com/lofty-concierge/server/internal/integrations/drive"
	"github.com/lofty-concierge/server/internal/integrations/hubspot"
	"github.com/lofty-concierge/server/internal/integrations/quotepdf"
	"github.com/lofty-concierge/server/internal/integrations/twilio"
	"github.com/lofty-concierge/server/internal/integrations/wix"
	"github.com/lofty-concierge/server/internal/transport/httpapi"
	logx "github.com/lofty-concierge/server/pkg/logger"
	pkgredis "github.com/lofty-concierge/server/pkg/redis"
	pkgsqlite "github.com/lofty-concierge/server/pkg/sqlite"
)

const (
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	SessionBackend string `envconfig:"SESSION_BACKEND" default:"redis"`
	Redis          pkgredis.Config
	SQLite         pkgsqlite.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response     model.ResponseModelConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
	Retrieval    model.RetrievalConfig

	KnowledgeDir   string `envconfig:"KNOWLEDGE_DIR" default:"knowledge"`
	ToolPolicyFile string `envconfig:"TOOL_POLICY_FILE"`
	// OperatorPhone receives lead and callback alerts; defaults to the call forwarding number.
	OperatorPhone string `envconfig:"OPERATOR_PHONE"`
	UploadURL     string `envconfig:"SECURE_UPLOAD_URL"`

	// Collaborators
	HubSpot hubspot.Config
	Wix     wix.Config
	Twilio  twilio.Config
	Drive   drive.Config
	Quotes  quotepdf.Config

	HTTP httpapi.Config
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if cfg.OperatorPhone == "" {
		cfg.OperatorPhone = cfg.Twilio.ForwardTo
	}
	cfg.HTTP.QuotesDir = cfg.Quotes.OutputDir

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})
	return &cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:           "lofty",
		Short:         "LOFTY concierge for F&L Design Builders",
		Long:          "Conversational lead qualification, quoting and client portal backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		chatCmd(),
		ingestCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
