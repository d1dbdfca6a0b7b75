package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lofty-concierge/server/internal/agent/graph"
	"github.com/lofty-concierge/server/internal/agent/graph/tools"
	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/agent/orchestrator"
	"github.com/lofty-concierge/server/internal/agent/repo"
	"github.com/lofty-concierge/server/internal/integrations/drive"
	"github.com/lofty-concierge/server/internal/integrations/hubspot"
	"github.com/lofty-concierge/server/internal/integrations/knowledge"
	"github.com/lofty-concierge/server/internal/integrations/quotepdf"
	"github.com/lofty-concierge/server/internal/integrations/twilio"
	"github.com/lofty-concierge/server/internal/integrations/wix"
	"github.com/lofty-concierge/server/internal/policy"
	"github.com/lofty-concierge/server/internal/transport/httpapi"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// app holds the wired service and the resources to release on shutdown.
type app struct {
	orchestrator *orchestrator.Orchestrator
	crm          *hubspot.Client
	drive        *drive.Client
	twilio       *twilio.Client
	closers      []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) handler(cfg *AppConfig) *httpapi.Handler {
	return httpapi.NewHandler(a.orchestrator, a.crm, a.drive, a.twilio, cfg.HTTP)
}

func buildApp(ctx context.Context, cfg *AppConfig) (_ *app, err error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	dialoguePolicy, err := model.LoadDialoguePolicy(cfg.Prompt.PolicyFile)
	if err != nil {
		return nil, err
	}

	store, err := openSessionStore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	index, err := openKnowledge(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, index)

	engine, err := policy.LoadEngine(ctx, cfg.ToolPolicyFile)
	if err != nil {
		return nil, err
	}

	renderer, err := quotepdf.New(cfg.Quotes)
	if err != nil {
		return nil, err
	}

	a.crm = hubspot.New(cfg.HubSpot)
	if a.crm.Simulated() {
		logx.Warn().Msg("HUBSPOT_ACCESS_TOKEN not set; CRM runs in simulation mode")
	}
	a.twilio = twilio.New(cfg.Twilio)
	a.drive, err = drive.New(ctx, cfg.Drive)
	if err != nil {
		return nil, err
	}

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ResponseModel:  cfg.Response,
		ResponsePrompt: cfg.Prompt,
		Conversation:   cfg.Conversation,
		Retrieval:      cfg.Retrieval,
		Policy:         dialoguePolicy,
		Searcher:       index,
		Tools: tools.Deps{
			CRM:           a.crm,
			Mailing:       wix.New(cfg.Wix),
			Telephony:     a.twilio,
			Documents:     a.drive,
			Quotes:        renderer,
			Gate:          tools.PolicyGate{Engine: engine},
			OperatorPhone: cfg.OperatorPhone,
			QuoteBaseURL:  cfg.Quotes.APIBaseURL,
			UploadURL:     cfg.UploadURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	a.orchestrator = orchestrator.New(store, runner, dialoguePolicy, cfg.Conversation)
	return a, nil
}

func openSessionStore(ctx context.Context, cfg *AppConfig, a *app) (model.SessionStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case backendRedis, "":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.closers = append(a.closers, rdb)
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisSessionStore(rdb, cfg.Conversation.TTL), nil
	case backendSQLite:
		db, err := cfg.SQLite.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		a.closers = append(a.closers, db)
		store, err := repo.NewSQLiteSessionStore(ctx, db, cfg.Conversation.TTL)
		if err != nil {
			return nil, err
		}
		logx.Info().Str("path", cfg.SQLite.Path).Msg("Session database ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}

// openKnowledge opens the index and seeds it on first use.
func openKnowledge(cfg *AppConfig) (*knowledge.BleveIndex, error) {
	index, err := knowledge.Open(cfg.Retrieval.IndexPath)
	if err != nil {
		return nil, err
	}
	count, err := index.Count()
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("count knowledge documents: %w", err)
	}
	if count == 0 {
		if _, err := knowledge.IngestDir(index, knowledgeDir(cfg.KnowledgeDir)); err != nil {
			_ = index.Close()
			return nil, err
		}
	}
	return index, nil
}

// knowledgeDir returns dir, or "" when it does not exist so only the
// business rules are indexed.
func knowledgeDir(dir string) string {
	if dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); err != nil {
		logx.Warn().Str("dir", dir).Msg("knowledge directory not found; indexing business rules only")
		return ""
	}
	return dir
}
