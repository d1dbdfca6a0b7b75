package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/lofty-concierge/server/internal/agent/classifier"
	"github.com/lofty-concierge/server/internal/agent/dialogue"
	"github.com/lofty-concierge/server/internal/agent/graph/nodes"
	"github.com/lofty-concierge/server/internal/agent/graph/observers"
	"github.com/lofty-concierge/server/internal/agent/graph/tools"
	"github.com/lofty-concierge/server/internal/agent/model"
	"github.com/lofty-concierge/server/internal/agent/retriever"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// Runner executes one turn through the compiled graph.
type Runner interface {
	Run(ctx context.Context, in *model.TurnRequest) (*model.TurnResult, error)
}

// Config holds everything needed to compose the full response graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat model,
// the tool registry and the dialogue components.
type Config struct {
	APIKey         string
	BaseURL        string
	ResponseModel  model.ResponseModelConfig
	ResponsePrompt model.ResponsePromptConfig
	Conversation   model.ConversationConfig
	Retrieval      model.RetrievalConfig
	Policy         *model.DialoguePolicy
	Searcher       model.Searcher
	Tools          tools.Deps
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels    *nodes.ChatModels
	Registry      *tools.Registry
	Classifier    *classifier.Classifier
	Retriever     *retriever.Retriever
	Controller    *dialogue.Controller
	MaxIterations int
}

// GraphBuilder handles the construction of the turn graph
type GraphBuilder struct {
	config *GraphConfig
	policy *model.DialoguePolicy
	graph  *compose.Graph[*model.TurnRequest, *model.TurnResult]
}

type graphRunner struct {
	runnable compose.Runnable[*model.TurnRequest, *model.TurnResult]
}

func (r *graphRunner) Run(ctx context.Context, in *model.TurnRequest) (*model.TurnResult, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("graph returned no result")
	}
	return out, nil
}

// BuildResponseGraph creates the chat model and dialogue components, builds the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Policy == nil {
		return nil, fmt.Errorf("dialogue policy is nil")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("searcher is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		RespConfig: &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	registry, err := tools.NewRegistry(cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	runner, err := NewRunner(ctx, &GraphConfig{
		ChatModels: cms,
		Registry:   registry,
		Classifier: classifier.New(cfg.Policy, cfg.Conversation.AdminSecret),
		Retriever:  retriever.New(cfg.Searcher, cfg.Policy, cfg.Retrieval),
		Controller: dialogue.NewController(cfg.Policy, dialogue.Config{
			Prompt:         cfg.ResponsePrompt,
			MaxHistory:     cfg.Conversation.MaxHistory,
			ScriptVerbatim: cfg.Conversation.ScriptVerbatim,
		}),
		MaxIterations: cfg.Conversation.MaxIterations,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return runner, nil
}

// NewRunner compiles the graph from prepared components.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled turn graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.TurnRequest, *model.TurnResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if config.Classifier == nil || config.Retriever == nil || config.Controller == nil {
		return nil, fmt.Errorf("dialogue components are nil")
	}

	builder := &GraphBuilder{
		config: config,
		policy: config.Controller.Policy(),
		graph: compose.NewGraph[*model.TurnRequest, *model.TurnResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}

	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools binds the registry to the response model and adds the tools node
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	registry := b.config.Registry
	toolInfos, err := registry.Infos(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModels.BindToolsToResponseModel(ctx, toolInfos); err != nil {
		return fmt.Errorf("failed to bind tools to response model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               registry.Tools(),
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("Tool Error: %q is not an available tool. Continue without it.", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return registry.NormalizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler()),
		compose.WithStatePostHandler(nodes.NewToolExecutorPostHandler()),
	)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cms := b.config.ChatModels
	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeClassifier,
				nodes.NewClassifierNode(b.config.Classifier),
				compose.WithStatePreHandler(nodes.NewClassifierPreHandler()),
				compose.WithStatePostHandler(nodes.NewClassifierPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetriever,
				nodes.NewRetrieverNode(b.config.Retriever),
				compose.WithStatePostHandler(nodes.NewRetrieverPostHandler()),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeDirective, nodes.NewDirectiveNode(b.config.Controller))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeScripted, nodes.NewScriptedNode(b.policy))
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeResponseChatModel,
				cms.Response,
				compose.WithStatePreHandler(nodes.NewResponseChatModelPreHandler()),
				compose.WithStatePostHandler(nodes.NewResponseChatModelPostHandler(cms.ResponseModelName, b.policy.Placeholder)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeFinalize, nodes.NewFinalizeNode(b.policy))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeFallback, nodes.NewFallbackNode(b.policy))
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifier},
		{nodes.NodeClassifier, nodes.NodeRetriever},
		{nodes.NodeRetriever, nodes.NodeDirective},
		{nodes.NodeToolExecutor, nodes.NodeResponseChatModel},
		{nodes.NodeScripted, compose.END},
		{nodes.NodeFinalize, compose.END},
		{nodes.NodeFallback, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	scriptBranch := compose.NewGraphBranch(
		nodes.NewScriptedCondition(),
		map[string]bool{
			nodes.NodeScripted:          true,
			nodes.NodeResponseChatModel: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeDirective, scriptBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding scripted branch")
		return fmt.Errorf("error adding scripted branch: %w", err)
	}

	loopBranch := compose.NewGraphBranch(
		nodes.NewToolLoopCondition(b.config.MaxIterations),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeFinalize:     true,
			nodes.NodeFallback:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeResponseChatModel, loopBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool loop branch")
		return fmt.Errorf("error adding tool loop branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.TurnRequest, *model.TurnResult], error) {
	// Limit total run steps to avoid infinite loops in branching or tool retries
	maxIterations := b.config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = nodes.DefaultMaxIterations
	}
	maxSteps := 10 + maxIterations*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
