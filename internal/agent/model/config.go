package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL            time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	MaxHistory     int           `envconfig:"CONVERSATION_MAX_HISTORY" default:"40"`
	MaxIterations  int           `envconfig:"CONVERSATION_MAX_ITERATIONS" default:"5"`
	TurnTimeout    time.Duration `envconfig:"CONVERSATION_TURN_TIMEOUT" default:"45s"`
	ScriptVerbatim bool          `envconfig:"CONVERSATION_SCRIPT_VERBATIM" default:"true"`
	AdminSecret    string        `envconfig:"ADMIN_SECRET" default:"#lofty-ops"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.0"`
	// ThinkingBudget caps Gemini reasoning tokens per call; 0 disables thinking.
	ThinkingBudget int32 `envconfig:"RESPONSE_THINKING_BUDGET" default:"1024"`
}

type ResponsePromptConfig struct {
	BusinessName  string `envconfig:"PROMPT_BUSINESS_NAME" default:"F&L Design Builders"`
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"LOFTY"`
	PolicyFile    string `envconfig:"DIALOGUE_POLICY_FILE"`
}

type RetrievalConfig struct {
	TopK      int           `envconfig:"RETRIEVAL_TOP_K" default:"6"`
	Timeout   time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"4s"`
	IndexPath string        `envconfig:"KNOWLEDGE_INDEX_PATH" default:"data/knowledge.bleve"`
}
