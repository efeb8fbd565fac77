package types

// Config represents the TandemAI configuration, loaded by
// internal/config as a layered merge of global config, project
// config, and environment overrides.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Model selection. Format "provider/model", e.g. "anthropic/claude-sonnet-4".
	Model      string `json:"model,omitempty"`
	SmallModel string `json:"small_model,omitempty"` // used for judge calls

	// Sandbox root all file tools are confined to.
	SandboxRoot string `json:"sandbox_root,omitempty"`

	// Global tools enable/disable, merged under each role's own set.
	Tools map[string]bool `json:"tools,omitempty"`

	Instructions    []string          `json:"instructions,omitempty"`
	PromptVariables map[string]string `json:"promptVariables,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	Agent    map[string]AgentConfig    `json:"agent,omitempty"`

	Permission *PermissionConfig `json:"permission,omitempty"`
	MCP        map[string]MCPConfig `json:"mcp,omitempty"`

	Experimental *ExperimentalConfig `json:"experimental,omitempty"`

	// Evaluation defaults, overridable by eval CLI flags.
	Eval *EvalConfig `json:"eval,omitempty"`
}

// ProviderConfig holds configuration for a specific LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
	Model   string `json:"model,omitempty"`

	Options *ProviderOptions `json:"options,omitempty"`

	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`

	Disable bool `json:"disable,omitempty"`
}

// ProviderOptions holds nested provider options.
type ProviderOptions struct {
	APIKey        string `json:"apiKey,omitempty"`
	BaseURL       string `json:"baseURL,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	Timeout       *int   `json:"timeout,omitempty"` // ms, nil = default, 0 = disabled
}

// AgentConfig holds per-role configuration overrides.
type AgentConfig struct {
	Model string `json:"model,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	Prompt string `json:"prompt,omitempty"`

	Tools map[string]bool `json:"tools,omitempty"`

	Permission *PermissionConfig `json:"permission,omitempty"`

	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"` // "subagent"|"primary"|"all"

	Disable bool `json:"disable,omitempty"`
}

// PermissionConfig holds HITL approval defaults. Write/Edit are
// approval.Action values ("allow"|"deny"|"ask") for the write_file and
// edit_file tools; the sandbox-root and delete-class carve-outs are
// never configurable here (internal/approval.Gate hard-codes them).
// DoomLoopThreshold overrides approval.DoomLoopThreshold when positive.
type PermissionConfig struct {
	Write             string `json:"write,omitempty"`
	Edit              string `json:"edit,omitempty"`
	DoomLoopThreshold int    `json:"doom_loop_threshold,omitempty"`
}

// MCPConfig holds MCP server configuration for an externally connected
// tool provider (e.g. a search or embeddings backend).
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // "local"|"remote"
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// ExperimentalConfig holds experimental feature flags.
type ExperimentalConfig struct {
	BatchTool bool `json:"batch_tool,omitempty"`
}

// EvalConfig holds defaults for the evaluation harness.
type EvalConfig struct {
	QuerySetPath string `json:"query_set_path,omitempty"`
	ResultsDir   string `json:"results_dir,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
	JudgeModel   string `json:"judge_model,omitempty"`

	// PromptDir holds one file per prompt version, named "<version>.md",
	// each the supervisor prompt override to pin a run to.
	PromptDir string `json:"prompt_dir,omitempty"`
}

// Model represents an LLM model available from a provider.
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`
	OutputPrice       float64      `json:"outputPrice,omitempty"`
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions contains model-specific options.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
