package tool

import (
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/CuriosityQuantified/tandemai/internal/logging"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
	storage *storage.Storage
}

// NewRegistry creates a new tool registry.
func NewRegistry(workDir string, store *storage.Storage) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
		storage: store,
	}
}

// Storage returns the storage instance.
func (r *Registry) Storage() *storage.Storage {
	return r.storage
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", tool.ID()).Msg("registering tool")
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}

// IDs returns all tool IDs.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	return ids
}

// EinoTools returns Eino-compatible tools.
func (r *Registry) EinoTools() []einotool.BaseTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns Eino tool infos for all tools.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos, nil
}

// ForRole returns the subset of tool IDs enabled for enabled, keyed by
// the predicate the caller supplies (typically agent.Agent.ToolEnabled).
// Callers use this to build the Eino tool list a worker's model call is
// allowed to see; internal/agent.Registry.Validate separately guards
// the supervisor side of the isolation invariant at config time.
func (r *Registry) ForRole(enabled func(toolID string) bool) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []Tool
	for id, t := range r.tools {
		if enabled(id) {
			tools = append(tools, t)
		}
	}
	return tools
}

// DefaultRegistry creates a registry with all built-in tools. provider
// backs search_cached; a nil provider falls back to HTTPSearchProvider.
// The citation store itself is supplied per-call via tool.Context, not
// here, since it is looked up by session rather than fixed at startup.
func DefaultRegistry(workDir string, store *storage.Storage, provider SearchProvider) *Registry {
	logging.Debug().Str("workDir", workDir).Msg("creating default tool registry")
	r := NewRegistry(workDir, store)

	if provider == nil {
		provider = NewHTTPSearchProvider()
	}

	// Citation-backed research tools.
	r.Register(NewSearchCachedTool(provider))
	r.Register(NewGetCachedSourceTool())
	r.Register(NewVerifyCitationsTool())

	// Workspace file tools, HITL-gated for writes/edits.
	r.Register(NewReadFileTool(workDir))
	r.Register(NewWriteFileTool(workDir))
	r.Register(NewEditFileTool(workDir))

	// Read-only introspection.
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewListTool(workDir))

	// Plan tools.
	r.Register(NewCreatePlanTool(store))
	r.Register(NewReadPlanTool(store))
	r.Register(NewUpdatePlanTool(store))
	r.Register(NewEditPlanTool(store))

	// Parallel execution over the above.
	r.Register(NewBatchTool(workDir, r))

	logging.Debug().Strs("tools", r.IDs()).Msg("default tool registry created")
	return r
}
