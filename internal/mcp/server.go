package mcp

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/config"
	"github.com/Sruimeng/vestige/internal/timecapsule"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"capsule", "filter"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"capsule_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"capsule_archive": {
		def:     archiveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleArchive },
	},
	"capsule_entry": {
		def:     entryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEntry },
	},
	"capsule_latest": {
		def:     latestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLatest },
	},
	"capsule_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"capsule_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"filter_list": {
		def:     filterListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilterList },
	},
	"filter_plan": {
		def:     filterPlanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFilterPlan },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the unknown tool names in names. A bare type
// name such as "filter" counts as known.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; ok || isKnownType(name) {
			continue
		}
		unknown = append(unknown, name)
	}
	return unknown
}

func isKnownType(name string) bool {
	for _, t := range KnownTypes {
		if t == name {
			return true
		}
	}
	return false
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "filter_plan" → "filter").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// disabledSet expands disabled names into the set of tools to skip.
func disabledSet(names []string) map[string]bool {
	disabled := make(map[string]bool)
	for _, name := range names {
		if isKnownType(name) {
			for tool := range toolRegistry {
				if GetTypeForTool(tool) == name {
					disabled[tool] = true
				}
			}
			continue
		}
		disabled[name] = true
	}
	return disabled
}

// Deps are the collaborators tool handlers need.
type Deps struct {
	DB      *sql.DB
	Config  *config.Config
	BaseDir string

	// Backend serves capsule_fetch; it may be nil when Config.UseMock is set
	Backend timecapsule.Backend

	Logger *zap.Logger
}

// NewServer creates an MCP server with the vestige tools registered.
// Tools or tool types listed in cfg.DisabledTools are skipped.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vestige",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Time-capsule tools: fetch a year's capsule, browse the archive of past capsules, and inspect style filters."),
	)

	h := NewHandlers(deps)
	disabled := disabledSet(deps.Config.DisabledTools)

	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}
