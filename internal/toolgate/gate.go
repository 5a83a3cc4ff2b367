// Package toolgate implements the Capability Gate (§4.8): every tool
// invocation, regardless of which scheduler rhythm triggered it, passes
// through a Profile's allow/deny lists before the underlying MCP tool
// handler runs. Deny always wins over allow, and a denial is a pure
// decision with no side effects — the wrapped handler never executes.
package toolgate

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// ProfileName identifies one of the scheduler's capability profiles.
type ProfileName string

const (
	ProfilePrivateChat ProfileName = "private_chat"
	ProfileSkillEvents ProfileName = "skill_events"
	ProfileHeartbeat   ProfileName = "heartbeat"
	ProfileAmbient     ProfileName = "ambient"
	ProfileDream       ProfileName = "dream"
)

// Profile is one row of the table in §4.8: whether the profile may act
// without operator confirmation, plus its allow/deny tool sets. Denied
// takes precedence over allowed when a tool name appears in both (it
// never legitimately should, but the check order enforces it either way).
type Profile struct {
	Name       ProfileName
	Autonomous bool
	Allowed    map[string]bool
	Denied     map[string]bool
}

// allows reports whether tool may run under this profile. An empty
// Allowed set means "allow anything not explicitly denied" (used by
// PrivateChat/SkillEvents, which are full-access profiles).
func (p Profile) allows(tool string) bool {
	if p.Denied[tool] {
		return false
	}
	if len(p.Allowed) == 0 {
		return true
	}
	return p.Allowed[tool]
}

func toolSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// DefaultProfiles returns the five capability profiles exactly as tabulated
// in §4.8.
func DefaultProfiles() map[ProfileName]Profile {
	return map[ProfileName]Profile{
		ProfilePrivateChat: {
			Name:       ProfilePrivateChat,
			Autonomous: true,
		},
		ProfileSkillEvents: {
			Name:       ProfileSkillEvents,
			Autonomous: true,
		},
		ProfileHeartbeat: {
			Name:       ProfileHeartbeat,
			Autonomous: true,
			Denied:     toolSet("delete_file", "shell", "write_file", "patch_file"),
		},
		ProfileAmbient: {
			Name:       ProfileAmbient,
			Autonomous: true,
			Allowed:    toolSet("read_file", "list_directory", "search_memory", "http_fetch_read"),
			Denied:     toolSet("shell", "write_file", "patch_file", "http_fetch_write", "generate_media"),
		},
		ProfileDream: {
			Name:       ProfileDream,
			Autonomous: true,
			Allowed:    toolSet("read_file", "list_directory", "search_memory", "write_memory"),
			Denied:     toolSet("shell", "http_fetch_read", "http_fetch_write"),
		},
	}
}

// Gate wraps an *mcp-go* server, intercepting every AddTool registration so
// invocations are checked against the active profile before the real
// handler runs.
type Gate struct {
	srv      *server.MCPServer
	profiles map[ProfileName]Profile
	active   ProfileName

	mu       sync.Mutex
	approved map[string]bool
}

// New wraps srv with the default profile table, starting in PrivateChat
// (the scheduler switches Active via SetProfile when it enters the engaged
// path, the skill-event cycle or the dream cycle).
func New(srv *server.MCPServer) *Gate {
	return &Gate{
		srv:      srv,
		profiles: DefaultProfiles(),
		active:   ProfilePrivateChat,
		approved: make(map[string]bool),
	}
}

// ApproveTool grants a denied-by-default tool a session-scoped exception,
// backing POST /v1/tools/approve (§6.1). The approval is additive and never
// overrides an explicit Denied entry — only tools a profile would otherwise
// leave unlisted (neither allowed nor denied) are affected.
func (g *Gate) ApproveTool(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approved[name] = true
}

func (g *Gate) isApproved(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approved[name]
}

// permits is profile.allows plus a session-scoped approval carve-out: a
// tool neither denied nor already allowed can still run once approved.
func (g *Gate) permits(profile Profile, tool string) bool {
	if profile.allows(tool) {
		return true
	}
	if profile.Denied[tool] {
		return false
	}
	return g.isApproved(tool)
}

// SetProfile switches which profile subsequent tool invocations are
// checked against. The scheduler calls this on entering the engaged path
// (PrivateChat), the skill-event cycle (SkillEvents) and the dream cycle
// (Dream); it never selects Ambient, so the last profile set stays active
// through ambient ticks.
func (g *Gate) SetProfile(p ProfileName) {
	g.active = p
}

// ActiveProfile reports the profile currently gating invocations.
func (g *Gate) ActiveProfile() ProfileName {
	return g.active
}

// AddTool registers tool with the underlying server, wrapping handler so
// every call first checks the active profile. A denial returns a tool
// result carrying a CapabilityDenied error and never calls handler.
func (g *Gate) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	name := tool.Name
	gated := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		profile, ok := g.profiles[g.active]
		if !ok {
			return mcp.NewToolResultError("unknown capability profile"), nil
		}
		if !g.permits(profile, name) {
			err := apperr.Wrap(apperr.CapabilityDenied, "tool %q denied under profile %q", name, profile.Name)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return handler(ctx, req)
	}
	g.srv.AddTool(tool, gated)
}

// Check reports whether tool is permitted under profile, without invoking
// anything. Used by callers (e.g. the engaged path) that need a yes/no
// answer before even constructing a CallToolRequest.
func (g *Gate) Check(profile ProfileName, tool string) error {
	p, ok := g.profiles[profile]
	if !ok {
		return apperr.Wrap(apperr.Validation, "unknown capability profile %q", profile)
	}
	if !g.permits(p, tool) {
		return apperr.Wrap(apperr.CapabilityDenied, "tool %q denied under profile %q", tool, profile)
	}
	return nil
}
