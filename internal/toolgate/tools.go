package toolgate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MLTQ/Ponderer/internal/memory"
)

// RegisterMemoryTools wires the four capability tools §4.8's Ambient and
// Dream profiles name (read_file, list_directory, search_memory,
// write_memory) through gate, so the profile checks in AddTool actually
// guard something real once srv is served. read_file/list_directory are
// confined to workspaceDir; search_memory/write_memory operate on the
// default (kv_v1) memory backend.
func RegisterMemoryTools(gate *Gate, registry *memory.Registry, workspaceDir string) {
	gate.AddTool(searchMemoryTool(), handleSearchMemory(registry))
	gate.AddTool(writeMemoryTool(), handleWriteMemory(registry))
	gate.AddTool(readFileTool(), handleReadFile(workspaceDir))
	gate.AddTool(listDirectoryTool(), handleListDirectory(workspaceDir))
}

func searchMemoryTool() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search working memory for entries whose key or value contains the given query substring."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for, case-insensitive")),
	)
}

func handleSearchMemory(registry *memory.Registry) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		backend, err := registry.Resolve(memory.DefaultDesignID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entries, err := backend.IterAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		needle := strings.ToLower(query)
		var b strings.Builder
		matches := 0
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Key), needle) || strings.Contains(strings.ToLower(e.Value), needle) {
				b.WriteString(e.Key + ": " + e.Value + "\n")
				matches++
			}
		}
		if matches == 0 {
			return mcp.NewToolResultText("no matching memory entries"), nil
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func writeMemoryTool() mcp.Tool {
	return mcp.NewTool("write_memory",
		mcp.WithDescription("Write a key/value pair into working memory."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Memory key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Memory value")),
	)
}

func handleWriteMemory(registry *memory.Registry) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		key, _ := args["key"].(string)
		value, _ := args["value"].(string)
		if key == "" {
			return mcp.NewToolResultError("key is required"), nil
		}

		backend, err := registry.Resolve(memory.DefaultDesignID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := backend.Put(ctx, key, value); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("stored " + key), nil
	}
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read a text file from the agent's workspace directory."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the workspace directory")),
	)
}

func handleReadFile(workspaceDir string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		rel, _ := args["path"].(string)
		full, err := resolveWorkspacePath(workspaceDir, rel)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func listDirectoryTool() mcp.Tool {
	return mcp.NewTool("list_directory",
		mcp.WithDescription("List entries in a directory under the agent's workspace directory."),
		mcp.WithString("path", mcp.Description("Path relative to the workspace directory; defaults to its root")),
	)
}

func handleListDirectory(workspaceDir string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		rel, _ := args["path"].(string)
		full, err := resolveWorkspacePath(workspaceDir, rel)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entries, err := os.ReadDir(full)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var b strings.Builder
		for _, e := range entries {
			b.WriteString(e.Name())
			if e.IsDir() {
				b.WriteString("/")
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// resolveWorkspacePath joins rel onto workspaceDir and rejects any result
// that escapes it, so a path like "../../etc/passwd" cannot read outside the
// sandboxed directory the Ambient/Dream profiles are allowed to touch.
func resolveWorkspacePath(workspaceDir, rel string) (string, error) {
	base, err := filepath.Abs(workspaceDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(base, rel)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return full, nil
}
