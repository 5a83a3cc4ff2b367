package toolgate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/MLTQ/Ponderer/internal/memory"
	"github.com/MLTQ/Ponderer/internal/store"
)

func callArgs(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func newTestRegistry(t *testing.T) *memory.Registry {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ponderer.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return memory.NewRegistry(memory.NewKVBackend(s))
}

func TestHandleWriteMemoryThenSearchMemory(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	write := handleWriteMemory(registry)
	res, err := write(ctx, callArgs(map[string]any{"key": "favorite_color", "value": "teal"}))
	if err != nil || res.IsError {
		t.Fatalf("handleWriteMemory failed: %v, %+v", err, res)
	}

	search := handleSearchMemory(registry)
	res, err = search(ctx, callArgs(map[string]any{"query": "teal"}))
	if err != nil || res.IsError {
		t.Fatalf("handleSearchMemory failed: %v, %+v", err, res)
	}

	res, err = search(ctx, callArgs(map[string]any{"query": "no-such-substring"}))
	if err != nil || res.IsError {
		t.Fatalf("handleSearchMemory (no match) failed: %v, %+v", err, res)
	}
}

func TestHandleSearchMemory_RequiresQuery(t *testing.T) {
	registry := newTestRegistry(t)
	search := handleSearchMemory(registry)
	res, err := search(context.Background(), callArgs(map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result when query is missing")
	}
}

func TestHandleReadFileAndListDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	read := handleReadFile(dir)
	res, err := read(context.Background(), callArgs(map[string]any{"path": "notes.txt"}))
	if err != nil || res.IsError {
		t.Fatalf("handleReadFile failed: %v, %+v", err, res)
	}

	list := handleListDirectory(dir)
	res, err = list(context.Background(), callArgs(map[string]any{}))
	if err != nil || res.IsError {
		t.Fatalf("handleListDirectory failed: %v, %+v", err, res)
	}
}

func TestHandleReadFile_RejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	read := handleReadFile(dir)
	res, err := read(context.Background(), callArgs(map[string]any{"path": "../../etc/passwd"}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result for a path escaping the workspace directory")
	}
}
