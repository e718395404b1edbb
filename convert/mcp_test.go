package convert

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "convert-test", Version: "0.1.0"}

func mcpSession(t *testing.T, c *Converter) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	c.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return tc.Text
}

func TestMCP_ToolsListed(t *testing.T) {
	session := mcpSession(t, newTestConverter(t))

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{"docforge_convert", "docforge_formats", "docforge_extract", "docforge_detect"} {
		if !got[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestMCP_Convert(t *testing.T) {
	session := mcpSession(t, newTestConverter(t))
	dir := t.TempDir()
	src := writeFile(t, dir, "memo.txt", []byte("Remember the milk"))
	out := filepath.Join(dir, "out")

	text := toolText(t, callTool(t, session, "docforge_convert", map[string]any{
		"source": src, "target": "rtf", "out_dir": out,
	}))

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Dest != filepath.Join(out, "memo.rtf") || res.ID == "" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(res.Dest); err != nil {
		t.Fatal(err)
	}
}

func TestMCP_Convert_Error(t *testing.T) {
	session := mcpSession(t, newTestConverter(t))
	src := writeFile(t, t.TempDir(), "memo.txt", []byte("x"))

	result := callTool(t, session, "docforge_convert", map[string]any{"source": src, "target": "xlsx"})
	if !result.IsError {
		t.Fatal("expected tool error for txt to xlsx")
	}
}

func TestMCP_Formats(t *testing.T) {
	session := mcpSession(t, newTestConverter(t))
	src := writeFile(t, t.TempDir(), "scan.gdoc", buildTextPDF("x"))

	tests := []struct {
		path   string
		format string
		n      int
	}{
		{src, "pdf", 4},                    // sniffed from content
		{"/nowhere/sheet.xlsx", "xlsx", 3}, // extension only
	}
	for _, tt := range tests {
		text := toolText(t, callTool(t, session, "docforge_formats", map[string]any{"path": tt.path}))
		var resp formatsResp
		if err := json.Unmarshal([]byte(text), &resp); err != nil {
			t.Fatal(err)
		}
		if string(resp.Format) != tt.format || len(resp.Targets) != tt.n {
			t.Errorf("formats(%s) = %+v", tt.path, resp)
		}
	}

	result := callTool(t, session, "docforge_formats", map[string]any{"path": "/nowhere/file.bin"})
	if !result.IsError {
		t.Fatal("expected tool error for unknown format")
	}
}
