package docpipe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "docpipe-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	pipe := New(Config{})
	srv := mcp.NewServer(testMCPImpl, nil)
	pipe.RegisterMCP(srv)

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

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

// --- docforge_detect ---

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t)

	tests := []struct {
		path   string
		format string
	}{
		{"report.docx", "docx"},
		{"sheet.xlsx", "xlsx"},
		{"deck.pptx", "pptx"},
		{"readme.md", "md"},
		{"data.txt", "txt"},
		{"page.html", "html"},
		{"manual.pdf", "pdf"},
		{"document.odt", "odt"},
	}
	for _, tt := range tests {
		text := mcpCallTool(t, session, "docforge_detect", map[string]any{"path": tt.path})
		var resp struct {
			Format  string `json:"format"`
			Sniffed bool   `json:"sniffed"`
		}
		json.Unmarshal([]byte(text), &resp)
		if resp.Format != tt.format || resp.Sniffed {
			t.Errorf("Detect(%q) = %q (sniffed=%v), want %q", tt.path, resp.Format, resp.Sniffed, tt.format)
		}
	}
}

func TestMCP_Detect_Sniffed(t *testing.T) {
	session := mcpSession(t)

	path := filepath.Join(t.TempDir(), "scan.gdoc")
	os.WriteFile(path, buildRealTextPDF("x"), 0644)

	text := mcpCallTool(t, session, "docforge_detect", map[string]any{"path": path})
	if !strings.Contains(text, `"format":"pdf"`) || !strings.Contains(text, `"sniffed":true`) {
		t.Fatalf("response = %s", text)
	}
}

func TestMCP_Detect_Unsupported(t *testing.T) {
	session := mcpSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "docforge_detect",
		Arguments: map[string]any{"path": "archive.7z"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unsupported extension")
	}
}

// --- docforge_extract ---

func TestMCP_Extract_Text(t *testing.T) {
	session := mcpSession(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	os.WriteFile(path, []byte("Hello World\nSecond line"), 0644)

	text := mcpCallTool(t, session, "docforge_extract", map[string]any{"path": path})

	var resp extractResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Format != FormatTXT {
		t.Errorf("Format = %q, want %q", resp.Format, FormatTXT)
	}
	if resp.Text != "Hello World\nSecond line" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Title != "Hello World" {
		t.Errorf("Title = %q", resp.Title)
	}
}

func TestMCP_Extract_Markdown(t *testing.T) {
	session := mcpSession(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "readme.md")
	os.WriteFile(path, []byte("# Title\n\nParagraph text here.\n\n## Section\n\nMore content."), 0644)

	text := mcpCallTool(t, session, "docforge_extract", map[string]any{"path": path})

	var resp extractResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Title != "Title" {
		t.Errorf("Title = %q, want %q", resp.Title, "Title")
	}
	if resp.Parts != 1 {
		t.Errorf("Parts = %d", resp.Parts)
	}
}

func TestMCP_Extract_MissingPath(t *testing.T) {
	session := mcpSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "docforge_extract",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing path")
	}
}
