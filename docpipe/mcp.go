package docpipe

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docforge/fsafe"
	"github.com/hazyhaar/docforge/kit"
)

// RegisterMCP registers the extraction tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server, mws ...kit.Middleware) {
	p.registerExtractTool(srv, kit.Chain(mws...))
	p.registerDetectTool(srv, kit.Chain(mws...))
}

// --- extract ---

type extractReq struct {
	Path string `json:"path"`
}

type extractResp struct {
	Path    string             `json:"path"`
	Format  Format             `json:"format"`
	Title   string             `json:"title,omitempty"`
	Parts   int                `json:"parts"`
	Text    string             `json:"text"`
	Quality *ExtractionQuality `json:"quality,omitempty"`
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "docforge_extract",
		Description: "Extract plain text from a document file (docx, xlsx, pptx, odt, pdf, md, txt, html, csv).",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to extract"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		if r.Path == "" {
			return nil, errors.New("path is required")
		}
		doc, err := p.Extract(ctx, r.Path)
		if err != nil {
			return nil, err
		}
		return &extractResp{
			Path:    doc.Path,
			Format:  doc.Format,
			Title:   doc.Title,
			Parts:   len(doc.Parts),
			Text:    doc.Text(),
			Quality: doc.Quality,
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[extractReq]())
}

// --- detect ---

type detectReq struct {
	Path string `json:"path"`
}

type detectResp struct {
	Format  Format `json:"format"`
	Sniffed bool   `json:"sniffed"` // format taken from the file content
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "docforge_detect",
		Description: "Detect the format of a document file from its extension, or from its content when the file exists.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to detect"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		format, detectErr := p.Detect(r.Path)
		if data, err := fsafe.ReadFileLimited(r.Path, p.cfg.MaxFileSize); err == nil {
			if sniffed, ok := Sniff(data); ok {
				return &detectResp{Format: sniffed, Sniffed: true}, nil
			}
		}
		if detectErr != nil {
			return nil, detectErr
		}
		return &detectResp{Format: format}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[detectReq]())
}
