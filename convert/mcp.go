package convert

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docforge/docpipe"
	"github.com/hazyhaar/docforge/idgen"
	"github.com/hazyhaar/docforge/kit"
)

// RegisterMCP registers the conversion tools, plus the extraction tools of
// the underlying pipeline, on an MCP server. Every tool runs behind request
// ID assignment, panic recovery and call logging.
func (c *Converter) RegisterMCP(srv *mcp.Server) {
	mw := kit.Chain(
		kit.RequestID(idgen.Request),
		kit.Recovery(c.logger),
		kit.Logging(c.logger, "mcp"),
	)
	c.registerConvertTool(srv, mw)
	c.registerFormatsTool(srv, mw)
	c.pipe.RegisterMCP(srv, mw)
}

// --- convert ---

func (c *Converter) registerConvertTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "docforge_convert",
		Description: "Convert a document to another format. Returns the path of the written file; existing files are never overwritten.",
		InputSchema: kit.InputSchema(map[string]any{
			"source":  map[string]any{"type": "string", "description": "Path of the source document"},
			"target":  map[string]any{"type": "string", "description": "Target format, e.g. pdf, docx, xlsx, pptx, txt, rtf, csv, html, md"},
			"out_dir": map[string]any{"type": "string", "description": "Output directory (default: configured output dir, else next to the source)"},
		}, []string{"source", "target"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return c.Convert(ctx, *req.(*Request))
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[Request]())
}

// --- formats ---

type formatsReq struct {
	Path string `json:"path"`
}

type formatsResp struct {
	Path    string         `json:"path"`
	Format  docpipe.Format `json:"format"`
	Targets []string       `json:"targets"`
}

func (c *Converter) registerFormatsTool(srv *mcp.Server, mw kit.Middleware) {
	tool := &mcp.Tool{
		Name:        "docforge_formats",
		Description: "List the formats a document can be converted to.",
		InputSchema: kit.InputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path of the source document"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*formatsReq)
		if r.Path == "" {
			return nil, errors.New("path is required")
		}
		format, targets, err := c.Formats(r.Path)
		if err != nil {
			// Unreadable file: answer from the extension alone.
			f, extErr := docpipe.DetectExt(filepath.Ext(r.Path))
			if extErr != nil {
				return nil, err
			}
			format, targets = f, AvailableFormats(r.Path)
		}
		if targets == nil {
			targets = []string{}
		}
		return &formatsResp{Path: r.Path, Format: format, Targets: targets}, nil
	}

	kit.RegisterMCPTool(srv, tool, mw(endpoint), kit.DecodeJSON[formatsReq]())
}
