package roundtrip

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/kit"
	"github.com/hazyhaar/fidelity/oxml"
)

// RegisterMCP registers roundtrip tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCompareTool(srv)
	s.registerCarriersTool(srv)
	s.registerProfilesTool(srv)
}

// toolLog wraps a tool endpoint with invocation logging. The transport
// recorded in the context distinguishes MCP calls from HTTP reuse of the
// same endpoints.
func (s *Service) toolLog(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				s.logger.Warn("tool failed",
					"tool", name, "transport", kit.GetTransport(ctx), "error", err)
				return nil, err
			}
			s.logger.Debug("tool served",
				"tool", name, "transport", kit.GetTransport(ctx))
			return resp, nil
		}
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- compare ---

type compareReq struct {
	OriginalPath  string `json:"original_path"`
	ConvertedPath string `json:"converted_path"`
	Profile       string `json:"profile"`
}

func (s *Service) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fidelity_compare",
		Description: "Compare an original Office document against its round-tripped version: semantic diff, design-token survival, and a tolerance verdict.",
		InputSchema: inputSchema(map[string]any{
			"original_path":  map[string]any{"type": "string", "description": "Path to the original document"},
			"converted_path": map[string]any{"type": "string", "description": "Path to the converted document"},
			"profile":        map[string]any{"type": "string", "description": "Tolerance profile name (default from config)"},
		}, []string{"original_path", "converted_path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*compareReq)
		original, err := os.ReadFile(r.OriginalPath)
		if err != nil {
			return nil, fmt.Errorf("read original: %w", err)
		}
		converted, err := os.ReadFile(r.ConvertedPath)
		if err != nil {
			return nil, fmt.Errorf("read converted: %w", err)
		}
		return s.CompareDocuments(ctx, original, converted, r.Profile)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r compareReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLog(tool.Name))(endpoint), decode)
}

// --- carriers ---

type carriersReq struct {
	Path string `json:"path"`
}

func (s *Service) registerCarriersTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fidelity_carriers",
		Description: "Scan one Office document for design-token carriers and report per-significance survival.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to the document to scan"},
		}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*carriersReq)
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		doc, err := oxml.Parse(data)
		if err != nil {
			return carrier.Analyze(data, ""), nil
		}
		return carrier.AnalyzeDocument(doc), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r carriersReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLog(tool.Name))(endpoint), decode)
}

// --- profiles ---

type profilesReq struct {
	Name string `json:"name"`
}

func (s *Service) registerProfilesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fidelity_profiles",
		Description: "List tolerance profiles, or show one profile's rules when a name is given.",
		InputSchema: inputSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Profile name (optional)"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*profilesReq)
		if r.Name != "" {
			return s.registry.Profile(r.Name)
		}
		return s.registry.Names(), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r profilesReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.toolLog(tool.Name))(endpoint), decode)
}
