// Package mcpserver exposes the bridge's specialist and utility tools over
// the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/consultmcp/consult/internal/bridge"
	"github.com/consultmcp/consult/internal/config"
	"github.com/consultmcp/consult/internal/logging"
)

// Server wraps the MCP server and the bridge it dispatches to.
type Server struct {
	server *mcp.Server
	bridge *bridge.Bridge
	cfg    *config.Config
}

// New creates the MCP server with every specialist and utility tool
// registered.
func New(cfg *config.Config, b *bridge.Bridge) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "consult",
			Version: "1.0.0",
		}, nil),
		bridge: b,
		cfg:    cfg,
	}

	for _, spec := range config.Specialists {
		specialist := spec
		s.server.AddTool(&mcp.Tool{
			Name:        specialist.Tool,
			Description: specialist.Description,
			InputSchema: consultSchema(),
		}, s.consultHandler(specialist.Tool))
	}

	s.server.AddTool(&mcp.Tool{
		Name:        "reset_context",
		Description: "Clear all cached conversation threads, document indexes, and uploaded-file records. Reports how many entries were cleared.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"confirm": map[string]any{
					"type":        "boolean",
					"description": "Set to false to abort the reset.",
				},
			},
		},
	}, s.resetHandler())

	s.server.AddTool(&mcp.Tool{
		Name:        "list_status",
		Description: "Dump the cached thread and document-index keys, uploaded-file paths, and the effective configuration.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, s.statusHandler())

	s.server.AddTool(&mcp.Tool{
		Name:        "health_check",
		Description: "Probe connectivity to the assistant service and report latency.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, s.healthHandler())

	return s
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	logging.Infof("[MCP] Serving %d tools over stdio", len(config.Specialists)+3)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// consultSchema is the uniform input schema shared by every specialist
// tool.
func consultSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "The question or review request for the specialist.",
			},
			"context": map[string]any{
				"type":        "string",
				"description": "Optional extra context, prepended to the prompt.",
			},
			"files": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Local file paths to upload and index for document search. Paths must stay inside the working directory.",
			},
			"image_urls": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Image URLs for visual inspection.",
			},
			"image_files": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Local image paths (png, jpg, jpeg, gif, webp) for visual inspection.",
			},
			"image_base64": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Raw base64 image payloads without a data-URL prefix.",
			},
			"image_detail": map[string]any{
				"type":        "string",
				"enum":        []string{"auto", "low", "high"},
				"description": "Detail hint applied to every image in this call.",
			},
			"reset_thread": map[string]any{
				"type":        "boolean",
				"description": "Discard the specialist's conversation thread before this call.",
			},
			"reset_files": map[string]any{
				"type":        "boolean",
				"description": "Discard the specialist's document index before this call.",
			},
		},
		"required": []string{"prompt"},
	}
}

// consultInput is the uniform invocation payload.
type consultInput struct {
	Prompt      string   `json:"prompt"`
	Context     string   `json:"context"`
	Files       []string `json:"files"`
	ImageURLs   []string `json:"image_urls"`
	ImageFiles  []string `json:"image_files"`
	ImageBase64 []string `json:"image_base64"`
	ImageDetail string   `json:"image_detail"`
	ResetThread bool     `json:"reset_thread"`
	ResetFiles  bool     `json:"reset_files"`
}

// validate rejects malformed input before any remote call.
func (in *consultInput) validate() error {
	if in.Prompt == "" {
		return bridge.ErrEmptyPrompt
	}
	switch in.ImageDetail {
	case "", "auto", "low", "high":
	default:
		return fmt.Errorf("invalid image_detail %q (allowed: auto, low, high)", in.ImageDetail)
	}
	for _, raw := range in.ImageURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("malformed image URL %q", raw)
		}
	}
	return nil
}

func (s *Server) consultHandler(tool string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (retResult *mcp.CallToolResult, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logging.Errorf("[MCP] PANIC in tool %s: %v", tool, r)
				retResult = errResult(fmt.Sprintf("tool panicked: %v", r))
				retErr = nil
			}
		}()

		var input consultInput
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return errResult(fmt.Sprintf("invalid input: %v", err)), nil
		}
		if err := input.validate(); err != nil {
			return errResult(err.Error()), nil
		}

		text, err := s.bridge.Consult(ctx, &bridge.ConsultRequest{
			Tool:        tool,
			AssistantID: s.cfg.Assistants[tool],
			Prompt:      input.Prompt,
			Context:     input.Context,
			Files:       input.Files,
			ImageURLs:   input.ImageURLs,
			ImageFiles:  input.ImageFiles,
			ImageBase64: input.ImageBase64,
			ImageDetail: input.ImageDetail,
			ResetThread: input.ResetThread,
			ResetFiles:  input.ResetFiles,
		})
		if err != nil {
			logging.Errorf("[MCP] Tool %s failed: %v", tool, err)
			return errResult(err.Error()), nil
		}
		return textResult(text), nil
	}
}

func (s *Server) resetHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := struct {
			Confirm *bool `json:"confirm"`
		}{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
				return errResult(fmt.Sprintf("invalid input: %v", err)), nil
			}
		}
		if input.Confirm != nil && !*input.Confirm {
			return textResult("Reset not confirmed, nothing cleared."), nil
		}

		counts := s.bridge.ResetAll()
		summary := fmt.Sprintf("Cleared %d thread(s), %d document index(es), %d document upload(s), %d image upload(s).",
			counts.Threads, counts.Stores, counts.Documents, counts.Images)
		return textResult(summary), nil
	}
}

func (s *Server) statusHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.bridge.Status())
	}
}

func (s *Server) healthHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.bridge.Health(ctx))
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("encode result: %v", err)), nil
	}
	return textResult(string(b)), nil
}
