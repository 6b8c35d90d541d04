package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultmcp/consult/internal/assistant"
	"github.com/consultmcp/consult/internal/bridge"
	"github.com/consultmcp/consult/internal/config"
)

// scriptedBackend serves a minimal happy-path assistant API.
func scriptedBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		switch {
		case r.Method == http.MethodPost && path == "/threads":
			json.NewEncoder(w).Encode(map[string]any{"id": "thread_1", "object": "thread"})
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/messages"):
			json.NewEncoder(w).Encode(map[string]any{"id": "msg_1", "object": "thread.message"})
		case r.Method == http.MethodGet && strings.HasSuffix(path, "/messages"):
			json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data": []map[string]any{{
					"id":     "msg_2",
					"object": "thread.message",
					"role":   "assistant",
					"content": []map[string]any{{
						"type": "text",
						"text": map[string]any{"value": reply, "annotations": []any{}},
					}},
				}},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(path, "/runs"):
			json.NewEncoder(w).Encode(map[string]any{"id": "run_1", "object": "thread.run", "status": "queued"})
		case r.Method == http.MethodGet && strings.Contains(path, "/runs/"):
			json.NewEncoder(w).Encode(map[string]any{"id": "run_1", "object": "thread.run", "status": "completed"})
		case r.Method == http.MethodGet && path == "/models":
			json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []map[string]any{{"id": "gpt-4o", "object": "model"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, reply string) *Server {
	t.Helper()
	backend := scriptedBackend(t, reply)
	cfg := &config.Config{
		APIKey:       "sk-test",
		BaseURL:      backend.URL,
		PollTimeout:  time.Second,
		PollInterval: 5 * time.Millisecond,
		MaxRetries:   0,
		MaxCacheSize: 10,
		Assistants: map[string]string{
			"consult_security": "asst_sec",
		},
	}
	b, err := bridge.New(cfg, assistant.NewClient(backend.URL, cfg.APIKey, assistant.DefaultRetryPolicy(0)))
	require.NoError(t, err)
	return New(cfg, b)
}

func callTool(t *testing.T, handler mcp.ToolHandler, args string) *mcp.CallToolResult {
	t.Helper()
	res, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(args)},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestConsultHandlerHappyPath(t *testing.T) {
	s := newTestServer(t, "all clear")
	res := callTool(t, s.consultHandler("consult_security"), `{"prompt":"review this"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "all clear", resultText(t, res))
}

func TestConsultHandlerEmptyPrompt(t *testing.T) {
	s := newTestServer(t, "unused")
	res := callTool(t, s.consultHandler("consult_security"), `{}`)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "prompt")
}

func TestConsultHandlerInvalidDetail(t *testing.T) {
	s := newTestServer(t, "unused")
	res := callTool(t, s.consultHandler("consult_security"), `{"prompt":"p","image_detail":"ultra"}`)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "image_detail")
}

func TestConsultHandlerMalformedImageURL(t *testing.T) {
	s := newTestServer(t, "unused")
	res := callTool(t, s.consultHandler("consult_security"), `{"prompt":"p","image_urls":["not a url"]}`)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "image URL")
}

func TestConsultHandlerBadJSON(t *testing.T) {
	s := newTestServer(t, "unused")
	res := callTool(t, s.consultHandler("consult_security"), `{"prompt":`)

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid input")
}

func TestResetHandlerDefaultConfirms(t *testing.T) {
	s := newTestServer(t, "ok")
	// Populate a thread first.
	callTool(t, s.consultHandler("consult_security"), `{"prompt":"warm up"}`)

	res := callTool(t, s.resetHandler(), `{}`)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "1 thread(s)")
}

func TestResetHandlerDeclined(t *testing.T) {
	s := newTestServer(t, "ok")
	res := callTool(t, s.resetHandler(), `{"confirm":false}`)

	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not confirmed")
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t, "ok")
	res := callTool(t, s.statusHandler(), `{}`)

	var report bridge.StatusReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.Equal(t, 0, report.Config.MaxRetries)
	assert.Equal(t, int64(5), report.Config.PollIntervalMS)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, "ok")
	res := callTool(t, s.healthHandler(), `{}`)

	var report bridge.HealthReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.NotEmpty(t, report.Timestamp)
}

func TestValidateInput(t *testing.T) {
	ok := consultInput{Prompt: "p", ImageDetail: "low", ImageURLs: []string{"https://example.com/a.png"}}
	assert.NoError(t, ok.validate())

	missing := consultInput{}
	assert.Error(t, missing.validate())
}
