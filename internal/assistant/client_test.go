package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps test backoff negligible.
func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, `{"id":"thread_abc","object":"thread"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(3))
	thread, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", thread.ID)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestRetryNonRetryableShortCircuits(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"message":"no such thread","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(5))
	_, err := c.GetRun(context.Background(), "thread_x", "run_y")
	require.Error(t, err)
	assert.EqualValues(t, 1, attempts.Load())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "no such thread")
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(2))
	_, err := c.CreateThread(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 3, attempts.Load())

	// The last attempt's error comes back unwrapped.
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "upstream exploded")
}

func TestRetryServiceUnavailableIsRetryable(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, `{"object":"list","data":[{"id":"gpt-4o","object":"model"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(1))
	page, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, attempts.Load())
	require.Len(t, page.Data, 1)
	assert.Equal(t, "gpt-4o", page.Data[0].ID)
}

func TestRequestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		writeJSON(w, `{"id":"thread_abc","object":"thread"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(0))
	_, err := c.CreateThread(context.Background())
	require.NoError(t, err)
}

func TestUploadFileMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "vision", r.FormValue("purpose"))

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		assert.Equal(t, "shot.png", hdr.Filename)

		writeJSON(w, `{"id":"file_123","object":"file","filename":"shot.png","purpose":"vision"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(0))
	file, err := c.UploadFile(context.Background(), PurposeVision, "shot.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "file_123", file.ID)
}

func TestCreateRunSendsAssistantID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params struct {
			AssistantID string `json:"assistant_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode run params: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "asst_1", params.AssistantID)
		assert.Equal(t, "/threads/thread_1/runs", r.URL.Path)

		writeJSON(w, `{"id":"run_1","object":"thread.run","thread_id":"thread_1","status":"queued"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(0))
	run, err := c.CreateRun(context.Background(), "thread_1", "asst_1")
	require.NoError(t, err)
	assert.Equal(t, openai.RunStatusQueued, run.Status)
}

func TestBindVectorStoreUpdatesThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/threads/thread_1", r.URL.Path)

		var params struct {
			ToolResources struct {
				FileSearch struct {
					VectorStoreIDs []string `json:"vector_store_ids"`
				} `json:"file_search"`
			} `json:"tool_resources"`
		}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode thread update: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, []string{"vs_1"}, params.ToolResources.FileSearch.VectorStoreIDs)

		writeJSON(w, `{"id":"thread_1","object":"thread"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", fastPolicy(0))
	require.NoError(t, c.BindVectorStore(context.Background(), "thread_1", "vs_1"))
}

func TestTransportErrorIsRetryable(t *testing.T) {
	// A server that is immediately closed produces connection failures.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "sk-test", fastPolicy(1))
	start := time.Now()
	_, err := c.CreateThread(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failure must not be an APIError")
	// Two attempts with the fast policy finish quickly.
	assert.Less(t, time.Since(start), time.Second)
}

func TestDelayForGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2,
	}

	for i := 0; i < 10; i++ {
		d0 := p.delayFor(0)
		if d0 < 100*time.Millisecond || d0 > 125*time.Millisecond {
			t.Fatalf("delayFor(0) = %s, want within [100ms, 125ms]", d0)
		}
		d3 := p.delayFor(3) // 800ms uncapped, capped to 300ms
		if d3 < 300*time.Millisecond || d3 > 375*time.Millisecond {
			t.Fatalf("delayFor(3) = %s, want within [300ms, 375ms]", d3)
		}
	}
}

func TestMessageText(t *testing.T) {
	msg := openai.Message{Content: []openai.MessageContentUnion{
		{Type: "image_file"},
		{Type: "text", Text: openai.Text{Value: "hello"}},
	}}
	v, ok := MessageText(&msg)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	empty := openai.Message{Content: []openai.MessageContentUnion{{Type: "image_file"}}}
	_, ok = MessageText(&empty)
	assert.False(t, ok)
}

func TestIsFailure(t *testing.T) {
	for _, status := range []openai.RunStatus{
		openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired,
	} {
		assert.True(t, IsFailure(status), string(status))
	}
	for _, status := range []openai.RunStatus{
		openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusRequiresAction,
		openai.RunStatusCancelling, openai.RunStatusCompleted, openai.RunStatusIncomplete,
	} {
		assert.False(t, IsFailure(status), string(status))
	}
}
