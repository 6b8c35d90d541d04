// Package bridge drives one specialist consultation end to end: resolve or
// create the tool's conversation thread, upload and index any supplied
// documents, post the user message, run the assistant, poll to completion,
// and return the reply text.
package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/consultmcp/consult/internal/assistant"
	"github.com/consultmcp/consult/internal/cache"
	"github.com/consultmcp/consult/internal/config"
	"github.com/consultmcp/consult/internal/logging"
)

// ConsultRequest is one specialist tool invocation.
type ConsultRequest struct {
	Tool        string
	AssistantID string

	Prompt  string
	Context string

	Files       []string
	ImageURLs   []string
	ImageFiles  []string
	ImageBase64 []string
	ImageDetail string

	ResetThread bool
	ResetFiles  bool
}

// Bridge owns the per-tool conversational state and the remote client.
type Bridge struct {
	client  *assistant.Client
	cfg     *config.Config
	workdir string

	// threads and stores are keyed by tool name; documents and images by
	// absolute file path (dedup across tools).
	threads   *cache.Bounded[string]
	stores    *cache.Bounded[string]
	documents *cache.Bounded[string]
	images    *cache.Bounded[string]
}

// New creates a bridge rooted at the process working directory.
func New(cfg *config.Config, client *assistant.Client) (*Bridge, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return &Bridge{
		client:    client,
		cfg:       cfg,
		workdir:   filepath.Clean(wd),
		threads:   cache.NewBounded[string](cfg.MaxCacheSize),
		stores:    cache.NewBounded[string](cfg.MaxCacheSize),
		documents: cache.NewBounded[string](cfg.MaxCacheSize),
		images:    cache.NewBounded[string](cfg.MaxCacheSize),
	}, nil
}

// ensureThread returns the tool's conversation thread, creating it lazily.
func (b *Bridge) ensureThread(ctx context.Context, tool string) (string, error) {
	if id, ok := b.threads.Get(tool); ok {
		return id, nil
	}
	thread, err := b.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	b.threads.Set(tool, thread.ID)
	logging.Infof("[Bridge] Created thread %s for %s", thread.ID, tool)
	return thread.ID, nil
}

// Consult runs one specialist invocation and returns the reply text.
func (b *Bridge) Consult(ctx context.Context, req *ConsultRequest) (string, error) {
	if req.Prompt == "" {
		return "", ErrEmptyPrompt
	}

	requestID := uuid.New().String()[:8]
	logging.Infof("[Bridge] %s consult %s (files=%d image_urls=%d image_files=%d image_b64=%d)",
		requestID, req.Tool, len(req.Files), len(req.ImageURLs), len(req.ImageFiles), len(req.ImageBase64))

	// Reset flags apply before any cached value is resolved.
	if req.ResetThread {
		b.threads.Delete(req.Tool)
		logging.Infof("[Bridge] %s thread reset for %s", requestID, req.Tool)
	}
	if req.ResetFiles {
		b.stores.Delete(req.Tool)
		logging.Infof("[Bridge] %s document index reset for %s", requestID, req.Tool)
	}

	threadID, err := b.ensureThread(ctx, req.Tool)
	if err != nil {
		return "", err
	}

	// New document paths run the upload pipeline; otherwise any cached
	// index is reused as-is.
	var storeID string
	if len(req.Files) > 0 {
		storeID, err = b.attachDocuments(ctx, req.Tool, req.Files)
		if err != nil {
			return "", err
		}
	} else if cached, ok := b.stores.Get(req.Tool); ok {
		storeID = cached
	}

	// Local image paths always upload fresh for this turn; the caller
	// explicitly asked for visual analysis now.
	var imageFileIDs []string
	if len(req.ImageFiles) > 0 {
		imageFileIDs, err = b.uploadImages(ctx, req.ImageFiles)
		if err != nil {
			return "", err
		}
	}

	content := buildContent(req, imageFileIDs)
	if _, err := b.client.CreateMessage(ctx, threadID, content); err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}

	if _, err := b.runAndWait(ctx, requestID, threadID, req.AssistantID, storeID); err != nil {
		return "", err
	}

	raw, err := b.fetchReply(ctx, threadID)
	if err != nil {
		return "", err
	}

	logging.Infof("[Bridge] %s consult %s done (%d chars)", requestID, req.Tool, len(raw))
	return formatReply(raw), nil
}

// ResetCounts reports what a full reset cleared.
type ResetCounts struct {
	Threads   int `json:"threads"`
	Stores    int `json:"vector_stores"`
	Documents int `json:"documents"`
	Images    int `json:"images"`
}

// ResetAll clears every cache and returns the cleared counts.
func (b *Bridge) ResetAll() ResetCounts {
	counts := ResetCounts{
		Threads:   b.threads.Clear(),
		Stores:    b.stores.Clear(),
		Documents: b.documents.Clear(),
		Images:    b.images.Clear(),
	}
	logging.Infof("[Bridge] Reset all caches: threads=%d stores=%d documents=%d images=%d",
		counts.Threads, counts.Stores, counts.Documents, counts.Images)
	return counts
}

// StatusReport is the list-status dump.
type StatusReport struct {
	Threads      map[string]string `json:"threads"`
	VectorStores map[string]string `json:"vector_stores"`
	Documents    []string          `json:"documents"`
	Images       []string          `json:"images"`
	Sizes        map[string]int    `json:"sizes"`
	Config       StatusConfig      `json:"config"`
}

// StatusConfig is the effective configuration echoed by list-status.
type StatusConfig struct {
	BaseURL        string `json:"base_url"`
	PollTimeoutMS  int64  `json:"poll_timeout_ms"`
	PollIntervalMS int64  `json:"poll_interval_ms"`
	MaxRetries     int    `json:"max_retries"`
	MaxCacheSize   int    `json:"max_cache_size"`
}

// Status returns the cached keys and effective configuration.
func (b *Bridge) Status() StatusReport {
	threads := make(map[string]string)
	for _, k := range b.threads.Keys() {
		if v, ok := b.threads.Get(k); ok {
			threads[k] = v
		}
	}
	stores := make(map[string]string)
	for _, k := range b.stores.Keys() {
		if v, ok := b.stores.Get(k); ok {
			stores[k] = v
		}
	}
	return StatusReport{
		Threads:      threads,
		VectorStores: stores,
		Documents:    b.documents.Keys(),
		Images:       b.images.Keys(),
		Sizes: map[string]int{
			"threads":       b.threads.Len(),
			"vector_stores": b.stores.Len(),
			"documents":     b.documents.Len(),
			"images":        b.images.Len(),
		},
		Config: StatusConfig{
			BaseURL:        b.cfg.BaseURL,
			PollTimeoutMS:  b.cfg.PollTimeout.Milliseconds(),
			PollIntervalMS: b.cfg.PollInterval.Milliseconds(),
			MaxRetries:     b.cfg.MaxRetries,
			MaxCacheSize:   b.cfg.MaxCacheSize,
		},
	}
}

// HealthReport is the connectivity probe result.
type HealthReport struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// Health performs one lightweight remote call and reports latency. A
// failing probe reports unhealthy rather than erroring so hosts can poll
// it safely.
func (b *Bridge) Health(ctx context.Context) HealthReport {
	start := time.Now()
	_, err := b.client.ListModels(ctx)
	report := HealthReport{
		Status:    "healthy",
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		report.Status = "unhealthy"
		report.Error = err.Error()
	}
	return report
}

// CacheSizes returns the live entry counts, logged at shutdown.
func (b *Bridge) CacheSizes() (threads, stores, documents, images int) {
	return b.threads.Len(), b.stores.Len(), b.documents.Len(), b.images.Len()
}
