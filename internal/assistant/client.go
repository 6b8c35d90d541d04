// Package assistant wraps the official OpenAI SDK for the Assistants v2
// resources the bridge drives: threads, messages, runs, files, and vector
// stores. Calls run under the package retry policy with the SDK's own
// retries disabled, and non-success responses surface as *APIError so
// callers can inspect the original status and body.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
)

// Client communicates with the assistant service.
type Client struct {
	api    openai.Client
	policy RetryPolicy
}

// NewClient creates a client against baseURL using apiKey as the bearer
// credential. The SDK's built-in retries are disabled so the package
// policy owns the full attempt budget.
func NewClient(baseURL, apiKey string, policy RetryPolicy) *Client {
	api := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/")+"/"),
		option.WithMaxRetries(0),
	)
	return &Client{api: api, policy: policy}
}

// wrapAPIError converts an SDK error into *APIError, preserving the remote
// status and body for the retry classifier. Transport-level failures pass
// through unchanged.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = apiErr.Message
		}
		return &APIError{StatusCode: apiErr.StatusCode, Body: body}
	}
	return err
}

// call runs one SDK operation under the retry policy.
func (c *Client) call(ctx context.Context, label string, fn func() error) error {
	return withRetry(ctx, c.policy, label, func() error {
		return wrapAPIError(fn())
	})
}

// --------------------------------------------------------------------------
// Threads and messages
// --------------------------------------------------------------------------

// CreateThread creates an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*openai.Thread, error) {
	var thread *openai.Thread
	err := c.call(ctx, "create thread", func() error {
		var err error
		thread, err = c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// CreateMessage appends a user message built from the given content parts
// to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, parts []openai.MessageContentPartParamUnion) (*openai.Message, error) {
	var msg *openai.Message
	err := c.call(ctx, "create message", func() error {
		var err error
		msg, err = c.api.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
			Role:    openai.BetaThreadMessageNewParamsRoleUser,
			Content: openai.BetaThreadMessageNewParamsContentUnion{OfArrayOfContentParts: parts},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages fetches the most recent messages on a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) (*pagination.CursorPage[openai.Message], error) {
	var page *pagination.CursorPage[openai.Message]
	err := c.call(ctx, "list messages", func() error {
		var err error
		page, err = c.api.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
			Limit: openai.Int(int64(limit)),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// BindVectorStore points the thread's file search at the given document
// index. Runs on the thread then search the store without further setup.
func (c *Client) BindVectorStore(ctx context.Context, threadID, vectorStoreID string) error {
	return c.call(ctx, "bind vector store", func() error {
		_, err := c.api.Beta.Threads.Update(ctx, threadID, openai.BetaThreadUpdateParams{
			ToolResources: openai.BetaThreadUpdateParamsToolResources{
				FileSearch: openai.BetaThreadUpdateParamsToolResourcesFileSearch{
					VectorStoreIDs: []string{vectorStoreID},
				},
			},
		})
		return err
	})
}

// --------------------------------------------------------------------------
// Runs
// --------------------------------------------------------------------------

// CreateRun starts a run on a thread against an assistant identity.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*openai.Run, error) {
	var run *openai.Run
	err := c.call(ctx, "create run", func() error {
		var err error
		run, err = c.api.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
			AssistantID: assistantID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*openai.Run, error) {
	var run *openai.Run
	err := c.call(ctx, "get run", func() error {
		var err error
		run, err = c.api.Beta.Threads.Runs.Get(ctx, threadID, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// --------------------------------------------------------------------------
// Files and vector stores
// --------------------------------------------------------------------------

// UploadFile uploads file bytes for the given purpose and returns the
// remote file object.
func (c *Client) UploadFile(ctx context.Context, purpose, filename string, data []byte) (*openai.FileObject, error) {
	var file *openai.FileObject
	err := c.call(ctx, "upload file", func() error {
		var err error
		file, err = c.api.Files.New(ctx, openai.FileNewParams{
			File:    openai.File(bytes.NewReader(data), filename, "application/octet-stream"),
			Purpose: openai.FilePurpose(purpose),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// CreateVectorStore creates a named document index.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*openai.VectorStore, error) {
	var store *openai.VectorStore
	err := c.call(ctx, "create vector store", func() error {
		var err error
		store, err = c.api.VectorStores.New(ctx, openai.VectorStoreNewParams{
			Name: openai.String(name),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// AttachFile attaches an uploaded file to a vector store.
func (c *Client) AttachFile(ctx context.Context, vectorStoreID, fileID string) (*openai.VectorStoreFile, error) {
	var vsf *openai.VectorStoreFile
	err := c.call(ctx, "attach file", func() error {
		var err error
		vsf, err = c.api.VectorStores.Files.New(ctx, vectorStoreID, openai.VectorStoreFileNewParams{
			FileID: fileID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return vsf, nil
}

// --------------------------------------------------------------------------
// Health
// --------------------------------------------------------------------------

// ListModels performs one lightweight call against the capability-list
// endpoint. Used only as a connectivity probe.
func (c *Client) ListModels(ctx context.Context) (*pagination.Page[openai.Model], error) {
	var page *pagination.Page[openai.Model]
	err := c.call(ctx, "list models", func() error {
		var err error
		page, err = c.api.Models.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
