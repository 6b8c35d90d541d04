package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/consultmcp/consult/internal/assistant"
	"github.com/consultmcp/consult/internal/logging"
)

// imageExtensions is the allow-list for local image uploads.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// resolvePath resolves p to an absolute path and rejects anything outside
// the working directory. Runs before any I/O on the path.
func (b *Bridge) resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &PathError{Path: p}
	}
	abs = filepath.Clean(abs)
	if abs != b.workdir && !strings.HasPrefix(abs, b.workdir+string(filepath.Separator)) {
		return "", &PathError{Path: p}
	}
	return abs, nil
}

// uploadResult pairs one batch entry with its outcome.
type uploadResult struct {
	fileID string
	err    error
}

// uploadBatch uploads every uncached path concurrently and returns the
// remote file IDs in input order. Cached paths are served from the dedup
// cache without another transfer.
func (b *Bridge) uploadBatch(ctx context.Context, paths []string, purpose string) ([]string, error) {
	// Validate everything up front so no bytes move on a bad batch.
	abs := make([]string, len(paths))
	for i, p := range paths {
		resolved, err := b.resolvePath(p)
		if err != nil {
			return nil, err
		}
		if purpose == assistant.PurposeVision && !imageExtensions[strings.ToLower(filepath.Ext(resolved))] {
			return nil, &ImageTypeError{Path: p}
		}
		abs[i] = resolved
	}

	dedup := b.documents
	if purpose == assistant.PurposeVision {
		dedup = b.images
	}

	results := make([]uploadResult, len(abs))
	var wg sync.WaitGroup
	for i, path := range abs {
		if id, ok := dedup.Get(path); ok {
			results[i] = uploadResult{fileID: id}
			continue
		}
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			data, err := os.ReadFile(path)
			if err != nil {
				results[idx] = uploadResult{err: fmt.Errorf("read %s: %w", path, err)}
				return
			}
			file, err := b.client.UploadFile(ctx, purpose, filepath.Base(path), data)
			if err != nil {
				results[idx] = uploadResult{err: fmt.Errorf("upload %s: %w", path, err)}
				return
			}
			results[idx] = uploadResult{fileID: file.ID}
		}(i, path)
	}
	wg.Wait()

	// Cache every success before reporting the first failure so a retry
	// of the batch only re-sends what actually failed.
	var firstErr error
	ids := make([]string, len(results))
	for i, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		ids[i] = r.fileID
		dedup.Set(abs[i], r.fileID)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return ids, nil
}

// ensureVectorStore returns the tool's document index, creating it lazily.
func (b *Bridge) ensureVectorStore(ctx context.Context, tool string) (string, error) {
	if id, ok := b.stores.Get(tool); ok {
		return id, nil
	}
	store, err := b.client.CreateVectorStore(ctx, tool+"-documents")
	if err != nil {
		return "", fmt.Errorf("create vector store for %s: %w", tool, err)
	}
	b.stores.Set(tool, store.ID)
	logging.Infof("[Bridge] Created vector store %s for %s", store.ID, tool)
	return store.ID, nil
}

// attachBatch attaches the file IDs to the vector store concurrently.
// "Already attached" conflicts are a benign no-op; any other failure fails
// the batch.
func (b *Bridge) attachBatch(ctx context.Context, storeID string, fileIDs []string) error {
	errs := make([]error, len(fileIDs))
	var wg sync.WaitGroup
	for i, fileID := range fileIDs {
		wg.Add(1)
		go func(idx int, fileID string) {
			defer wg.Done()
			_, err := b.client.AttachFile(ctx, storeID, fileID)
			if err != nil {
				var apiErr *assistant.APIError
				if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
					logging.Debugf("[Bridge] File %s already attached to %s", fileID, storeID)
					return
				}
				errs[idx] = fmt.Errorf("attach %s: %w", fileID, err)
			}
		}(i, fileID)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// attachDocuments runs the full document pipeline for one invocation:
// upload new files, resolve the tool's index, attach the batch.
func (b *Bridge) attachDocuments(ctx context.Context, tool string, paths []string) (string, error) {
	fileIDs, err := b.uploadBatch(ctx, paths, assistant.PurposeAssistants)
	if err != nil {
		return "", err
	}
	storeID, err := b.ensureVectorStore(ctx, tool)
	if err != nil {
		return "", err
	}
	if err := b.attachBatch(ctx, storeID, fileIDs); err != nil {
		return "", err
	}
	logging.Infof("[Bridge] Attached %d file(s) to %s for %s", len(fileIDs), storeID, tool)
	return storeID, nil
}

// uploadImages uploads local image files for vision and returns the remote
// file IDs in input order.
func (b *Bridge) uploadImages(ctx context.Context, paths []string) ([]string, error) {
	return b.uploadBatch(ctx, paths, assistant.PurposeVision)
}
