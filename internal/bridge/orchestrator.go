package bridge

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/consultmcp/consult/internal/assistant"
	"github.com/consultmcp/consult/internal/logging"
)

const replyPageSize = 10

// sniffImageMIME guesses the MIME type of a raw base64 payload from its
// leading characters. Defaults to PNG.
func sniffImageMIME(b64 string) string {
	switch {
	case strings.HasPrefix(b64, "/9j/"):
		return "image/jpeg"
	case strings.HasPrefix(b64, "R0lGOD"):
		return "image/gif"
	case strings.HasPrefix(b64, "UklGR"):
		return "image/webp"
	default:
		return "image/png"
	}
}

// buildContent assembles the user message parts: one part per image
// (URLs, uploaded file IDs, inline base64 as data URLs), then exactly one
// text part carrying context and prompt.
func buildContent(req *ConsultRequest, imageFileIDs []string) []openai.MessageContentPartParamUnion {
	detail := req.ImageDetail
	if detail == "" {
		detail = assistant.DetailAuto
	}

	var parts []openai.MessageContentPartParamUnion
	for _, url := range req.ImageURLs {
		parts = append(parts, assistant.ImageURLPart(url, detail))
	}
	for _, fileID := range imageFileIDs {
		parts = append(parts, assistant.ImageFilePart(fileID, detail))
	}
	for _, b64 := range req.ImageBase64 {
		dataURL := fmt.Sprintf("data:%s;base64,%s", sniffImageMIME(b64), b64)
		parts = append(parts, assistant.ImageURLPart(dataURL, detail))
	}

	text := req.Prompt
	if req.Context != "" {
		text = req.Context + "\n\n" + req.Prompt
	}
	return append(parts, assistant.TextPart(text))
}

// runAndWait starts a run and polls until it completes, reporting failure
// terminal states and poll-budget exhaustion as errors. Transport-level
// failures inside each call are retried by the client; a failed or timed
// out run is not retried here since that would duplicate billable remote
// work. When a document index exists it is bound to the thread first so
// file search covers it.
func (b *Bridge) runAndWait(ctx context.Context, requestID, threadID, assistantID, storeID string) (*openai.Run, error) {
	if storeID != "" {
		if err := b.client.BindVectorStore(ctx, threadID, storeID); err != nil {
			return nil, fmt.Errorf("bind vector store: %w", err)
		}
	}

	run, err := b.client.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logging.Infof("[Bridge] %s run %s started on %s (status %s)", requestID, run.ID, threadID, run.Status)

	if run.Status == openai.RunStatusCompleted {
		return run, nil
	}
	if assistant.IsFailure(run.Status) {
		return nil, &RunFailureError{Status: run.Status, Code: run.LastError.Code, Message: run.LastError.Message}
	}

	iterations := int(math.Ceil(float64(b.cfg.PollTimeout) / float64(b.cfg.PollInterval)))
	lastStatus := run.Status

	for i := 1; i <= iterations; i++ {
		select {
		case <-time.After(b.cfg.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		run, err = b.client.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, fmt.Errorf("poll run: %w", err)
		}
		lastStatus = run.Status

		if i%20 == 0 {
			logging.Infof("[Bridge] %s run %s still %s (poll %d/%d)", requestID, run.ID, run.Status, i, iterations)
		}

		if run.Status == openai.RunStatusCompleted {
			if run.Usage.TotalTokens > 0 {
				logging.Debugf("[Bridge] %s run %s usage: prompt=%d completion=%d total=%d",
					requestID, run.ID, run.Usage.PromptTokens, run.Usage.CompletionTokens, run.Usage.TotalTokens)
			}
			return run, nil
		}
		if assistant.IsFailure(run.Status) {
			return nil, &RunFailureError{Status: run.Status, Code: run.LastError.Code, Message: run.LastError.Message}
		}
	}

	return nil, &TimeoutError{LastStatus: lastStatus}
}

// fetchReply reads the newest message on the thread and returns its text.
// A reply without a text part is a hard error, never retried: it signals a
// remote contract change, not a transient condition.
func (b *Bridge) fetchReply(ctx context.Context, threadID string) (string, error) {
	page, err := b.client.ListMessages(ctx, threadID, replyPageSize)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	if len(page.Data) == 0 {
		return "", ErrNoTextContent
	}
	text, ok := assistant.MessageText(&page.Data[0])
	if !ok {
		return "", ErrNoTextContent
	}
	return text, nil
}
