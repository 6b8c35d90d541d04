package assistant

import "github.com/openai/openai-go"

// Upload purposes recognized by the remote file endpoint.
const (
	PurposeAssistants = "assistants"
	PurposeVision     = "vision"
)

// Image detail hints.
const (
	DetailAuto = "auto"
	DetailLow  = "low"
	DetailHigh = "high"
)

// IsFailure reports whether the status is a terminal failure state.
// incomplete is terminal but carries a usable partial reply upstream, so it
// is classified neither success nor failure here; the poll loop times out
// on it unless the remote later reports completed.
func IsFailure(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
		return true
	}
	return false
}

// TextPart builds a text content part for an outgoing message.
func TextPart(text string) openai.MessageContentPartParamUnion {
	return openai.MessageContentPartParamUnion{
		OfText: &openai.TextContentBlockParam{Text: text},
	}
}

// ImageURLPart builds an image part referencing a URL or data URL.
func ImageURLPart(url, detail string) openai.MessageContentPartParamUnion {
	return openai.MessageContentPartParamUnion{
		OfImageURL: &openai.ImageURLContentBlockParam{
			ImageURL: openai.ImageURLParam{
				URL:    url,
				Detail: openai.ImageURLDetail(detail),
			},
		},
	}
}

// ImageFilePart builds an image part referencing an uploaded file.
func ImageFilePart(fileID, detail string) openai.MessageContentPartParamUnion {
	return openai.MessageContentPartParamUnion{
		OfImageFile: &openai.ImageFileContentBlockParam{
			ImageFile: openai.ImageFileParam{
				FileID: fileID,
				Detail: openai.ImageFileDetail(detail),
			},
		},
	}
}

// MessageText returns the first text part of a message read back from a
// thread, if any.
func MessageText(msg *openai.Message) (string, bool) {
	for _, part := range msg.Content {
		if part.Type == "text" {
			return part.Text.Value, true
		}
	}
	return "", false
}
