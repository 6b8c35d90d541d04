package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// structuredReply is the JSON shape emitted by assistants configured for
// structured output. Every field except message is optional.
type structuredReply struct {
	Message         string            `json:"message"`
	Status          string            `json:"status"`
	Rating          json.Number       `json:"rating"`
	Issues          []structuredIssue `json:"issues"`
	EmphasisPoints  []string          `json:"emphasis_points"`
	ComplianceLevel string            `json:"compliance_level"`
	Platform        string            `json:"platform"`
	WaitingFor      string            `json:"waiting_for"`
}

type structuredIssue struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Criterion      string `json:"criterion"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
	CodeSample     string `json:"code_sample"`
}

// formatReply reformats a structured assistant reply into readable text.
// Replies that are not JSON, or JSON without a message field, pass through
// unchanged so plain free-text assistants behave identically.
func formatReply(raw string) string {
	var reply structuredReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || reply.Message == "" {
		return raw
	}

	var sb strings.Builder
	sb.WriteString(reply.Message)

	if reply.Status != "" || reply.Rating != "" {
		sb.WriteString("\n\n")
		if reply.Status != "" {
			sb.WriteString("Status: " + reply.Status)
		}
		if reply.Rating != "" {
			if reply.Status != "" {
				sb.WriteString(" | ")
			}
			sb.WriteString("Rating: " + reply.Rating.String())
		}
	}

	if len(reply.Issues) > 0 {
		sb.WriteString("\n\nIssues:")
		for i, issue := range reply.Issues {
			sb.WriteString(fmt.Sprintf("\n%d. [%s] %s", i+1, strings.ToUpper(issue.Severity), issue.Category))
			writeIssueField(&sb, "Criterion", issue.Criterion)
			writeIssueField(&sb, "Location", issue.Location)
			writeIssueField(&sb, "", issue.Description)
			writeIssueField(&sb, "Recommendation", issue.Recommendation)
			if issue.CodeSample != "" {
				sb.WriteString("\n   Code sample:\n   " + strings.ReplaceAll(issue.CodeSample, "\n", "\n   "))
			}
		}
	}

	if len(reply.EmphasisPoints) > 0 {
		sb.WriteString("\n\nEmphasis:")
		for _, point := range reply.EmphasisPoints {
			sb.WriteString("\n- " + point)
		}
	}

	if reply.ComplianceLevel != "" || reply.Platform != "" {
		var ctx []string
		if reply.ComplianceLevel != "" {
			ctx = append(ctx, reply.ComplianceLevel)
		}
		if reply.Platform != "" {
			ctx = append(ctx, reply.Platform)
		}
		sb.WriteString("\n\nContext: " + strings.Join(ctx, " | "))
	}

	if reply.WaitingFor != "" {
		sb.WriteString("\n\nWaiting for: " + reply.WaitingFor)
	}

	return sb.String()
}

func writeIssueField(sb *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	if label == "" {
		sb.WriteString("\n   " + value)
		return
	}
	sb.WriteString("\n   " + label + ": " + value)
}
