package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload kinds produced by the generation worker.
const (
	PayloadText     = "text"
	PayloadOptions  = "options"
	PayloadProgress = "progress"
)

// Payload is the structured form of a step's llm_output: plain text, an
// enumerated option list, or a progress summary.
type Payload struct {
	Kind    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// ParsePayload interprets the worker's opaque llm_output. The worker's
// output schema is not fully trusted: anything that fails structural
// parsing is rendered as plain text rather than failing the step.
func ParsePayload(raw json.RawMessage) Payload {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Payload{Kind: PayloadText}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Payload{Kind: PayloadText, Text: s}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil || !validKind(p.Kind) {
		return Payload{Kind: PayloadText, Text: trimmed}
	}
	return p
}

func validKind(kind string) bool {
	switch kind {
	case PayloadText, PayloadOptions, PayloadProgress:
		return true
	}
	return false
}

// Display renders the payload as user-visible text.
func (p Payload) Display() string {
	switch p.Kind {
	case PayloadOptions:
		var b strings.Builder
		if p.Text != "" {
			b.WriteString(p.Text)
		}
		for i, opt := range p.Options {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fmt.Sprintf("%d. %s", i+1, opt))
		}
		return b.String()
	case PayloadProgress:
		return p.Summary
	default:
		return p.Text
	}
}

// SelectionContent extracts the renderable text of a recorded
// user_selection. Both a bare JSON string and an object with a content
// field are accepted; anything else yields no user message.
func SelectionContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var sel struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &sel); err == nil {
		return sel.Content
	}
	return ""
}
