package upstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

const maxRawMessageLength = 512

// ErrorDetail is the decoded form of the error payloads returned by the
// authorization server and the identity provider. Exactly which fields are
// populated depends on the upstream.
type ErrorDetail struct {
	// Structured is set when "error" is an object (identity provider generic errors).
	Structured *StructuredError
	// Code is set when "error" is a string (OAuth2 style errors).
	Code        string
	Description string
	Message     string
	UI          *UIContainer
	Raw         string
}

type StructuredError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// UIContainer carries user facing messages of a self-service flow.
type UIContainer struct {
	Messages []UIMessage `json:"messages"`
	Nodes    []UINode    `json:"nodes"`
}

type UIMessage struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type UINode struct {
	Messages []UIMessage `json:"messages"`
}

type wireError struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	UI               *UIContainer    `json:"ui"`
}

// ParseErrorDetail decodes body without failing: anything that is not a
// recognised JSON shape ends up in Raw.
func ParseErrorDetail(body []byte) ErrorDetail {
	detail := ErrorDetail{Raw: strings.TrimSpace(string(body))}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return detail
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			detail.Raw = s
		}
		return detail
	case '{':
	default:
		return detail
	}

	var w wireError
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return detail
	}
	detail.Description = w.ErrorDescription
	detail.Message = w.Message
	detail.UI = w.UI

	rawErr := bytes.TrimSpace(w.Error)
	if len(rawErr) > 0 {
		switch rawErr[0] {
		case '{':
			var se StructuredError
			if err := json.Unmarshal(rawErr, &se); err == nil {
				detail.Structured = &se
			}
		case '"':
			_ = json.Unmarshal(rawErr, &detail.Code)
		}
	}
	return detail
}

// Text picks the message to surface: structured message, else first UI
// message, else generic description, else raw body. Empty when the payload
// carried nothing usable.
func (d ErrorDetail) Text() string {
	if d.Structured != nil && d.Structured.Message != "" {
		return d.Structured.Message
	}
	if msg := d.firstUIMessage(); msg != "" {
		return msg
	}
	for _, generic := range []string{d.Description, d.Message, d.reason(), d.Code} {
		if generic != "" {
			return generic
		}
	}
	if len(d.Raw) > maxRawMessageLength {
		return d.Raw[:maxRawMessageLength]
	}
	return d.Raw
}

func (d ErrorDetail) reason() string {
	if d.Structured == nil {
		return ""
	}
	return d.Structured.Reason
}

func (d ErrorDetail) firstUIMessage() string {
	if d.UI == nil {
		return ""
	}
	for _, m := range d.UI.Messages {
		if m.Text != "" {
			return m.Text
		}
	}
	for _, n := range d.UI.Nodes {
		for _, m := range n.Messages {
			if m.Text != "" {
				return m.Text
			}
		}
	}
	return ""
}
