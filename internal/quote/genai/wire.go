package genai

import (
	"strings"

	"software-quoter/internal/common/validation"
	"software-quoter/internal/quote/request"
)

// generateContent request and response bodies.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func toParts(parts []request.Part) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.IsInline() {
			out = append(out, part{InlineData: &inlineData{MIMEType: p.MIMEType, Data: p.Data}})
			continue
		}
		out = append(out, part{Text: p.Text})
	}
	return out
}

// toSchema converts the declared shape into the generator's schema dialect,
// which uses upper-case type names and has no numeric bounds.
func toSchema(s validation.JSONSchema) *schema {
	return &schema{
		Type:        strings.ToUpper(s.Type),
		Description: s.Description,
		Properties:  toProperties(s.Properties),
		Required:    s.Required,
	}
}

func toProperties(props map[string]validation.Property) map[string]*schema {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]*schema, len(props))
	for name, p := range props {
		out[name] = toPropertySchema(p)
	}
	return out
}

func toPropertySchema(p validation.Property) *schema {
	s := &schema{
		Type:        strings.ToUpper(p.Type),
		Description: p.Description,
		Properties:  toProperties(p.Properties),
		Required:    p.Required,
		Enum:        p.Enum,
	}
	if p.Items != nil {
		s.Items = toPropertySchema(*p.Items)
	}
	return s
}

// text joins the non-thought text parts of the first candidate.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
