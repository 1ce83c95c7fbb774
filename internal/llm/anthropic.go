package llm

import "strings"

const anthropicVersion = "2023-06-01"

type anthropicDialect struct{}

// anthropicRequest is the request payload for the Anthropic messages API.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func (anthropicDialect) endpoint(baseURL, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/messages"
}

func (anthropicDialect) headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func (anthropicDialect) body(r Request) any {
	// images go before the text block
	var blocks []anthropicBlock
	for _, img := range r.Images {
		blocks = append(blocks, anthropicBlock{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: img.MIMEType,
				Data:      img.Data,
			},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: r.Prompt})

	return anthropicRequest{
		Model:       r.Model,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		System:      r.System,
		Messages:    []anthropicMessage{{Role: "user", Content: blocks}},
	}
}

func (anthropicDialect) paths() responsePaths {
	return responsePaths{
		content:          "content.0.text",
		promptTokens:     "usage.input_tokens",
		completionTokens: "usage.output_tokens",
	}
}
