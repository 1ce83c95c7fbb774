package llm

import (
	"net/url"
	"strings"
)

type geminiDialect struct{}

// geminiRequest is the request payload for the Gemini API.
type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inline_data,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

func (geminiDialect) endpoint(baseURL, model string) string {
	return strings.TrimRight(baseURL, "/") + "/models/" + url.PathEscape(model) + ":generateContent"
}

func (geminiDialect) headers(apiKey string) map[string]string {
	return map[string]string{"X-Goog-Api-Key": apiKey}
}

func (geminiDialect) body(r Request) any {
	parts := []geminiPart{{Text: r.Prompt}}
	for _, img := range r.Images {
		parts = append(parts, geminiPart{
			InlineData: &geminiBlob{MIMEType: img.MIMEType, Data: img.Data},
		})
	}

	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     r.Temperature,
			MaxOutputTokens: r.MaxTokens,
		},
	}
	if r.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: r.System}}}
	}
	return req
}

func (geminiDialect) paths() responsePaths {
	return responsePaths{
		content:          "candidates.0.content.parts.0.text",
		promptTokens:     "usageMetadata.promptTokenCount",
		completionTokens: "usageMetadata.candidatesTokenCount",
	}
}
