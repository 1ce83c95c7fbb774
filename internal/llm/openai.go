package llm

import "strings"

// openaiDialect speaks the chat completions format. Mistral, DeepSeek and
// the Llama API compat endpoint accept the same shape.
type openaiDialect struct{}

// openaiRequest is the request payload for a chat completions call.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

// openaiMessage content is a plain string, or a part list when images are attached.
type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

func (openaiDialect) endpoint(baseURL, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (openaiDialect) headers(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

func (openaiDialect) body(r Request) any {
	var messages []openaiMessage
	if r.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: r.System})
	}

	user := openaiMessage{Role: "user", Content: r.Prompt}
	if len(r.Images) > 0 {
		parts := []openaiPart{{Type: "text", Text: r.Prompt}}
		for _, img := range r.Images {
			parts = append(parts, openaiPart{
				Type:     "image_url",
				ImageURL: &openaiImageURL{URL: img.DataURI()},
			})
		}
		user.Content = parts
	}
	messages = append(messages, user)

	return openaiRequest{
		Model:       r.Model,
		Messages:    messages,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

func (openaiDialect) paths() responsePaths {
	return responsePaths{
		content:          "choices.0.message.content",
		promptTokens:     "usage.prompt_tokens",
		completionTokens: "usage.completion_tokens",
	}
}
