package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Usage is the token accounting reported with an answer.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens" yaml:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Answer is the text extracted from a provider response.
type Answer struct {
	Provider Provider
	Model    string
	Text     string
	Usage    Usage
	HasUsage bool
}

// fieldReader looks up values by field path.
type fieldReader interface {
	str(path string) (string, bool)
	integer(path string) (int, bool)
}

type gjsonReader []byte

func (g gjsonReader) str(path string) (string, bool) {
	r := gjson.GetBytes(g, path)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// integer only trusts plain digit runs; negatives, fractions and exponents
// are reported as absent.
func (g gjsonReader) integer(path string) (int, bool) {
	r := gjson.GetBytes(g, path)
	if r.Type != gjson.Number || r.Raw == "" || strings.TrimLeft(r.Raw, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(r.Raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// scanReader falls back to landmark extraction for bodies that are not valid JSON.
type scanReader string

func (s scanReader) str(path string) (string, bool) {
	return Extract(string(s), path)
}

func (s scanReader) integer(path string) (int, bool) {
	return ExtractInt(string(s), path)
}

func newFieldReader(raw []byte) fieldReader {
	if gjson.ValidBytes(raw) {
		return gjsonReader(raw)
	}
	return scanReader(raw)
}

// errorMessage returns the provider error message in raw, if any.
func errorMessage(fr fieldReader) (string, bool) {
	if msg, ok := fr.str("error.message"); ok && msg != "" {
		return msg, true
	}
	if msg, ok := fr.str("message"); ok && msg != "" {
		return msg, true
	}
	// {"error":"..."}
	if msg, ok := fr.str("error"); ok && msg != "" {
		return msg, true
	}
	return "", false
}

// ParseResponse extracts the answer and usage from a provider response body.
// An error object in the body is returned as *APIError; a body whose content
// field is missing or empty yields ErrUnexpectedResponse.
func ParseResponse(p Provider, raw []byte) (Answer, error) {
	d, err := p.dialect()
	if err != nil {
		return Answer{}, err
	}

	fr := newFieldReader(raw)
	if msg, ok := errorMessage(fr); ok {
		return Answer{}, &APIError{Provider: p, Message: msg, Body: raw}
	}

	paths := d.paths()
	text, ok := fr.str(paths.content)
	if !ok {
		return Answer{}, fmt.Errorf("%s: %w: no %s in %s", p, ErrUnexpectedResponse, paths.content, snippet(raw))
	}
	if text == "" {
		return Answer{}, fmt.Errorf("%s: %w: empty %s in %s", p, ErrUnexpectedResponse, paths.content, snippet(raw))
	}

	answer := Answer{Provider: p, Text: text}
	prompt, okPrompt := fr.integer(paths.promptTokens)
	completion, okCompletion := fr.integer(paths.completionTokens)
	if okPrompt || okCompletion {
		answer.Usage = Usage{PromptTokens: prompt, CompletionTokens: completion}
		answer.HasUsage = true
	}
	return answer, nil
}

func snippet(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
