package llm

import (
	"fmt"
	"strings"
)

// Provider identifies a supported LLM vendor.
type Provider int

const (
	OpenAI Provider = iota + 1
	Anthropic
	Google
	Mistral
	DeepSeek
	Meta
)

// dialect is the provider-specific half of a request/response exchange.
type dialect interface {
	// endpoint returns the URL for a completion call against baseURL.
	endpoint(baseURL, model string) string
	// headers returns the authentication and version headers.
	headers(apiKey string) map[string]string
	// body returns the value marshalled as the request payload.
	body(r Request) any
	// paths returns the response field paths for this provider's shape.
	paths() responsePaths
}

// responsePaths are the field paths read from a successful response.
type responsePaths struct {
	content          string
	promptTokens     string
	completionTokens string
}

type providerInfo struct {
	name           string
	aliases        []string
	defaultModel   string
	keyEnv         []string
	baseURL        string
	supportsImages bool
	dialect        dialect
}

var providers = map[Provider]providerInfo{
	OpenAI: {
		name:           "openai",
		aliases:        []string{"gpt", "chatgpt"},
		defaultModel:   "gpt-4o-mini",
		keyEnv:         []string{"OPENAI_API_KEY"},
		baseURL:        "https://api.openai.com/v1",
		supportsImages: true,
		dialect:        openaiDialect{},
	},
	Anthropic: {
		name:           "anthropic",
		aliases:        []string{"claude"},
		defaultModel:   "claude-3-5-haiku-latest",
		keyEnv:         []string{"ANTHROPIC_API_KEY"},
		baseURL:        "https://api.anthropic.com/v1",
		supportsImages: true,
		dialect:        anthropicDialect{},
	},
	Google: {
		name:           "google",
		aliases:        []string{"gemini"},
		defaultModel:   "gemini-2.0-flash",
		keyEnv:         []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		baseURL:        "https://generativelanguage.googleapis.com/v1beta",
		supportsImages: true,
		dialect:        geminiDialect{},
	},
	Mistral: {
		name:           "mistral",
		defaultModel:   "mistral-small-latest",
		keyEnv:         []string{"MISTRAL_API_KEY"},
		baseURL:        "https://api.mistral.ai/v1",
		supportsImages: true,
		dialect:        openaiDialect{},
	},
	DeepSeek: {
		name:         "deepseek",
		defaultModel: "deepseek-chat",
		keyEnv:       []string{"DEEPSEEK_API_KEY"},
		baseURL:      "https://api.deepseek.com",
		dialect:      openaiDialect{},
	},
	Meta: {
		name:           "meta",
		aliases:        []string{"llama"},
		defaultModel:   "Llama-3.3-70B-Instruct",
		keyEnv:         []string{"LLAMA_API_KEY", "META_API_KEY"},
		baseURL:        "https://api.llama.com/compat/v1",
		supportsImages: true,
		dialect:        openaiDialect{},
	},
}

// Providers returns every supported provider in display order.
func Providers() []Provider {
	return []Provider{OpenAI, Anthropic, Google, Mistral, DeepSeek, Meta}
}

// ParseProvider resolves a provider name or alias, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Providers() {
		info := providers[p]
		if name == info.name {
			return p, nil
		}
		for _, alias := range info.aliases {
			if name == alias {
				return p, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Valid reports whether p is a member of the supported set.
func (p Provider) Valid() bool {
	_, ok := providers[p]
	return ok
}

func (p Provider) String() string {
	if info, ok := providers[p]; ok {
		return info.name
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// DefaultModel returns the model used when none is configured.
func (p Provider) DefaultModel() string {
	return providers[p].defaultModel
}

// KeyEnv returns the environment variables consulted for the API key, in order.
func (p Provider) KeyEnv() []string {
	return providers[p].keyEnv
}

// BaseURL returns the provider's public API root.
func (p Provider) BaseURL() string {
	return providers[p].baseURL
}

// SupportsImages reports whether image attachments can be sent to p.
func (p Provider) SupportsImages() bool {
	return providers[p].supportsImages
}

func (p Provider) dialect() (dialect, error) {
	info, ok := providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p)
	}
	return info.dialect, nil
}
