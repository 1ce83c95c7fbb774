package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go-ask/internal/apperr"
	"go-ask/internal/llm"
)

func testConfig(t *testing.T, provider, baseURL string) *Config {
	t.Helper()
	return &Config{
		DefaultModel: provider,
		Temperature:  0.7,
		MaxTokens:    100,
		Timeout:      5 * time.Second,
		Format:       "text",
		OutputDir:    t.TempDir(),
		Providers: map[string]ProviderConfig{
			provider: {APIKey: "test-key", BaseURL: baseURL},
		},
	}
}

func replyWith(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, seen); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunAskEndToEnd(t *testing.T) {
	var sent map[string]any
	srv := replyWith(t, http.StatusOK,
		`{"choices":[{"message":{"content":"2"}}],"usage":{"prompt_tokens":10,"completion_tokens":1}}`, &sent)
	cfg := testConfig(t, "openai", srv.URL)

	var out bytes.Buffer
	err := runAsk(context.Background(), cfg, askOptions{format: "json"}, []string{"What is 1+1?"}, nil, &out)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}

	msgs := sent["messages"].([]any)
	if msgs[0].(map[string]any)["content"] != "What is 1+1?" {
		t.Errorf("unexpected prompt sent: %v", msgs)
	}
	if sent["max_tokens"] != float64(100) {
		t.Errorf("max_tokens = %v", sent["max_tokens"])
	}

	var rec Record
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if rec.Answer != "2" {
		t.Errorf("Answer = %q, want %q", rec.Answer, "2")
	}
	if rec.Usage == nil || rec.Usage.PromptTokens != 10 || rec.Usage.CompletionTokens != 1 {
		t.Errorf("Usage = %+v, want 10/1", rec.Usage)
	}
	if rec.Provider != "openai" || rec.Model != llm.OpenAI.DefaultModel() || rec.ID == "" {
		t.Errorf("unexpected record metadata: %+v", rec)
	}
}

func TestRunAskTextOutputAndSave(t *testing.T) {
	srv := replyWith(t, http.StatusOK,
		`{"content":[{"type":"text","text":"Hello\nthere"}],"usage":{"input_tokens":3,"output_tokens":2}}`, nil)
	cfg := testConfig(t, "anthropic", srv.URL)

	var out bytes.Buffer
	opts := askOptions{save: true, format: "markdown"}
	if err := runAsk(context.Background(), cfg, opts, []string{"hi"}, nil, &out); err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	if !strings.Contains(out.String(), "## Answer\n\nHello\nthere") {
		t.Errorf("unexpected markdown output:\n%s", out.String())
	}

	matches, err := filepath.Glob(filepath.Join(cfg.OutputDir, "anthropic-*.md"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one saved markdown file, got %v (%v)", matches, err)
	}
	saved, _ := os.ReadFile(matches[0])
	if string(saved) != out.String() {
		t.Errorf("saved file differs from printed output")
	}
}

func TestRunAskStdinAndAttachments(t *testing.T) {
	var sent map[string]any
	srv := replyWith(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`, &sent)
	cfg := testConfig(t, "google", srv.URL)

	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	os.WriteFile(notes, []byte("buy milk"), 0644)
	pic := filepath.Join(dir, "pic.png")
	os.WriteFile(pic, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR"), 0644)

	var out bytes.Buffer
	opts := askOptions{files: []string{notes, pic}}
	err := runAsk(context.Background(), cfg, opts, []string{"Summarize"}, strings.NewReader("from stdin\n"), &out)
	if err != nil {
		t.Fatalf("runAsk: %v", err)
	}

	parts := sent["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	text := parts[0].(map[string]any)["text"].(string)
	if !strings.HasPrefix(text, "Summarize\n\nfrom stdin") || !strings.Contains(text, "--- File: notes.txt ---\nbuy milk") {
		t.Errorf("unexpected prompt text: %q", text)
	}
	if len(parts) != 2 || parts[1].(map[string]any)["inline_data"] == nil {
		t.Errorf("expected the image as inline data: %v", parts)
	}
	if out.String() != "ok\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunAskDropsImagesForTextOnlyProvider(t *testing.T) {
	var sent map[string]any
	srv := replyWith(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, &sent)
	cfg := testConfig(t, "deepseek", srv.URL)

	pic := filepath.Join(t.TempDir(), "pic.png")
	os.WriteFile(pic, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR"), 0644)

	var out bytes.Buffer
	if err := runAsk(context.Background(), cfg, askOptions{files: []string{pic}}, []string{"look"}, nil, &out); err != nil {
		t.Fatalf("runAsk: %v", err)
	}
	content := sent["messages"].([]any)[0].(map[string]any)["content"]
	if content != "look" {
		t.Errorf("expected plain text content, got %v", content)
	}
}

func TestRunAskDryRun(t *testing.T) {
	cfg := testConfig(t, "mistral", "http://127.0.0.1:0")
	cfg.Providers = map[string]ProviderConfig{}

	var out bytes.Buffer
	opts := askOptions{dryRun: true, temperature: 0.2, temperatureSet: true}
	if err := runAsk(context.Background(), cfg, opts, []string{"hello"}, nil, &out); err != nil {
		t.Fatalf("dry run should not need a key or network: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("dry run output is not JSON: %v", err)
	}
	if body["model"] != llm.Mistral.DefaultModel() || body["temperature"] != 0.2 {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRunAskErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		args     []string
		opts     askOptions
		noKey    bool
		wantKind apperr.Kind
	}{
		{name: "non-2xx status", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`, args: []string{"hi"}, wantKind: apperr.KindTransport},
		{name: "non-2xx status without JSON", status: http.StatusBadGateway, body: `upstream down`, args: []string{"hi"}, wantKind: apperr.KindTransport},
		{name: "error body with 200", status: http.StatusOK, body: `{"error":{"message":"overloaded"}}`, args: []string{"hi"}, wantKind: apperr.KindAPI},
		{name: "missing content", status: http.StatusOK, body: `{"choices":[]}`, args: []string{"hi"}, wantKind: apperr.KindParse},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`, args: []string{"hi"}, wantKind: apperr.KindParse},
		{name: "no prompt", status: http.StatusOK, body: `{}`, wantKind: apperr.KindInput},
		{name: "missing key", status: http.StatusOK, body: `{}`, args: []string{"hi"}, noKey: true, wantKind: apperr.KindConfig},
		{name: "unknown provider", status: http.StatusOK, body: `{}`, args: []string{"hi"}, opts: askOptions{provider: "groq"}, wantKind: apperr.KindConfig},
		{name: "bad format", status: http.StatusOK, body: `{}`, args: []string{"hi"}, opts: askOptions{format: "xml"}, wantKind: apperr.KindConfig},
		{name: "missing file", status: http.StatusOK, body: `{}`, args: []string{"hi"}, opts: askOptions{files: []string{"/does/not/exist.txt"}}, wantKind: apperr.KindInput},
		{name: "bad temperature", status: http.StatusOK, body: `{}`, args: []string{"hi"}, opts: askOptions{temperature: 3, temperatureSet: true}, wantKind: apperr.KindInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := replyWith(t, tt.status, tt.body, nil)
			cfg := testConfig(t, "openai", srv.URL)
			if tt.noKey {
				t.Setenv("OPENAI_API_KEY", "")
				cfg.Providers["openai"] = ProviderConfig{BaseURL: srv.URL}
			}

			var out bytes.Buffer
			err := runAsk(context.Background(), cfg, tt.opts, tt.args, nil, &out)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("kind = %s, want %s (%v)", got, tt.wantKind, err)
			}
			if out.Len() != 0 {
				t.Errorf("nothing should be written to stdout on failure, got %q", out.String())
			}
		})
	}
}

func TestRunAskHTTPFailureCarriesStatusAndBody(t *testing.T) {
	srv := replyWith(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`, nil)
	cfg := testConfig(t, "openai", srv.URL)

	err := runAsk(context.Background(), cfg, askOptions{}, []string{"hi"}, nil, io.Discard)
	if apperr.ExitCode(err) != 4 {
		t.Fatalf("exit code = %d (%v), want 4", apperr.ExitCode(err), err)
	}
	for _, want := range []string{"429", "rate limited", `"type":"requests"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err.Error(), want)
		}
	}
}

func TestRunAskTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(t, "openai", srv.URL)
	err := runAsk(context.Background(), cfg, askOptions{timeout: 50 * time.Millisecond}, []string{"hi"}, nil, io.Discard)
	if apperr.KindOf(err) != apperr.KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if apperr.ExitCode(err) != 4 {
		t.Errorf("exit code = %d, want 4", apperr.ExitCode(err))
	}
}

func TestReadPrompt(t *testing.T) {
	got, err := readPrompt([]string{"explain", "this"}, strings.NewReader("  code  \n"))
	if err != nil || got != "explain this\n\ncode" {
		t.Errorf("readPrompt = %q, %v", got, err)
	}
	got, err = readPrompt(nil, strings.NewReader("only stdin"))
	if err != nil || got != "only stdin" {
		t.Errorf("readPrompt = %q, %v", got, err)
	}
	if _, err := readPrompt([]string{"  "}, strings.NewReader("")); apperr.KindOf(err) != apperr.KindInput {
		t.Errorf("expected input error for an empty prompt, got %v", err)
	}
}

func TestResolveTarget(t *testing.T) {
	cfg := &Config{
		DefaultModel: "anthropic:claude-custom",
		Providers:    map[string]ProviderConfig{"gemini": {Model: "gemini-pro-test"}},
	}

	tests := []struct {
		name      string
		opts      askOptions
		wantP     llm.Provider
		wantModel string
	}{
		{"config default", askOptions{}, llm.Anthropic, "claude-custom"},
		{"model flag", askOptions{model: "claude-other"}, llm.Anthropic, "claude-other"},
		{"provider flag uses its configured model", askOptions{provider: "google"}, llm.Google, "gemini-pro-test"},
		{"provider flag falls back to provider default", askOptions{provider: "deepseek"}, llm.DeepSeek, llm.DeepSeek.DefaultModel()},
		{"both flags", askOptions{provider: "meta", model: "llama-x"}, llm.Meta, "llama-x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, model, err := resolveTarget(cfg, tt.opts)
			if err != nil {
				t.Fatalf("resolveTarget: %v", err)
			}
			if p != tt.wantP || model != tt.wantModel {
				t.Errorf("got %s/%s, want %s/%s", p, model, tt.wantP, tt.wantModel)
			}
		})
	}
}
