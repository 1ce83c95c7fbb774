package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go-ask/internal/apperr"
)

func executeRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootDryRun(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "default_model: anthropic\nmax_tokens: 256\n")

	out, err := executeRoot(t, "piped context", "--config", path, "--no-color", "--dry-run", "--system", "be brief", "Explain")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("dry run output is not JSON: %v\n%s", err, out)
	}
	if body["system"] != "be brief" || body["max_tokens"] != float64(256) {
		t.Errorf("unexpected body: %v", body)
	}
	msg := body["messages"].([]any)[0].(map[string]any)
	content := msg["content"].([]any)[0].(map[string]any)
	if content["text"] != "Explain\n\npiped context" {
		t.Errorf("prompt = %v", content["text"])
	}
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "default_model: openai\ntemperature: 0.9\n")

	out, err := executeRoot(t, "", "--config", path, "--dry-run", "-p", "deepseek", "-m", "deepseek-reasoner", "-t", "0", "hi")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("dry run output is not JSON: %v", err)
	}
	if body["model"] != "deepseek-reasoner" || body["temperature"] != float64(0) {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRootErrors(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "default_model: openai\n")

	_, err := executeRoot(t, "", "--config", path)
	if apperr.ExitCode(err) != 3 {
		t.Errorf("no prompt: exit code %d (%v), want 3", apperr.ExitCode(err), err)
	}

	_, err = executeRoot(t, "", "--config", path, "-p", "groq", "hi")
	if apperr.ExitCode(err) != 2 {
		t.Errorf("unknown provider: exit code %d (%v), want 2", apperr.ExitCode(err), err)
	}

	_, err = executeRoot(t, "", "--config", path, "history", "list")
	if apperr.ExitCode(err) != 2 {
		t.Errorf("history without database: exit code %d (%v), want 2", apperr.ExitCode(err), err)
	}
}

func TestHistoryRejectsNonPositiveLimits(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "postgres://127.0.0.1:1/never-dialed")
	path := writeConfig(t, "default_model: openai\n")

	tests := [][]string{
		{"history", "list", "-n", "-1"},
		{"history", "list", "--limit", "0"},
		{"history", "search", "-k", "0", "goroutines"},
		{"history", "search", "--top", "-5", "goroutines"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := executeRoot(t, "", append([]string{"--config", path}, args...)...)
			if apperr.KindOf(err) != apperr.KindInput {
				t.Errorf("got %v, want input error", err)
			}
			if apperr.ExitCode(err) != 3 {
				t.Errorf("exit code = %d, want 3", apperr.ExitCode(err))
			}
		})
	}
}

func TestProvidersCommand(t *testing.T) {
	isolateEnv(t)
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(env, "")
	}
	t.Setenv("MISTRAL_API_KEY", "m-key")
	path := writeConfig(t, "default_model: google\n")

	out, err := executeRoot(t, "", "--config", path, "--no-color", "providers")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"PROVIDER", "openai", "anthropic", "google *", "mistral", "deepseek", "meta"} {
		if !strings.Contains(out, want) {
			t.Errorf("providers output missing %q:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "mistral") && !strings.Contains(line, "set") {
			t.Errorf("mistral key should be reported as set: %q", line)
		}
		if strings.HasPrefix(line, "openai") && !strings.Contains(line, "missing") {
			t.Errorf("openai key should be reported as missing: %q", line)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("a  b\n\tc", 10); got != "a b c" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("héllo world", 5); got != "héllo…" {
		t.Errorf("truncate = %q", got)
	}
}

func TestIsPiped(t *testing.T) {
	if isPiped(nil) {
		t.Error("nil reader is not piped")
	}
	if !isPiped(strings.NewReader("x")) {
		t.Error("in-memory readers count as piped")
	}
}
