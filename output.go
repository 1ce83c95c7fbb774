package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"go-ask/internal/apperr"
	"go-ask/internal/llm"
)

// Format is an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat resolves a format name. "md" and "yml" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", apperr.Newf(apperr.KindConfig, "unknown output format %q (want text, markdown, json or yaml)", s)
	}
}

// Ext returns the file extension used when saving f.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// Record is one completed exchange.
type Record struct {
	ID          string     `json:"id" yaml:"id"`
	Timestamp   time.Time  `json:"timestamp" yaml:"timestamp"`
	Provider    string     `json:"provider" yaml:"provider"`
	Model       string     `json:"model" yaml:"model"`
	Prompt      string     `json:"prompt" yaml:"prompt"`
	Answer      string     `json:"answer" yaml:"answer"`
	Usage       *llm.Usage `json:"usage,omitempty" yaml:"usage,omitempty"`
	Attachments []string   `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Render writes rec to w in format f. colorize only affects text output.
func Render(w io.Writer, f Format, rec Record, colorize bool) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		return renderMarkdown(w, rec)
	default:
		if colorize {
			return renderHighlighted(w, rec.Answer)
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(rec.Answer, "\n"))
		return err
	}
}

func renderMarkdown(w io.Writer, rec Record) error {
	var sb strings.Builder
	sb.WriteString("# Prompt\n\n")
	sb.WriteString(strings.TrimSpace(rec.Prompt))
	sb.WriteString("\n\n## Answer\n\n")
	sb.WriteString(strings.TrimSpace(rec.Answer))
	sb.WriteString("\n\n---\n\n")
	sb.WriteString("| Provider | Model | Prompt tokens | Completion tokens |\n")
	sb.WriteString("|---|---|---|---|\n")
	prompt, completion := "-", "-"
	if rec.Usage != nil {
		prompt = fmt.Sprint(rec.Usage.PromptTokens)
		completion = fmt.Sprint(rec.Usage.CompletionTokens)
	}
	fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", rec.Provider, rec.Model, prompt, completion)
	if len(rec.Attachments) > 0 {
		fmt.Fprintf(&sb, "\nAttachments: %s\n", strings.Join(rec.Attachments, ", "))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// renderHighlighted prints text with fenced code blocks and inline code colored.
func renderHighlighted(w io.Writer, text string) error {
	white := color.New(color.FgWhite)
	codeBlockColor := color.New(color.FgBlue)
	inlineCodeColor := color.New(color.FgYellow)

	inCodeBlock := false
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			codeBlockColor.Fprintln(w, line)
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			codeBlockColor.Fprintln(w, line)
			continue
		}

		// odd segments sit between backticks
		for i, seg := range strings.Split(line, "`") {
			if i > 0 {
				inlineCodeColor.Fprint(w, "`")
			}
			if i%2 == 1 {
				inlineCodeColor.Fprint(w, seg)
			} else {
				white.Fprint(w, seg)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputFileName returns <provider>-<model>-<YYYYMMDD-HHMMSS>-<id8>.<ext>.
func OutputFileName(rec Record, f Format) string {
	model := strings.Trim(unsafeNameChars.ReplaceAllString(rec.Model, "_"), "_")
	if model == "" {
		model = "model"
	}
	id := strings.ReplaceAll(rec.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s-%s.%s", rec.Provider, model, rec.Timestamp.Format("20060102-150405"), id, f.Ext())
}

// SaveOutput renders rec without color into dir and returns the file path.
func SaveOutput(dir string, rec Record, f Format) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(dir, OutputFileName(rec, f))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if err := Render(file, f, rec, false); err != nil {
		file.Close()
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close output file: %w", err)
	}
	return path, nil
}
