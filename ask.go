package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-ask/internal/apperr"
	"go-ask/internal/attach"
	"go-ask/internal/llm"
)

// askOptions are the command-line settings of one invocation. Zero values
// and unset flags fall back to the config.
type askOptions struct {
	provider    string
	model       string
	system      string
	temperature float64
	maxTokens   int
	files       []string
	format      string
	save        bool
	outputDir   string
	timeout     time.Duration
	verbose     bool
	debug       bool
	dryRun      bool
	colorize    bool

	temperatureSet bool
	maxTokensSet   bool
}

// readPrompt joins the prompt arguments with piped stdin, if any.
func readPrompt(args []string, stdin io.Reader) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", apperr.Wrap(err, apperr.KindInput, "read stdin")
		}
		if piped := strings.TrimSpace(string(data)); piped != "" {
			if prompt == "" {
				prompt = piped
			} else {
				prompt += "\n\n" + piped
			}
		}
	}
	if prompt == "" {
		return "", apperr.New(apperr.KindInput, "no prompt given: pass it as arguments or on stdin")
	}
	return prompt, nil
}

// resolveTarget picks the provider and model from flags, then config.
func resolveTarget(cfg *Config, opts askOptions) (llm.Provider, string, error) {
	if opts.provider != "" {
		p, err := llm.ParseProvider(opts.provider)
		if err != nil {
			return 0, "", apperr.Wrap(err, apperr.KindConfig, "invalid --provider")
		}
		if opts.model != "" {
			return p, opts.model, nil
		}
		return p, cfg.ModelFor(p), nil
	}

	p, _, err := cfg.DefaultTarget()
	if err != nil {
		return 0, "", err
	}
	if opts.model != "" {
		return p, opts.model, nil
	}
	return p, cfg.ModelFor(p), nil
}

// buildRequest assembles the provider request, inlining text attachments and
// encoding images.
func buildRequest(cfg *Config, opts askOptions, p llm.Provider, model, prompt string) (llm.Request, []string, error) {
	req := llm.Request{
		Provider:    p,
		Model:       model,
		System:      cfg.System,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Flags:       llm.Flags{Save: opts.save, Verbose: opts.verbose, Debug: opts.debug},
	}
	if opts.system != "" {
		req.System = opts.system
	}
	if opts.temperatureSet {
		req.Temperature = opts.temperature
	}
	if opts.maxTokensSet {
		req.MaxTokens = opts.maxTokens
	}

	set, err := attach.Load(opts.files, p.SupportsImages())
	if err != nil {
		return llm.Request{}, nil, err
	}

	var names []string
	for _, f := range set.Text {
		names = append(names, f.Name)
	}
	req.Prompt = attach.InlineText(prompt, set.Text)

	for _, img := range set.Images {
		req.Images = append(req.Images, llm.Image{MIMEType: img.MIMEType, Data: img.Base64()})
		names = append(names, img.Name)
	}

	if err := req.Validate(); err != nil {
		return llm.Request{}, nil, apperr.Wrap(err, apperr.KindInput, "invalid request")
	}
	return req, names, nil
}

// runAsk performs one invocation: build, send, render, then save and record.
func runAsk(ctx context.Context, cfg *Config, opts askOptions, args []string, stdin io.Reader, stdout io.Writer) error {
	format, err := ParseFormat(firstNonEmpty(opts.format, cfg.Format))
	if err != nil {
		return err
	}
	prompt, err := readPrompt(args, stdin)
	if err != nil {
		return err
	}
	p, model, err := resolveTarget(cfg, opts)
	if err != nil {
		return err
	}
	req, attachments, err := buildRequest(cfg, opts, p, model, prompt)
	if err != nil {
		return err
	}

	if opts.dryRun {
		body, err := llm.BuildRequest(req)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInput, "build request")
		}
		_, err = fmt.Fprintf(stdout, "%s\n", body)
		return err
	}

	apiKey := cfg.APIKey(p)
	if apiKey == "" {
		return apperr.Newf(apperr.KindConfig, "missing API key for %s: set %s or providers.%s.api_key",
			p, strings.Join(p.KeyEnv(), " or "), p)
	}

	timeout := cfg.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}
	client, err := llm.NewClient(p, apiKey, model, llm.WithBaseURL(cfg.BaseURL(p)), llm.WithTimeout(timeout))
	if err != nil {
		return apperr.Wrap(err, apperr.KindConfig, "create client")
	}

	logrus.Infof("Sending prompt to %s (%s)", p, model)
	answer, err := client.Generate(ctx, req)
	if err != nil {
		return classify(err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Provider:    p.String(),
		Model:       model,
		Prompt:      req.Prompt,
		Answer:      answer.Text,
		Attachments: attachments,
	}
	if answer.HasUsage {
		usage := answer.Usage
		rec.Usage = &usage
		logrus.Infof("Tokens: %d prompt, %d completion", usage.PromptTokens, usage.CompletionTokens)
	}

	if err := Render(stdout, format, rec, opts.colorize && format == FormatText); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.save {
		path, err := SaveOutput(firstNonEmpty(opts.outputDir, cfg.OutputDir), rec, format)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInput, "save output")
		}
		logrus.Infof("Saved to %s", path)
	}

	if cfg.History.Enabled && cfg.History.DatabaseURL != "" {
		if err := recordHistory(ctx, cfg.History.DatabaseURL, rec); err != nil {
			logrus.Warnf("History not recorded: %v", err)
		}
	}
	return nil
}

func recordHistory(ctx context.Context, databaseURL string, rec Record) error {
	store, err := NewHistoryStore(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, rec, NewEmbedder().Embed(rec.Prompt))
}

// classify maps client errors onto the invocation error kinds. A non-2xx
// status is a transport failure like a timeout; an error object in a
// successful body is an API error.
func classify(err error) error {
	var transportErr *llm.TransportError
	var apiErr *llm.APIError
	switch {
	case errors.As(err, &transportErr):
		return apperr.Wrap(err, apperr.KindTransport, "transport error")
	case errors.As(err, &apiErr) && apiErr.HTTPFailure():
		return apperr.Wrap(err, apperr.KindTransport, "request failed")
	case errors.As(err, &apiErr):
		return apperr.Wrap(err, apperr.KindAPI, "provider returned an error")
	case errors.Is(err, llm.ErrUnexpectedResponse):
		return apperr.Wrap(err, apperr.KindParse, "could not read the provider response")
	case errors.Is(err, llm.ErrUnknownProvider):
		return apperr.Wrap(err, apperr.KindConfig, "unsupported provider")
	default:
		return err
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
