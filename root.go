package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-ask/internal/apperr"
	"go-ask/internal/llm"
)

// newRootCmd wires the ask command and its subcommands. cfg is loaded before
// any command runs.
func newRootCmd() *cobra.Command {
	var (
		cfg        *Config
		opts       askOptions
		configPath string
		noColor    bool
	)

	rootCmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a prompt to an LLM provider from your terminal",
		Long: `ask sends a prompt, with optional file attachments, to one of several LLM
providers and prints the answer as text, markdown, JSON or YAML.

Providers: openai, anthropic, google, mistral, deepseek, meta

Examples:
  ask "What is a goroutine?"
  cat error.log | ask "What's wrong here?"
  ask -p anthropic -f main.go "Review this file"
  ask -p google -f diagram.png "Describe this diagram"
  ask -o json -s "Summarize RFC 2119"
  ask --dry-run -p gemini "hello"

Configuration:
  Config file: ~/.config/ask/config.yaml (or --config)
  Environment: OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, MISTRAL_API_KEY,
               DEEPSEEK_API_KEY, LLAMA_API_KEY, ASK_DEFAULT_MODEL, ASK_FORMAT`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = LoadConfig(configPath)
			if err != nil {
				return err
			}
			InitLogger(cfg.Log, opts.verbose, opts.debug)
			if cfg.File != "" {
				logrus.Debugf("Config loaded from %s", cfg.File)
			}
			if noColor {
				color.NoColor = true
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.temperatureSet = cmd.Flags().Changed("temperature")
			opts.maxTokensSet = cmd.Flags().Changed("max-tokens")
			opts.colorize = !color.NoColor && isTerminal(cmd.OutOrStdout())

			var stdin io.Reader
			if in := cmd.InOrStdin(); isPiped(in) {
				stdin = in
			}
			return runAsk(cmd.Context(), cfg, opts, args, stdin, cmd.OutOrStdout())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/ask/config.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log timing, token usage and saved file paths")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "log request and response bodies")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	f := rootCmd.Flags()
	f.StringVarP(&opts.provider, "provider", "p", "", "LLM provider (openai, anthropic, google, mistral, deepseek, meta)")
	f.StringVarP(&opts.model, "model", "m", "", "model to use (default from config or provider)")
	f.StringVar(&opts.system, "system", "", "system prompt")
	f.Float64VarP(&opts.temperature, "temperature", "t", 0.7, "sampling temperature (0.0-2.0)")
	f.IntVar(&opts.maxTokens, "max-tokens", 1024, "maximum output tokens")
	f.StringArrayVarP(&opts.files, "file", "f", nil, "attach a file (repeatable)")
	f.StringVarP(&opts.format, "format", "o", "", "output format: text, markdown, json, yaml")
	f.BoolVarP(&opts.save, "save", "s", false, "also save the output to a file")
	f.StringVar(&opts.outputDir, "output-dir", "", "directory for saved output")
	f.DurationVar(&opts.timeout, "timeout", 0, "request timeout (default 30s)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the request body without sending it")

	rootCmd.AddCommand(newProvidersCmd(&cfg), newHistoryCmd(&cfg))
	return rootCmd
}

// newProvidersCmd lists the supported providers and whether a key is configured.
func newProvidersCmd(cfg **Config) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers, default models and API key status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)
			defaultProvider, _, _ := (*cfg).DefaultTarget()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tKEY ENV\tKEY")
			for _, p := range llm.Providers() {
				name := p.String()
				if p == defaultProvider {
					name += " *"
				}
				status := red.Sprint("missing")
				if (*cfg).APIKey(p) != "" {
					status = green.Sprint("set")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, (*cfg).ModelFor(p), strings.Join(p.KeyEnv(), ", "), status)
			}
			return tw.Flush()
		},
	}
}

// newHistoryCmd groups the exchange history subcommands.
func newHistoryCmd(cfg **Config) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past exchanges stored in Postgres",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent exchanges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePositive("--limit", limit); err != nil {
				return err
			}
			store, err := openHistory(cmd, *cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.Count(cmd.Context())
			if err != nil {
				return apperr.Wrap(err, apperr.KindInternal, "history list")
			}
			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return apperr.Wrap(err, apperr.KindInternal, "history list")
			}
			color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "%d exchange(s) stored\n\n", count)
			for _, rec := range records {
				printHistoryEntry(cmd.OutOrStdout(), rec, -1)
			}
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of exchanges to show")

	var topK int
	searchCmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find past prompts similar to text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePositive("--top", topK); err != nil {
				return err
			}
			embedding := NewEmbedder().Embed(strings.Join(args, " "))
			if isZero(embedding) {
				return apperr.New(apperr.KindInput, "search text has no words to match")
			}

			store, err := openHistory(cmd, *cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.Search(cmd.Context(), embedding, topK)
			if err != nil {
				return apperr.Wrap(err, apperr.KindInternal, "history search")
			}
			for _, r := range results {
				printHistoryEntry(cmd.OutOrStdout(), r.Record, r.Similarity)
			}
			return nil
		},
	}
	searchCmd.Flags().IntVarP(&topK, "top", "k", 5, "number of results")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd, *cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return apperr.Wrap(err, apperr.KindInternal, "history clear")
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, clearCmd)
	return historyCmd
}

func requirePositive(flag string, n int) error {
	if n <= 0 {
		return apperr.Newf(apperr.KindInput, "%s must be positive, got %d", flag, n)
	}
	return nil
}

func openHistory(cmd *cobra.Command, cfg *Config) (*HistoryStore, error) {
	if cfg.History.DatabaseURL == "" {
		return nil, apperr.New(apperr.KindConfig, "history needs a database: set DATABASE_URL or history.database_url")
	}
	store, err := NewHistoryStore(cmd.Context(), cfg.History.DatabaseURL)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, "open history")
	}
	return store, nil
}

// printHistoryEntry prints one exchange. A negative similarity is omitted.
func printHistoryEntry(w io.Writer, rec Record, similarity float64) {
	green := color.New(color.FgGreen)
	magenta := color.New(color.FgMagenta, color.Bold)
	gray := color.New(color.FgHiBlack)

	header := fmt.Sprintf("%s  %s/%s", rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Provider, rec.Model)
	if similarity >= 0 {
		header += fmt.Sprintf("  (%.2f)", similarity)
	}
	gray.Fprintln(w, header)
	green.Fprintf(w, "You: %s\n", truncate(rec.Prompt, 200))
	magenta.Fprintf(w, "Bot: %s\n\n", truncate(rec.Answer, 400))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// isPiped reports whether r carries piped or redirected input. Readers that
// are not files, as used in tests, count as piped.
func isPiped(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeNamedPipe != 0 || info.Mode().IsRegular()
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
