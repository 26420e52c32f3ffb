// docsync — multi-language documentation tree reconciliation with AI translation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MurphyLo/Document-Synchronizer/config"
	"github.com/MurphyLo/Document-Synchronizer/docscan"
	"github.com/MurphyLo/Document-Synchronizer/i18n"
	"github.com/MurphyLo/Document-Synchronizer/langmeta"
	"github.com/MurphyLo/Document-Synchronizer/ledger"
	"github.com/MurphyLo/Document-Synchronizer/plan"
	"github.com/MurphyLo/Document-Synchronizer/report"
	docsync "github.com/MurphyLo/Document-Synchronizer/sync"
	"github.com/MurphyLo/Document-Synchronizer/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	basePath    string
	primaryLang string
	langList    string
	verbose     bool
)

// providerFlags are shared by the commands that call the AI provider.
type providerFlags struct {
	provider      string
	model         string
	apiKey        string
	baseURL       string
	proxy         string
	fingerprint   string
	ledgerBackend string
	ledgerPath    string
	maxConcurrent int
	maxRetries    int
	requestDelay  time.Duration
	timeout       time.Duration
	noVerify      bool
}

// newProviderFlags seeds the sentinels that distinguish "flag not given"
// from a deliberate zero (a --max-retries of 0 disables retries).
func newProviderFlags() *providerFlags {
	return &providerFlags{maxRetries: -1}
}

func (pf *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.provider, "provider", "", "AI provider: google, groq, ollama, custom-openai")
	cmd.Flags().StringVar(&pf.model, "model", "", "Model name")
	cmd.Flags().StringVar(&pf.apiKey, "api-key", "", "API key (or DOCSYNC_API_KEY env var)")
	cmd.Flags().StringVar(&pf.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().StringVar(&pf.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&pf.maxConcurrent, "max-concurrent", 0, "Maximum concurrent translation requests")
	cmd.Flags().IntVar(&pf.maxRetries, "max-retries", -1, "Maximum retries on transient errors (0 disables retries)")
	cmd.Flags().DurationVar(&pf.requestDelay, "request-delay", 0, "Delay between task dispatches")
	cmd.Flags().DurationVar(&pf.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().BoolVar(&pf.noVerify, "no-verify", false, "Skip structural verification of generated documents")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"google\tGoogle AI (Gemini), API key required",
			"groq\tGroq, API key required",
			"ollama\tOllama local server",
			"custom-openai\tCustom OpenAI-compatible endpoint",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

func registerLedgerFlags(cmd *cobra.Command, pf *providerFlags) {
	cmd.Flags().StringVar(&pf.fingerprint, "fingerprint", "", "Fingerprint mode: byte-exact or normalize-whitespace")
	cmd.Flags().StringVar(&pf.ledgerBackend, "ledger", "", "Ledger backend: file or sqlite")
	cmd.Flags().StringVar(&pf.ledgerPath, "ledger-path", "", "Path to the ledger file")
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docsync",
		Short: "Keep translated documentation trees in sync with a primary language",
		Long: `docsync — multi-language documentation tree reconciliation.

One directory per language holds a parallel Markdown tree. docsync scans the
primary tree and every target tree, classifies each document as missing,
stale, or in sync using content fingerprints and a persisted sync ledger,
and generates the missing or outdated translations with an AI provider.

Commands:
  status      Show per-language synchronization statistics
  plan        Build the action plan and write it to a file
  apply       Execute a previously written plan file
  sync        Plan and execute in one step

AI Providers:
  google         Google AI (Gemini) — API key
  groq           Groq — API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags — inherited by all subcommands
	root.PersistentFlags().StringVar(&basePath, "path", ".", "Documentation root (one subdirectory per language)")
	root.PersistentFlags().StringVar(&primaryLang, "primary", "", "Primary language (default en)")
	root.PersistentFlags().StringVar(&langList, "langs", "", "Target languages (comma-separated, default: auto-detect)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	root.AddCommand(
		newStatusCmd(),
		newPlanCmd(),
		newApplyCmd(),
		newSyncCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Shared wiring
// ---------------------------------------------------------------------------

// buildConfig loads docsync.yaml and overlays the command-line flags.
func buildConfig(pf *providerFlags) (*config.Config, error) {
	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, err
	}
	if primaryLang != "" {
		cfg.Primary = primaryLang
	}
	if langList != "" {
		cfg.Languages = splitLangs(langList)
	}
	cfg.Verbose = verbose

	if pf != nil {
		if pf.provider != "" {
			cfg.Provider = pf.provider
		}
		if pf.model != "" {
			cfg.Model = pf.model
		}
		if pf.apiKey != "" {
			cfg.APIKey = pf.apiKey
		}
		if pf.baseURL != "" {
			cfg.BaseURL = pf.baseURL
		}
		if pf.proxy != "" {
			cfg.Proxy = pf.proxy
		}
		if pf.fingerprint != "" {
			cfg.Fingerprint = docscanMode(pf.fingerprint)
		}
		if pf.ledgerBackend != "" {
			cfg.Ledger.Backend = pf.ledgerBackend
			cfg.Ledger.Path = ""
		}
		if pf.ledgerPath != "" {
			cfg.Ledger.Path = pf.ledgerPath
		}
		if pf.maxConcurrent > 0 {
			cfg.MaxConcurrent = pf.maxConcurrent
		}
		if pf.maxRetries >= 0 {
			cfg.MaxRetries = pf.maxRetries
		}
		if pf.requestDelay > 0 {
			cfg.RequestDelay = config.Duration(pf.requestDelay)
		}
		if pf.timeout > 0 {
			cfg.Timeout = config.Duration(pf.timeout)
		}
		if pf.noVerify {
			cfg.Verify = false
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitLangs parses "ru,de, zh" into a clean slice.
func splitLangs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if lang := strings.TrimSpace(part); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}

func docscanMode(s string) docscan.FingerprintMode {
	return docscan.FingerprintMode(strings.ToLower(strings.TrimSpace(s)))
}

// buildTranslator resolves the provider configuration into a translator.
func buildTranslator(cfg *config.Config) (translate.Translator, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("no provider specified; use --provider to choose an AI translation service")
	}

	defaults := translate.DefaultProviders()
	prov, ok := defaults[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (expected google, groq, ollama, or custom-openai)", cfg.Provider)
	}

	if cfg.BaseURL != "" {
		prov.BaseURL = cfg.BaseURL
	}
	prov.APIKey = cfg.APIKey
	prov.Model = cfg.Model
	prov.Proxy = cfg.Proxy
	if cfg.Timeout > 0 {
		prov.Timeout = cfg.Timeout.Std()
	}

	if prov.Model == "" {
		return nil, fmt.Errorf("--model is required for provider %q", prov.ID)
	}
	if prov.BaseURL == "" {
		return nil, fmt.Errorf("--base-url is required for provider %q", prov.ID)
	}
	needsKey := prov.ID == translate.ProviderGoogle || prov.ID == translate.ProviderGroq
	if needsKey && prov.APIKey == "" {
		return nil, fmt.Errorf("provider %q requires an API key (use --api-key or DOCSYNC_API_KEY)", prov.ID)
	}

	t := translate.NewHTTPTranslator(prov)
	t.Verbose = cfg.Verbose
	return t, nil
}

// newEngine opens the ledger and wires the console callbacks.
func newEngine(cfg *config.Config, translator translate.Translator) (*docsync.Engine, ledger.Store, error) {
	store, err := docsync.OpenStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}
	eng := docsync.New(cfg, store, translator)
	eng.OnLog = logInfo
	eng.OnError = logWarning
	eng.OnProgress = func(done, total int) {
		logInfo("progress: %d/%d", done, total)
	}
	return eng, store, nil
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("interrupted, finishing in-flight work...")
		cancel()
	}()
	return ctx, cancel
}

func printReport(rep *report.Report) {
	fmt.Print(rep.String())
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docsync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: per-language synchronization stats)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	pf := newProviderFlags()
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-language synchronization statistics",
		Long: `Scan all documentation trees and report, per target language, how many
documents are missing, stale, or in sync. Also lists ledger records whose
primary document no longer exists. Does not modify any files.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus(pf)
		},
	}
	registerLedgerFlags(cmd, pf)
	return cmd
}

func runStatus(pf *providerFlags) {
	cfg, err := buildConfig(pf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	eng, store, err := newEngine(cfg, nil)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	labels := make([]string, 0, len(cfg.Targets()))
	for _, lang := range cfg.Targets() {
		labels = append(labels, langmeta.Label(lang))
	}
	logInfo("primary %s, targets: %s", langmeta.Label(cfg.Primary), strings.Join(labels, ", "))

	logInfo(i18n.T("Scanning documentation trees..."))
	results, _, err := eng.Classify(ctx)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	p := plan.Build(cfg.Primary, cfg.Targets(), results, plan.Contents{})
	printReport(report.Aggregate(p, nil))

	orphans, err := eng.Orphans(ctx)
	if err == nil && len(orphans) > 0 {
		logWarning("%d ledger record(s) have no primary document:", len(orphans))
		for _, key := range orphans {
			fmt.Fprintf(os.Stderr, "  %s\n", key)
		}
	}

	pending := len(p.Pending())
	if pending == 0 {
		logSuccess(i18n.T("Nothing to do, all documents are in sync"))
	} else {
		logInfo(i18n.N("%d document pending", "%d documents pending", pending), pending)
	}
}

// ---------------------------------------------------------------------------
// plan (checker half of the two-process topology)
// ---------------------------------------------------------------------------

func newPlanCmd() *cobra.Command {
	pf := newProviderFlags()
	var (
		outPath string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build the action plan and write it to a file",
		Long: `Scan, classify, and build the deterministic action plan without executing
it. The plan file carries everything the apply command needs, so the two can
run as separate processes.

Examples:
  # Write the plan for later execution
  docsync plan --out docsync.plan.json

  # Preview only
  docsync plan --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runPlan(pf, outPath, dryRun)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "docsync.plan.json", "Plan file to write")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan summary without writing the plan file")
	registerLedgerFlags(cmd, pf)
	return cmd
}

func runPlan(pf *providerFlags, outPath string, dryRun bool) {
	cfg, err := buildConfig(pf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	eng, store, err := newEngine(cfg, nil)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	logInfo(i18n.T("Scanning documentation trees..."))
	p, err := eng.Plan(ctx)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	printReport(report.Aggregate(p, nil))

	if dryRun {
		logInfo(i18n.T("Dry run: no files written"))
		return
	}
	if err := p.WriteFile(outPath); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logSuccess(i18n.T("Plan written to %s"), outPath)
}

// ---------------------------------------------------------------------------
// apply (translator half of the two-process topology)
// ---------------------------------------------------------------------------

func newApplyCmd() *cobra.Command {
	pf := newProviderFlags()
	var inPath string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute a previously written plan file",
		Long: `Execute the actions in a plan file produced by the plan command. Documents
the plan marks in sync are skipped without any provider call.

Examples:
  docsync apply --in docsync.plan.json --provider google --model gemini-2.5-flash`,
		Run: func(cmd *cobra.Command, args []string) {
			runApply(pf, inPath)
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "docsync.plan.json", "Plan file to execute")
	pf.register(cmd)
	registerLedgerFlags(cmd, pf)
	return cmd
}

func runApply(pf *providerFlags, inPath string) {
	cfg, err := buildConfig(pf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	p, err := plan.ReadFile(inPath)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if p.Primary != cfg.Primary {
		logWarning("plan primary %q differs from configured %q, using the plan's", p.Primary, cfg.Primary)
	}

	translator, err := buildTranslator(cfg)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	eng, store, err := newEngine(cfg, translator)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	logInfo(i18n.T("Executing %d actions with concurrency %d"), len(p.Pending()), cfg.MaxConcurrent)
	rep, err := eng.Execute(ctx, p)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	finish(rep)
}

// ---------------------------------------------------------------------------
// sync (single-process topology: plan + execute)
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	pf := newProviderFlags()
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Plan and execute in one step",
		Long: `Scan, classify, plan, and execute in a single process.

Examples:
  # Synchronize all detected languages
  docsync sync --provider google --model gemini-2.5-flash

  # Specific languages, higher concurrency
  docsync sync --provider groq --model llama-3.3-70b-versatile --langs ru,de --max-concurrent 5

  # Show what would be done
  docsync sync --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runSync(pf, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and plan without calling the provider or writing files")
	pf.register(cmd)
	registerLedgerFlags(cmd, pf)
	return cmd
}

func runSync(pf *providerFlags, dryRun bool) {
	cfg, err := buildConfig(pf)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	var translator translate.Translator
	if !dryRun {
		translator, err = buildTranslator(cfg)
		if err != nil {
			logError("%v", err)
			os.Exit(1)
		}
	}

	eng, store, err := newEngine(cfg, translator)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	logInfo(i18n.T("Scanning documentation trees..."))
	rep, err := eng.Run(ctx, dryRun)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	finish(rep)
}

// finish prints the report and exits non-zero when any action failed.
func finish(rep *report.Report) {
	printReport(rep)
	s := rep.Summary
	if !rep.OK() {
		logError(i18n.T("Done: %d created, %d updated, %d skipped, %d failed"),
			s.Created, s.Updated, s.Skipped, s.Failed)
		os.Exit(1)
	}
	logSuccess(i18n.T("Done: %d created, %d updated, %d skipped, %d failed"),
		s.Created, s.Updated, s.Skipped, s.Failed)
}
