package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tracediff/internal/config"
	"tracediff/internal/logging"
	"tracediff/internal/model"
	"tracediff/internal/trace"
	"tracediff/internal/tui"
	"tracediff/internal/watch"
	"tracediff/internal/web"
)

const (
	exitDiffers = 1
	exitError   = 2
)

// errDiffers is returned when --fail-on-diff is set and the traces diverge.
var errDiffers = errors.New("traces differ")

type options struct {
	json       bool
	report     bool
	unified    bool
	web        bool
	watch      bool
	output     string
	verbose    bool
	failOnDiff bool
	cfg        config.Config
	left       string
	right      string
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tracediff [options] <left-trace> <right-trace>\n\n")
		fmt.Fprintf(os.Stderr, "tracediff compares two instruction execution traces (reference model on the\n")
		fmt.Fprintf(os.Stderr, "left, design under test on the right) and shows where they diverge.\n")
		fmt.Fprintf(os.Stderr, "Long runs of a repeating loop are collapsed before the comparison.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tracediff golden.log dut.log                # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  tracediff --report golden.log dut.log.xz    # Print report to stdout\n")
		fmt.Fprintf(os.Stderr, "  tracediff -r -o r.txt golden.log dut.log    # Save report to file\n")
		fmt.Fprintf(os.Stderr, "  tracediff -u golden.log dut.log > d.patch   # Unified diff\n")
		fmt.Fprintf(os.Stderr, "  tracediff --json golden.log dut.log         # Output report as JSON\n")
		fmt.Fprintf(os.Stderr, "  tracediff --web --watch golden.log dut.log  # Serve and refresh on change\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output the full report as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print the text report (default when stdout is not a terminal)")
	unifiedFlag := pflag.BoolP("unified", "u", false, "Output the hunks as a unified diff")
	outputFlag := pflag.StringP("output", "o", "", "Write the report to the specified file instead of stdout")
	webFlag := pflag.BoolP("web", "w", false, "Start the HTTP API (see --addr)")
	addrFlag := pflag.String("addr", "", "Listen address for --web (default from config, localhost:8080)")
	watchFlag := pflag.Bool("watch", false, "Re-run the comparison whenever a trace file changes")
	dialectFlag := pflag.String("dialect", "", "Trace dialect: auto, plain or spike")
	configFlag := pflag.StringP("config", "c", "", "YAML configuration file")
	contextFlag := pflag.Int("context", 0, "Matching entries shown around each change")
	minPatternFlag := pflag.Int("min-pattern", 0, "Shortest loop body considered for suppression")
	minRepsFlag := pflag.Int("min-reps", 0, "Repetitions before a loop is suppressed")
	maxCellsFlag := pflag.Int64("max-cells", 0, "Largest alignment table allowed")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Show line numbers in the report and log debug output")
	failFlag := pflag.Bool("fail-on-diff", false, "Exit with status 1 when the traces differ")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("tracediff version %s\n", model.Version)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	// Flags override the file and environment.
	flags := pflag.CommandLine
	if flags.Changed("addr") {
		cfg.Web.Addr = *addrFlag
	}
	if flags.Changed("dialect") {
		cfg.Dialect = *dialectFlag
	}
	if flags.Changed("context") {
		cfg.ContextSize = *contextFlag
	}
	if flags.Changed("min-pattern") {
		cfg.Loop.MinPatternLength = *minPatternFlag
	}
	if flags.Changed("min-reps") {
		cfg.Loop.MinRepetitions = *minRepsFlag
	}
	if flags.Changed("max-cells") {
		cfg.MaxCells = *maxCellsFlag
	}
	if *verboseFlag {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid options: %v\n", err)
		os.Exit(exitError)
	}

	opts := options{
		json:       *jsonFlag,
		report:     *reportFlag,
		unified:    *unifiedFlag,
		web:        *webFlag,
		watch:      *watchFlag,
		output:     *outputFlag,
		verbose:    *verboseFlag,
		failOnDiff: *failFlag,
		cfg:        cfg,
	}

	args := pflag.Args()
	switch {
	case len(args) == 2:
		opts.left, opts.right = args[0], args[1]
	case len(args) == 0 && opts.web && !opts.watch:
		// Upload-only server
	default:
		pflag.Usage()
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, errDiffers) {
			os.Exit(exitDiffers)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}

func run(ctx context.Context, opts options) error {
	tuiMode := !opts.json && !opts.report && !opts.unified && !opts.web &&
		opts.output == "" && isatty.IsTerminal(os.Stdout.Fd())

	logger, err := newLogger(opts.cfg, tuiMode)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	comparator := trace.NewComparator(
		trace.WithLogger(logger),
		trace.WithLoopDetection(opts.cfg.Loop.MinPatternLength, opts.cfg.Loop.MinRepetitions),
		trace.WithContextSize(opts.cfg.ContextSize),
		trace.WithMaxCells(opts.cfg.MaxCells),
	)
	reportOpts := trace.ReportOptions{
		MaxPatterns: opts.cfg.Report.MaxPatterns,
		MaxHunks:    opts.cfg.Report.MaxHunks,
		Verbose:     opts.verbose,
	}
	dialect := resolveDialect(opts.cfg.Dialect)

	switch {
	case opts.web:
		return runWebMode(ctx, opts, comparator, dialect, reportOpts, logger)
	case tuiMode:
		return runTuiMode(ctx, opts, comparator, dialect, reportOpts, logger)
	}

	write := func(r model.Report) error {
		return writeOutput(opts.output, func(w io.Writer) error {
			switch {
			case opts.json:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			case opts.unified:
				return trace.WriteUnified(w, r)
			default:
				_, err := io.WriteString(w, trace.GenerateReport(r, reportOpts))
				return err
			}
		})
	}

	report, err := comparator.CompareFiles(ctx, opts.left, opts.right, dialect)
	if err != nil {
		return err
	}
	if err := write(report); err != nil {
		return err
	}
	if opts.output != "" {
		fmt.Fprintf(os.Stderr, "Report saved to %s\n", opts.output)
	}

	if opts.watch {
		err := watchFiles(ctx, opts, logger, func() {
			report, err := comparator.CompareFiles(ctx, opts.left, opts.right, dialect)
			if err != nil {
				logger.Error("Comparison failed", zap.Error(err))
				return
			}
			if err := write(report); err != nil {
				logger.Error("Writing report failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	if opts.failOnDiff && !report.Identical() {
		return errDiffers
	}
	return nil
}

func runWebMode(ctx context.Context, opts options, comparator *trace.Comparator, dialect trace.Dialect, reportOpts trace.ReportOptions, logger *zap.Logger) error {
	server := web.NewServer(web.Options{
		LeftPath:   opts.left,
		RightPath:  opts.right,
		Dialect:    dialect,
		Comparator: comparator,
		ReportOpts: reportOpts,
		Logger:     logger,
	})

	if opts.watch {
		err := watchFiles(ctx, opts, logger, func() {
			report, err := comparator.CompareFiles(ctx, opts.left, opts.right, dialect)
			if err != nil {
				logger.Error("Comparison failed", zap.Error(err))
				server.Invalidate()
				return
			}
			server.SetReport(report)
		})
		if err != nil {
			return err
		}
	}

	fmt.Printf("Starting tracediff web server at http://%s\n", opts.cfg.Web.Addr)
	return server.Run(ctx, opts.cfg.Web.Addr)
}

func runTuiMode(ctx context.Context, opts options, comparator *trace.Comparator, dialect trace.Dialect, reportOpts trace.ReportOptions, logger *zap.Logger) error {
	src := tui.Source{
		LeftPath:   opts.left,
		RightPath:  opts.right,
		Dialect:    dialect,
		Comparator: comparator,
		ReportOpts: reportOpts,
		SavePath:   opts.output,
		Logger:     logger,
		Context:    ctx,
	}
	m := tui.InitialModel(src, web.HelpText())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if opts.watch {
		err := watchFiles(ctx, opts, logger, func() {
			p.Send(tui.InitCompareCmd(src)())
		})
		if err != nil {
			return err
		}
	}

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal UI: %w", err)
	}
	if fm, ok := final.(tui.AppModel); ok && opts.failOnDiff && !fm.Loading && fm.Err == nil && !fm.Report.Identical() {
		return errDiffers
	}
	return nil
}

// watchFiles runs rerun after each debounced change to either trace until
// ctx is done.
func watchFiles(ctx context.Context, opts options, logger *zap.Logger, rerun func()) error {
	w, err := watch.New([]string{opts.left, opts.right}, func(changed []string) {
		logger.Info("Trace changed, comparing again", zap.Strings("paths", changed))
		rerun()
	}, watch.Options{Logger: logger})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}

// newLogger logs to stderr, except in the TUI where the alternate screen owns
// the terminal: there it logs to TRACEDIFF_LOG_FILE or nowhere.
func newLogger(cfg config.Config, tuiMode bool) (*zap.Logger, error) {
	if tuiMode {
		if path := os.Getenv("TRACEDIFF_LOG_FILE"); path != "" {
			return logging.NewFile(path, cfg.Log.Level)
		}
		return zap.NewNop(), nil
	}
	return logging.New(cfg.Log.Level, cfg.Log.JSON)
}

// resolveDialect returns nil for "auto" so each file is sniffed.
func resolveDialect(name string) trace.Dialect {
	if name == "" || name == "auto" {
		return nil
	}
	return trace.DetectDialect(name)
}

func writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error writing report to %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
