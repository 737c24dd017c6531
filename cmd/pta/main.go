// Command pta runs the points-to analysis on programs described in YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/fatih/color"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/config"
	"github.com/BarrensZeppelin/pta/cs"
	"github.com/BarrensZeppelin/pta/ir"
	"github.com/BarrensZeppelin/pta/irload"
	"github.com/BarrensZeppelin/pta/report"
)

const (
	exitError = 1
	// The program or the options are malformed.
	exitInvalidInput = 2
	exitAborted      = 3
)

var (
	configPath string
	cpuprofile string
	outFile    string
	noColor    bool
	opts       = config.Default()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pta",
		Short: "Context-sensitive points-to analysis",
		Long: `pta computes points-to sets and a call graph for programs written in the
YAML program format, under a configurable context sensitivity policy.`,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "read options from a YAML `file`")
	flags.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log analysis progress")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&opts.NoPrelude, "no-prelude", false, "do not load the runtime library classes")
	flags.StringSliceVar(&opts.Entries, "entry", nil, "entry method `signature` (repeatable)")
	flags.StringSliceVar(&opts.Plugins, "plugins", opts.Plugins, "analysis plugins to enable")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze a program and report points-to sets and call edges",
		Example: `  pta analyze prog.yaml
  pta analyze -s 2-obj -o json prog.yaml lib.yaml
  pta analyze -o svg --out callgraph.svg prog.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
	analyzeCmd.Flags().StringVarP(&opts.Selector, "selector", "s", opts.Selector, "context selector (ci, k-call, k-obj, k-type, optionally +Nh)")
	analyzeCmd.Flags().StringVarP(&opts.Output, "output", "o", opts.Output, "output format (text, json, dot, svg, png)")
	analyzeCmd.Flags().StringVar(&outFile, "out", "", "write output to `file` instead of stdout")

	compareCmd := &cobra.Command{
		Use:   "compare [files...]",
		Short: "Analyze a program under several selectors and compare statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompare,
	}
	compareCmd.Flags().StringSliceVar(&opts.Compare, "selectors", opts.Compare, "context selectors to compare")

	rootCmd.AddCommand(analyzeCmd, compareCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		_ = teardown(nil, nil)
		fmt.Fprintln(os.Stderr, err)

		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

var profile *os.File

func setup(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		fileOpts, err := config.Load(configPath)
		if err != nil {
			return errWithCode(err, exitInvalidInput)
		}
		mergeFlags(cmd, &fileOpts)
		opts = fileOpts
	}
	if err := opts.Validate(); err != nil {
		return errWithCode(err, exitInvalidInput)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.WarnLevel)
	if opts.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if noColor {
		color.NoColor = true
	}

	if cpuprofile == "" {
		return nil
	}
	f, err := os.Create(cpuprofile)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	profile = f
	return nil
}

func teardown(*cobra.Command, []string) error {
	if profile == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := profile.Close()
	profile = nil
	return err
}

// mergeFlags copies the values of flags given on the command line over the
// options read from a file.
func mergeFlags(cmd *cobra.Command, fileOpts *config.Options) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("verbose") {
		fileOpts.Verbose = opts.Verbose
	}
	if changed("no-prelude") {
		fileOpts.NoPrelude = opts.NoPrelude
	}
	if changed("entry") {
		fileOpts.Entries = opts.Entries
	}
	if changed("plugins") {
		fileOpts.Plugins = opts.Plugins
	}
	if changed("selector") {
		fileOpts.Selector = opts.Selector
	}
	if changed("output") {
		fileOpts.Output = opts.Output
	}
	if changed("selectors") {
		fileOpts.Compare = opts.Compare
	}
}

func loadProgram(files []string) (*ir.Program, []*ir.Method, error) {
	sources := make([][]byte, len(files))
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		sources[i] = data
	}

	prog, err := irload.LoadProgramWithConfig(&irload.Config{NoPrelude: opts.NoPrelude}, sources...)
	if err != nil {
		return nil, nil, errWithCode(fmt.Errorf("loading program: %w", err), exitInvalidInput)
	}

	entries, err := opts.ResolveEntries(prog)
	if err != nil {
		return nil, nil, errWithCode(err, exitInvalidInput)
	}
	logrus.WithField("classes", len(prog.Classes())).Debug("Loaded program")
	return prog, entries, nil
}

// analyze runs the analysis with the given selector. A nil hier is replaced
// by a fresh hierarchy of prog.
func analyze(ctx context.Context, prog *ir.Program, hier ir.Hierarchy, entries []*ir.Method, sel cs.Selector) (*pta.Result, error) {
	res, err := pta.Analyze(ctx, pta.AnalysisConfig{
		Program:   prog,
		Hierarchy: hier,
		Selector:  sel,
		Entries:   entries,
		Plugins:   opts.NewPlugins(),
		Logger:    logrus.WithField("selector", sel.String()),
	})

	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, pta.ErrAborted):
		return nil, errWithCode(err, exitAborted)
	case errors.Is(err, ir.ErrMalformedIR), errors.Is(err, ir.ErrUnresolvedSignature):
		return nil, errWithCode(err, exitInvalidInput)
	default:
		return nil, err
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	prog, entries, err := loadProgram(args)
	if err != nil {
		return err
	}
	sel, _, err := opts.ParseSelectors()
	if err != nil {
		return errWithCode(err, exitInvalidInput)
	}

	res, err := analyze(cmd.Context(), prog, nil, entries, sel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch opts.Output {
	case config.JSON:
		return report.JSON(out, res)
	case config.DOT:
		_, err := out.Write(report.DOT(res))
		return err
	case config.SVG, config.PNG:
		return report.Render(out, report.DOT(res), opts.Output)
	default:
		return report.Text(out, res)
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	prog, entries, err := loadProgram(args)
	if err != nil {
		return err
	}
	_, selectors, err := opts.ParseSelectors()
	if err != nil {
		return errWithCode(err, exitInvalidInput)
	}

	stats, err := compare(cmd.Context(), prog, ir.NewClassHierarchy(prog), entries, selectors)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, sel := range selectors {
		if err := report.Stats(out, sel.String(), stats[i]); err != nil {
			return err
		}
	}
	return nil
}

// compare analyzes prog concurrently under every selector. The runs share
// hier and its dispatch caches.
func compare(ctx context.Context, prog *ir.Program, hier ir.Hierarchy, entries []*ir.Method, selectors []cs.Selector) ([]pta.Stats, error) {
	results := xsync.NewMap[string, pta.Stats]()
	g, ctx := errgroup.WithContext(ctx)
	for _, sel := range selectors {
		g.Go(func() error {
			start := time.Now()
			res, err := analyze(ctx, prog, hier, entries, sel)
			if err != nil {
				return fmt.Errorf("%s: %w", sel, err)
			}
			logrus.WithFields(logrus.Fields{
				"selector": sel.String(),
				"duration": time.Since(start),
			}).Debug("Finished run")
			results.Store(sel.String(), res.Stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := make([]pta.Stats, len(selectors))
	for i, sel := range selectors {
		stats[i], _ = results.Load(sel.String())
	}
	return stats, nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() error { return e.err }
