package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bjaus/xtraceback"
	"github.com/bjaus/xtraceback/internal/gopanic"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	highlighter xtraceback.Highlighter // nil = library default
	probe       xtraceback.Probe       // nil = library default
}

// Option configures newRootCmd.
type Option func(*options)

// WithHighlighter sets the highlighter for testing.
func WithHighlighter(h xtraceback.Highlighter) Option {
	return func(o *options) {
		o.highlighter = h
	}
}

// WithProbe sets the terminal probe for testing.
func WithProbe(p xtraceback.Probe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// createLogger creates a logger based on verbosity level. Without -v only
// warnings are shown.
func createLogger(w io.Writer, verbosity int) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: xtraceback.VerbosityToLevel(verbosity),
	}))
}

// exceptionFromDump converts a parsed crash report. Argument words become
// positional args named arg0..argN.
func exceptionFromDump(d *gopanic.Dump) xtraceback.Exception {
	frames := make([]xtraceback.Frame, len(d.Frames))
	for i, fr := range d.Frames {
		var args []xtraceback.Var
		for j, a := range fr.Args {
			args = append(args, xtraceback.Var{Name: fmt.Sprintf("arg%d", j), Value: a})
		}
		frames[i] = xtraceback.Frame{
			File:     fr.File,
			Line:     fr.Line,
			Function: fr.Function,
			Args:     args,
		}
	}
	return xtraceback.Exception{
		Type:   d.Type(),
		Value:  d.Message(),
		Frames: frames,
	}
}

func newRootCmd(opts ...Option) *cobra.Command {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		configPath string
		colorFlag  string
		width      int
		offset     int
		limit      int
		contextN   int
		noArgs     bool
		noLocals   bool
		globals    bool
		noQualify  bool
		noShorten  bool
		excludes   []string
	)

	rootCmd := &cobra.Command{
		Use:   "xtraceback [file]",
		Short: "Print a Go panic dump as a verbose traceback",
		Long: `xtraceback reads the crash output of a Go program (from a file or stdin)
and prints it as a verbose traceback with source context and arguments.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				fh, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open dump: %w", err)
				}
				defer func() { _ = fh.Close() }()
				in = fh
			}

			dump, err := gopanic.Parse(in)
			if err != nil {
				return err
			}

			cfg := xtraceback.Config{}
			if configPath != "" {
				if cfg, err = xtraceback.LoadConfig(configPath); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}

			flags := cmd.Flags()
			if flags.Changed("color") {
				cfg[xtraceback.KeyColor] = colorFlag
			}
			if flags.Changed("width") {
				cfg[xtraceback.KeyPrintWidth] = width
			}
			if flags.Changed("offset") {
				cfg[xtraceback.KeyOffset] = offset
			}
			if flags.Changed("limit") {
				cfg[xtraceback.KeyLimit] = limit
			}
			if flags.Changed("context") {
				cfg[xtraceback.KeyContext] = contextN
			}
			if noArgs {
				cfg[xtraceback.KeyShowArgs] = false
			}
			if noLocals {
				cfg[xtraceback.KeyShowLocals] = false
			}
			if globals {
				cfg[xtraceback.KeyShowGlobals] = true
			}
			if noQualify {
				cfg[xtraceback.KeyQualifyMethods] = false
			}
			if noShorten {
				cfg[xtraceback.KeyShortenFilenames] = false
			}

			provider := xtraceback.NewSourceProvider()
			provider.ExcludeFiles = excludes
			cfg[xtraceback.KeyProvider] = provider
			cfg[xtraceback.KeyStream] = cmd.OutOrStdout()

			verbosity, _ := flags.GetCount("verbose")
			logger := createLogger(cmd.ErrOrStderr(), verbosity)
			cfg[xtraceback.KeyLogger] = logger
			if o.highlighter != nil {
				cfg[xtraceback.KeyHighlighter] = o.highlighter
			}
			if o.probe != nil {
				cfg[xtraceback.KeyProbe] = o.probe
			}

			logger.Info("parsed dump",
				"kind", dump.Kind,
				"goroutine", dump.Goroutine,
				"frames", len(dump.Frames))

			f, err := xtraceback.New(exceptionFromDump(dump), cfg)
			if err != nil {
				return err
			}
			return f.PrintException(cmd.Context())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "Load options from a YAML or TOML file")
	flags.StringVar(&colorFlag, "color", "auto", "Color output: auto, always, never")
	flags.IntVar(&width, "width", 0, "Print width (default: terminal width or 80)")
	flags.IntVar(&offset, "offset", 0, "Skip this many outermost frames")
	flags.IntVar(&limit, "limit", -1, "Examine at most this many frames (-1 = all)")
	flags.IntVar(&contextN, "context", 5, "Source lines shown per frame")
	flags.BoolVar(&noArgs, "no-args", false, "Hide frame arguments")
	flags.BoolVar(&noLocals, "no-locals", false, "Hide frame locals")
	flags.BoolVar(&globals, "globals", false, "Show frame globals")
	flags.BoolVar(&noQualify, "no-qualify", false, "Do not prefix methods with their receiver type")
	flags.BoolVar(&noShorten, "no-shorten", false, "Print file paths as recorded")
	flags.StringArrayVar(&excludes, "exclude", nil, "Hide frames whose file matches this glob (repeatable)")
	flags.CountP("verbose", "v", "Enable verbose output (-v for info, -vv for debug)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xtraceback %s (commit %s, built %s)\n", version, commit, date)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var rootCmd = newRootCmd()

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(rootCmd.ErrOrStderr(), "xtraceback:", err)
		return 1
	}
	return 0
}
