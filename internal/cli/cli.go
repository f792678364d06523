package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/pulsegrid/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Starter builds the application for a validated configuration.
type Starter func(cfg *app.Config) (*app.App, error)

// globals are the persistent flags shared by every command.
type globals struct {
	logFormat   string
	logLevel    string
	kernelsPath string
	workers     int
}

// config validates the flags into an app.Config.
func (g *globals) config(designPath string, healthPort int) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		DesignPath:      designPath,
		KernelsPath:     g.kernelsPath,
		LogFormat:       g.logFormat,
		LogLevel:        g.logLevel,
		HealthcheckPort: healthPort,
		WorkerCount:     g.workers,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// NewRootCommand assembles the pulsegrid command tree. Output, including
// help text, goes to out.
func NewRootCommand(ctx context.Context, out io.Writer, start Starter) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "pulsegrid",
		Short: "Design RF pulses as chains of transform kernels",
		Long: `pulsegrid builds RF pulse designs described in HCL.

Each design is an ordered chain of transforms. Every transform runs one
kernel (SLR, hyperbolic secant, root reflection, optimal control, ...)
over the pulse produced by the stage before it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetContext(ctx)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&g.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&g.kernelsPath, "kernels-path", "", "Directory with additional kernel manifests.")
	pf.IntVar(&g.workers, "workers", 4, "Number of designs built concurrently.")

	root.AddCommand(
		newRunCommand(g, start),
		newWatchCommand(g, start),
		newKernelsCommand(g, start),
		newExportCommand(g, start),
		newImportCommand(g, start),
		newLibraryCommand(g, start),
	)
	return root
}

// Execute runs the command tree against args. Usage mistakes come back as
// an ExitError with code 2.
func Execute(ctx context.Context, out io.Writer, args []string, start Starter) error {
	root := NewRootCommand(ctx, out, start)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	msg := err.Error()
	if isUsageError(err) || strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "required flag") {
		return &ExitError{Code: 2, Message: msg}
	}
	return err
}

// usageError marks argument count errors so they exit with code 2.
type usageError struct{ error }

func isUsageError(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

// args wraps a cobra positional validator so its failures are usage errors.
func args(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := v(cmd, a); err != nil {
			return usageError{fmt.Errorf("%s: %w", cmd.CommandPath(), err)}
		}
		return nil
	}
}

func newRunCommand(g *globals, start Starter) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "run PATH",
		Short: "Build every design once and print a per-stage summary",
		Long: `Build every design found under PATH (an .hcl file or a directory of them).

With --out, each final pulse is written to DIR/<design>.txt as amplitude
(µT) and phase (degrees) columns.`,
		Args: args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config(a[0], 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.Run(cmd.Context(), outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the final pulses.")
	return cmd
}

func newWatchCommand(g *globals, start Starter) *cobra.Command {
	var outDir string
	var healthPort int
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Build every design and rebuild on file changes",
		Long: `Build every design under PATH, then watch PATH and the kernel path and
rebuild on every change. Only stages whose inputs changed run again.

With --healthcheck-port, GET /health reports the last build.`,
		Args: args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config(a[0], healthPort)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.Watch(cmd.Context(), outDir)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for the final pulses.")
	cmd.Flags().IntVar(&healthPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	return cmd
}

func newKernelsCommand(g *globals, start Starter) *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List the available kernel definitions",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config("", 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.ListKernels()
		},
	}
}

func newExportCommand(g *globals, start Starter) *cobra.Command {
	var design, output, comment string
	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write one design as a self-contained exchange document",
		Long: `Write the design named by --design, its machine and every kernel it uses
to an exchange document. A ".gz" output is gzip-compressed.`,
		Args: args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config(a[0], 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.Export(design, output, comment)
		},
	}
	cmd.Flags().StringVar(&design, "design", "", "Name of the design to export.")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file.")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment stored in the document.")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newImportCommand(g *globals, start Starter) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Rebuild the design carried by an exchange document",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config("", 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			_, err = pg.Import(cmd.Context(), a[0])
			return err
		},
	}
}

func newLibraryCommand(g *globals, start Starter) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Store and retrieve designs in a SQLite design library",
		Long: `Store and retrieve designs in a SQLite design library.

Available subcommands:
  save - Store a design and the kernels it uses
  list - List the stored designs
  show - Print or rebuild a stored design

Kernels referenced by a stored design are frozen: saving a different
definition under the same id is refused.`,
	}
	cmd.PersistentFlags().StringVar(&db, "db", "pulsegrid.db", "Library database file.")

	var design, comment string
	save := &cobra.Command{
		Use:   "save PATH",
		Short: "Store a design and the kernels it uses",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config(a[0], 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			_, err = pg.LibrarySave(cmd.Context(), db, design, comment)
			return err
		},
	}
	save.Flags().StringVar(&design, "design", "", "Name of the design to store.")
	save.Flags().StringVar(&comment, "comment", "", "Comment stored with the design.")
	_ = save.MarkFlagRequired("design")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the stored designs",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config("", 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.LibraryList(cmd.Context(), db)
		},
	}

	var build bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print or rebuild a stored design",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			cfg, err := g.config("", 0)
			if err != nil {
				return err
			}
			pg, err := start(cfg)
			if err != nil {
				return err
			}
			return pg.LibraryShow(cmd.Context(), db, a[0], build)
		},
	}
	show.Flags().BoolVar(&build, "build", false, "Rebuild the design instead of printing it.")

	cmd.AddCommand(save, list, show)
	return cmd
}
