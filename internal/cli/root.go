// Package cli implements the catmig command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/catmig/internal/workspace"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by one invocation's commands.
type app struct {
	flags  rootFlags
	config types.Config
	logger *zap.Logger
}

// usageError marks errors in how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// NewRootCmd creates the top-level "catmig" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "catmig",
		Short: "Categorical data migration",
		Long: "catmig checks instances against schemas with path equations and migrates\n" +
			"them along schema mappings with the pullback (delta) and pushforward (sigma).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: .catmig-db)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newValidateCmd())
	root.AddCommand(a.newDeltaCmd())
	root.AddCommand(a.newSigmaCmd())
	root.AddCommand(a.newPlanCmd())
	root.AddCommand(a.newShowCmd())
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := loadConfig(a.flags.configDir, a.flags.dataDir)
	if err != nil {
		return err
	}
	a.config = cfg

	zcfg := zap.NewProductionConfig()
	if a.flags.verbose || cfg.LogLevel == "debug" {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		zcfg.Level = level
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

// Execute runs the root command with os.Args and returns the exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "catmig:", err)
	return exitCode(err)
}

// exitCode maps data and usage errors to 1 and everything else to 2.
func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &usage),
		errors.Is(err, types.ErrSchema),
		errors.Is(err, types.ErrInstance),
		errors.Is(err, types.ErrMapping),
		errors.Is(err, types.ErrMigration),
		errors.Is(err, workspace.ErrDocument),
		errors.Is(err, types.ErrBackendEmpty),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrLogLevelUnknown),
		errors.Is(err, types.ErrParallelismNegative):
		return exitUserError
	default:
		return exitSysError
	}
}
