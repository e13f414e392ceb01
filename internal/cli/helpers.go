package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catmig/internal/export"
	"github.com/mesh-intelligence/catmig/internal/paths"
	"github.com/mesh-intelligence/catmig/internal/sqlite"
	"github.com/mesh-intelligence/catmig/internal/workspace"
	"github.com/mesh-intelligence/catmig/pkg/migrate"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Engines for delta and sigma.
const (
	engineMemory = "memory"
	engineSQLite = "sqlite"
)

// workspaceFlags are shared by commands that read a workspace document.
type workspaceFlags struct {
	file     string
	mapping  string
	instance string
}

func (w *workspaceFlags) register(cmd *cobra.Command, mapping, instance bool) {
	cmd.Flags().StringVarP(&w.file, "file", "f", "", "workspace document (YAML)")
	if mapping {
		cmd.Flags().StringVarP(&w.mapping, "mapping", "m", "", "mapping name")
	}
	if instance {
		cmd.Flags().StringVarP(&w.instance, "instance", "i", "", "instance name")
	}
}

func (w *workspaceFlags) load() (*workspace.Workspace, error) {
	if w.file == "" {
		return nil, usagef("--file is required")
	}
	return workspace.Load(w.file)
}

// mappingAndInstance loads the workspace and resolves --mapping and
// --instance, both required.
func (w *workspaceFlags) mappingAndInstance() (*types.Mapping, *types.Instance, error) {
	ws, err := w.load()
	if err != nil {
		return nil, nil, err
	}
	if w.mapping == "" || w.instance == "" {
		return nil, nil, usagef("--mapping and --instance are required")
	}
	f, err := ws.Mapping(w.mapping)
	if err != nil {
		return nil, nil, err
	}
	i, err := ws.Instance(w.instance)
	if err != nil {
		return nil, nil, err
	}
	return f, i, nil
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func (a *app) migrateOptions() []migrate.Option {
	return []migrate.Option{
		migrate.WithLogger(a.logger),
		migrate.WithParallelism(a.config.Parallelism),
	}
}

// attachSQLite opens the SQLite database in the data directory regardless of
// the configured default backend. The caller must Detach.
func (a *app) attachSQLite() (*sqlite.Backend, error) {
	cfg := a.config
	cfg.Backend = types.BackendSQLite
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, nil
}

// migrationResult is what delta and sigma report.
type migrationResult struct {
	Instance string `json:"instance"`
	Schema   string `json:"schema"`
	Elements int    `json:"elements"`
	Engine   string `json:"engine"`
	Path     string `json:"path"`
}

// save exports i to out, or to the data directory when out is empty, and
// reports where it went.
func (a *app) save(cmd *cobra.Command, i *types.Instance, out, engine string, print bool) error {
	path := out
	if path == "" {
		path = paths.ExportPath(a.config.DataDir, i.Name())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := export.WriteInstance(path, i); err != nil {
		return fmt.Errorf("export %s: %w", i.Name(), err)
	}

	w := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(w, migrationResult{
			Instance: i.Name(), Schema: i.Schema().Name(), Elements: i.Size(), Engine: engine, Path: path,
		})
	}
	fmt.Fprintf(w, "%s: %d elements over %s written to %s\n", i.Name(), i.Size(), i.Schema().Name(), path)
	if print {
		fmt.Fprintln(w, i)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// messages flattens an error joined with errors.Join.
func messages(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, messages(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

// firstError returns the first error of a join.
func firstError(err error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return firstError(errs[0])
		}
	}
	return err
}
