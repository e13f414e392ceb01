package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/catmig/internal/paths"
	"github.com/mesh-intelligence/catmig/internal/sqlite"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

// initResult is what init reports.
type initResult struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	Database  string `json:"database,omitempty"`
}

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize catmig configuration and storage",
		Long: "Create the configuration and data directories, record an explicit --data-dir\n" +
			"in config.yaml, and initialize the SQLite database when it is the backend.",
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return err
	}
	if a.flags.dataDir != "" {
		if err := recordDataDir(filepath.Join(configDir, paths.ConfigFileName), a.config.DataDir); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	if err := os.MkdirAll(a.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	res := initResult{ConfigDir: configDir, DataDir: a.config.DataDir}
	if a.config.Backend == types.BackendSQLite {
		backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
		if err := backend.Attach(a.config); err != nil {
			return fmt.Errorf("initialize storage: %w", err)
		}
		res.Database = backend.Path()
		if err := backend.Detach(); err != nil {
			return fmt.Errorf("finalize storage: %w", err)
		}
	}
	a.logger.Info("initialized", zap.String("config_dir", res.ConfigDir), zap.String("data_dir", res.DataDir))

	if a.flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "catmig initialized")
	fmt.Fprintf(cmd.OutOrStdout(), "config: %s\ndata:   %s\n", res.ConfigDir, res.DataDir)
	return nil
}

// recordDataDir sets data_dir in the config file at path, keeping the rest of
// the document and its comments.
func recordDataDir(path, dataDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", path)
	}

	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: dataDir}
	replaced := false
	for k := 0; k+1 < len(root.Content); k += 2 {
		if root.Content[k].Value == cfgKeyDataDir {
			root.Content[k+1] = value
			replaced = true
		}
	}
	if !replaced {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cfgKeyDataDir}, value)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
