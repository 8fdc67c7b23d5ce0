package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jward/modelstore"
	"github.com/jward/modelstore/scripts"
)

var (
	flagRunCatalog    string
	flagRunNamespace  string
	flagRunScriptsDir string
	flagRunWorkers    int
	flagRunShow       string
	flagRunTop        int
	flagRunList       bool
	flagRunCycles     string
)

// runOptions holds everything runScripts needs, decoupled from cobra flags.
type runOptions struct {
	Catalog    string // catalog database path, "" for none
	Namespace  string // document namespace, "" for a fresh urn:uuid
	ScriptsDir string // directory scripts and imports resolve against
	Workers    int
	Show       string // node to include in detail
	Top        int    // most referenced nodes in the summary
	List       bool   // include every node
	Cycles     string // relationship type to check for cycles
	Logger     *slog.Logger
}

var runCmd = &cobra.Command{
	Use:   "run <script>...",
	Short: "Run graph building scripts against a fresh store",
	Long: `Run one or more Risor scripts against a new in-memory store and report
the resulting graph. Scripts resolve against --scripts-dir, then the
directory of the first script found on disk, then the bundled scripts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			Catalog:    flagRunCatalog,
			Namespace:  flagRunNamespace,
			ScriptsDir: flagRunScriptsDir,
			Workers:    flagRunWorkers,
			Show:       flagRunShow,
			Top:        flagRunTop,
			List:       flagRunList,
			Cycles:     flagRunCycles,
			Logger:     logger,
		}
		if opts.Catalog == "" && cfg != nil {
			if _, err := os.Stat(cfg.Catalog.Path); err == nil {
				opts.Catalog = cfg.Catalog.Path
			}
		}
		if opts.ScriptsDir == "" && cfg != nil {
			opts.ScriptsDir = cfg.Scripts.Dir
		}

		res, err := runScripts(cmd.Context(), opts, args)
		if err != nil {
			return outputError("run", err)
		}
		return outputResult(CLIResult{Command: "run", Results: res})
	},
}

func init() {
	runCmd.Flags().StringVar(&flagRunCatalog, "catalog", "", "listed license catalog database (default: configured path if it exists)")
	runCmd.Flags().StringVar(&flagRunNamespace, "namespace", "", "document namespace (default: fresh urn:uuid)")
	runCmd.Flags().StringVar(&flagRunScriptsDir, "scripts-dir", "", "directory scripts and imports are loaded from")
	runCmd.Flags().IntVar(&flagRunWorkers, "workers", 0, "parallel script workers (default: one per CPU)")
	runCmd.Flags().StringVar(&flagRunShow, "show", "", "print full detail for this node")
	runCmd.Flags().IntVar(&flagRunTop, "top", 5, "number of most referenced nodes to report")
	runCmd.Flags().BoolVar(&flagRunList, "list", false, "list every node in the store")
	runCmd.Flags().StringVar(&flagRunCycles, "cycles", "", "report cycles among relationships of this type")
}

// runScripts builds an Engine for opts, runs every script in paths and
// summarizes the resulting graph.
func runScripts(ctx context.Context, opts runOptions, paths []string) (*CLIRunResult, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Namespace == "" {
		opts.Namespace = "urn:uuid:" + uuid.NewString() + "#"
	}

	engineOpts := []modelstore.Option{
		modelstore.WithLogger(opts.Logger),
		modelstore.WithNamespace(opts.Namespace),
		modelstore.WithWorkers(opts.Workers),
	}
	if opts.Catalog != "" {
		engineOpts = append(engineOpts, modelstore.WithCatalog(opts.Catalog))
	}

	scriptPaths, sourceOpt, err := resolveScripts(opts.ScriptsDir, paths)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, sourceOpt)

	engine, err := modelstore.New(engineOpts...)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	opts.Logger.Info("running scripts", "count", len(scriptPaths), "namespace", opts.Namespace)
	if err := engine.RunScripts(ctx, scriptPaths); err != nil {
		return nil, err
	}

	digest, err := engine.GraphDigest()
	if err != nil {
		return nil, err
	}
	qb := engine.Query()
	summary, err := qb.Summary(opts.Top)
	if err != nil {
		return nil, err
	}

	res := &CLIRunResult{
		Namespace: opts.Namespace,
		Digest:    digest,
		Summary:   toCLISummary(summary),
	}

	if opts.List {
		page, err := qb.Nodes(modelstore.NodeFilter{}, modelstore.Sort{Field: modelstore.SortByID}, modelstore.Pagination{Limit: 500})
		if err != nil {
			return nil, err
		}
		res.Nodes = toCLINodes(page.Items)
	}

	if opts.Cycles != "" {
		cycles, err := qb.RelationshipCycles(opts.Cycles)
		if err != nil {
			return nil, err
		}
		res.Cycles = cycles
	}

	if opts.Show != "" {
		detail, err := qb.NodeDetail(opts.Show)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			return nil, fmt.Errorf("node %q not found", opts.Show)
		}
		res.Detail = toCLIDetail(detail)
	}
	return res, nil
}

// resolveScripts decides where scripts load from. An explicit scripts
// directory wins. Otherwise a first argument that exists on disk makes its
// directory the scripts directory. Everything else runs from the bundled
// scripts.
func resolveScripts(scriptsDir string, paths []string) ([]string, modelstore.Option, error) {
	if scriptsDir != "" {
		return paths, modelstore.WithScriptsDir(scriptsDir), nil
	}
	if _, err := os.Stat(paths[0]); err == nil {
		abs, err := filepath.Abs(paths[0])
		if err != nil {
			return nil, nil, fmt.Errorf("resolving script path %q: %w", paths[0], err)
		}
		dir := filepath.Dir(abs)
		resolved := make([]string, len(paths))
		for i, p := range paths {
			if filepath.IsAbs(p) {
				resolved[i] = p
				continue
			}
			a, err := filepath.Abs(p)
			if err != nil {
				return nil, nil, fmt.Errorf("resolving script path %q: %w", p, err)
			}
			resolved[i] = a
		}
		return resolved, modelstore.WithScriptsDir(dir), nil
	}
	return paths, modelstore.WithScriptsFS(scripts.FS), nil
}
