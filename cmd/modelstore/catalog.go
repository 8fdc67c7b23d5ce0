package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/modelstore"
	"github.com/jward/modelstore/internal/catalog"
	"github.com/jward/modelstore/internal/store"
)

var (
	flagCatalogDB     string
	flagCatalogType   string
	flagCatalogLimit  int
	flagCatalogOffset int
	flagCatalogSort   string
	flagCatalogOrder  string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the listed license catalog",
	Long:  "Import and inspect the SQLite catalog that backs listed license identifiers.",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <license-list.json>",
	Short: "Import a published license list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := importCatalog(catalogPath(), args[0])
		if err != nil {
			return outputError("catalog import", err)
		}
		return outputResult(CLIResult{Command: "catalog import", Results: stats})
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort := modelstore.Sort{
			Field: modelstore.SortField(flagCatalogSort),
			Order: modelstore.SortOrder(flagCatalogOrder),
		}
		page := modelstore.Pagination{Offset: flagCatalogOffset, Limit: flagCatalogLimit}
		nodes, total, err := listCatalog(catalogPath(), flagCatalogType, sort, page)
		if err != nil {
			return outputError("catalog list", err)
		}
		return outputResult(CLIResult{Command: "catalog list", Results: nodes, TotalCount: &total})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one catalog entry with all properties",
	Long:  "Show a catalog entry by full identifier or short license id such as MIT.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := showCatalog(catalogPath(), args[0])
		if err != nil {
			return outputError("catalog show", err)
		}
		return outputResult(CLIResult{Command: "catalog show", Results: detail})
	},
}

func init() {
	catalogCmd.PersistentFlags().StringVar(&flagCatalogDB, "db", "", "catalog database path (default: configured path)")

	catalogListCmd.Flags().StringVar(&flagCatalogType, "type", "", "only entries of this type")
	catalogListCmd.Flags().IntVar(&flagCatalogLimit, "limit", 50, "pagination limit (max 500)")
	catalogListCmd.Flags().IntVar(&flagCatalogOffset, "offset", 0, "pagination offset")
	catalogListCmd.Flags().StringVar(&flagCatalogSort, "sort", "id", "sort field: id|type|name")
	catalogListCmd.Flags().StringVar(&flagCatalogOrder, "order", "asc", "sort order: asc|desc")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}

// catalogPath returns the --db flag, falling back to the configured path.
func catalogPath() string {
	if flagCatalogDB != "" {
		return flagCatalogDB
	}
	if cfg != nil && cfg.Catalog.Path != "" {
		return cfg.Catalog.Path
	}
	return defaultCatalogPath
}

// openCatalog opens an existing catalog database.
func openCatalog(dbPath string) (*catalog.Store, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog not found: %s (run 'modelstore catalog import' first)", dbPath)
	}
	cat, err := catalog.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := cat.Migrate(); err != nil {
		cat.Close()
		return nil, err
	}
	return cat, nil
}

// importCatalog creates or updates the catalog at dbPath from a license
// list file.
func importCatalog(dbPath, file string) (CLIImportStats, error) {
	f, err := os.Open(file)
	if err != nil {
		return CLIImportStats{}, fmt.Errorf("opening license list: %w", err)
	}
	defer f.Close()

	cat, err := catalog.NewStore(dbPath)
	if err != nil {
		return CLIImportStats{}, err
	}
	defer cat.Close()
	if err := cat.Migrate(); err != nil {
		return CLIImportStats{}, err
	}

	stats, err := cat.Import(f)
	if err != nil {
		return CLIImportStats{}, err
	}
	logger.Info("catalog imported", "db", dbPath, "version", stats.Version, "licenses", stats.Licenses)
	return CLIImportStats{
		Database: dbPath,
		Version:  stats.Version,
		Licenses: stats.Licenses,
		Replaced: stats.Replaced,
	}, nil
}

// listCatalog returns one page of catalog entries and the total match count.
func listCatalog(dbPath, typeName string, sort modelstore.Sort, page modelstore.Pagination) ([]CLINode, int, error) {
	cat, err := openCatalog(dbPath)
	if err != nil {
		return nil, 0, err
	}
	defer cat.Close()

	var filter modelstore.NodeFilter
	if typeName != "" {
		filter.Types = []string{typeName}
	}
	res, err := modelstore.NewQueryBuilder(cat, nil).Nodes(filter, sort, page)
	if err != nil {
		return nil, 0, err
	}
	return toCLINodes(res.Items), res.TotalCount, nil
}

// showCatalog returns the full detail of one catalog entry. Short license
// identifiers are resolved against the license namespace.
func showCatalog(dbPath, id string) (*CLINodeDetail, error) {
	cat, err := openCatalog(dbPath)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	ref, err := cat.Resolve(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("catalog entry %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	detail, err := modelstore.NewQueryBuilder(cat, nil).NodeDetail(ref.ID)
	if err != nil {
		return nil, err
	}
	return toCLIDetail(detail), nil
}
