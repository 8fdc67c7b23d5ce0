package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/modelstore/internal/model"
	"github.com/jward/modelstore/internal/store"
)

// Runtime embeds a Risor VM and exposes the store contract to graph
// building scripts as host functions.
type Runtime struct {
	store      store.DataStore
	catalog    store.DataStore
	registry   *model.Registry
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	namespace  string
	propNS     string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithCatalog exposes a read-only catalog to scripts through listed and
// import_listed.
func WithCatalog(ds store.DataStore) RuntimeOption {
	return func(r *Runtime) {
		r.catalog = ds
	}
}

// WithRegistry sets the type registry used by create and is_a.
func WithRegistry(reg *model.Registry) RuntimeOption {
	return func(r *Runtime) {
		r.registry = reg
	}
}

// WithLogger sets the logger behind the script log global.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithNamespace sets the document namespace scripts see as the namespace
// global.
func WithNamespace(ns string) RuntimeOption {
	return func(r *Runtime) {
		r.namespace = ns
	}
}

// WithPropertyNamespace sets the namespace applied to bare property names.
func WithPropertyNamespace(ns string) RuntimeOption {
	return func(r *Runtime) {
		r.propNS = ns
	}
}

// NewRuntime creates a Runtime wired to the given DataStore and scripts
// directory. ds may be nil, in which case only log and helpers are exposed.
func NewRuntime(ds store.DataStore, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      ds,
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.DiscardHandler),
		propNS:     model.CoreNS,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = model.DefaultRegistry()
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", "script", label)
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":          mustProxy(&logObject{logger: r.logger}),
		"namespace":    object.NewString(r.namespace),
		"spec_version": object.NewString(model.SpecVersion),
		"ref":          makeRefFn(),
		"individual":   makeIndividualFn(),
		"prop":         makePropFn(r.propNS),
	}

	// Expose the store if available (nil during some tests).
	if r.store != nil {
		b := &bridge{ds: r.store, registry: r.registry, propNS: r.propNS}

		// Node lifecycle
		globals["create_node"] = b.createFn()
		globals["create_next"] = b.createNextFn()
		globals["exists"] = b.existsFn()
		globals["type_of"] = b.typeOfFn()
		globals["is_a"] = b.isAFn()
		globals["delete_node"] = b.deleteFn()
		globals["refcount"] = b.refCountFn()

		// Properties
		globals["set_value"] = b.setFn()
		globals["get_value"] = b.getFn()
		globals["remove_property"] = b.unsetFn()
		globals["property_names"] = b.propsFn()

		// Collections
		globals["add_to_collection"] = b.addFn()
		globals["remove_from_collection"] = b.removeFn()
		globals["clear_collection"] = b.clearFn()
		globals["collection_size"] = b.sizeFn()
		globals["collection_contains"] = b.containsFn()
		globals["collection_values"] = b.valuesFn()

		// Identifiers and queries
		globals["next_id"] = b.nextIDFn()
		globals["id_kind"] = b.idKindFn()
		globals["scan"] = b.scanFn()
		globals["referrers"] = b.referrersFn()
		globals["digest"] = b.digestFn()

		if r.catalog != nil {
			globals["listed"] = b.listedFn(r.catalog)
			globals["import_listed"] = b.importListedFn(r.catalog)
		}
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
