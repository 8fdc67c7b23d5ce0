package modelstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jward/modelstore/internal/catalog"
	"github.com/jward/modelstore/internal/model"
	"github.com/jward/modelstore/internal/runtime"
	"github.com/jward/modelstore/internal/store"
)

// Engine wires the in-memory graph store, the optional listed catalog and
// the Risor script runtime.
type Engine struct {
	store    *store.MemStore
	catalog  *catalog.Store
	registry *model.Registry
	runtime  *runtime.Runtime
	logger   *slog.Logger

	catalogPath string
	scriptsDir  string
	scriptsFS   fs.FS
	namespace   string
	propNS      string

	// workers bounds RunScripts concurrency. Zero means one per CPU.
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog opens the SQLite catalog at path and makes its entries
// available as the listed identifier family.
func WithCatalog(path string) Option {
	return func(e *Engine) {
		e.catalogPath = path
	}
}

// WithLogger sets the logger shared by the store and the script runtime.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry replaces the default type registry.
func WithRegistry(reg *model.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithScriptsDir sets the directory scripts and their imports are loaded
// from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS configures the Engine to load Risor scripts from the given
// filesystem instead of from disk. This enables embedding scripts via
// go:embed. When set, the scripts directory is ignored.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithNamespace sets the document namespace exposed to scripts.
func WithNamespace(ns string) Option {
	return func(e *Engine) {
		e.namespace = ns
	}
}

// WithPropertyNamespace sets the namespace scripts apply to bare property
// names.
func WithPropertyNamespace(ns string) Option {
	return func(e *Engine) {
		e.propNS = ns
	}
}

// WithWorkers bounds the number of scripts RunScripts executes at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// New creates an Engine with an empty in-memory store. When WithCatalog is
// given, the catalog database is opened and migrated first.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.New(slog.DiscardHandler),
		propNS: model.CoreNS,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = model.DefaultRegistry()
	}

	storeOpts := []store.Option{
		store.WithLogger(e.logger),
		store.WithRegistry(e.registry),
	}
	if e.catalogPath != "" {
		cat, err := catalog.NewStore(e.catalogPath, catalog.WithRegistry(e.registry))
		if err != nil {
			return nil, fmt.Errorf("modelstore: open catalog: %w", err)
		}
		if err := cat.Migrate(); err != nil {
			cat.Close()
			return nil, fmt.Errorf("modelstore: migrate catalog: %w", err)
		}
		e.catalog = cat
		storeOpts = append(storeOpts, store.WithListedChecker(cat.IsListed))
	}
	e.store = store.NewMemStore(storeOpts...)
	e.runtime = e.newRuntime()
	return e, nil
}

// newRuntime builds a Runtime bound to the Engine's store and settings.
// Runtimes hold no per-run state, so workers may each take their own.
func (e *Engine) newRuntime() *runtime.Runtime {
	rtOpts := []runtime.RuntimeOption{
		runtime.WithRegistry(e.registry),
		runtime.WithLogger(e.logger),
		runtime.WithNamespace(e.namespace),
		runtime.WithPropertyNamespace(e.propNS),
	}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	if e.catalog != nil {
		rtOpts = append(rtOpts, runtime.WithCatalog(e.catalog))
	}
	return runtime.NewRuntime(e.store, e.scriptsDir, rtOpts...)
}

// Close releases the store and the catalog database.
func (e *Engine) Close() error {
	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.catalog != nil {
		if err := e.catalog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store returns the in-memory graph store.
func (e *Engine) Store() *MemStore {
	return e.store
}

// Catalog returns the listed catalog, or nil when none is configured.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Registry returns the type registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Namespace returns the document namespace handed to scripts.
func (e *Engine) Namespace() string {
	return e.namespace
}

// RunScript loads a script from the scripts directory or FS and runs it
// against the store.
func (e *Engine) RunScript(ctx context.Context, path string, globals map[string]any) error {
	return e.runtime.RunScript(ctx, path, globals)
}

// RunSource runs Risor source against the store.
func (e *Engine) RunSource(ctx context.Context, source string, globals map[string]any) error {
	return e.runtime.RunSource(ctx, source, globals)
}

// Create creates a node of typeName and returns its model object. An empty
// id generates one from the given identifier family.
func (e *Engine) Create(id, typeName string, kind IDKind) (Referable, error) {
	obj, err := e.registry.Create(e.store, id, typeName, model.SpecVersion, kind)
	if err != nil {
		return nil, fmt.Errorf("modelstore: create %s: %w", typeName, err)
	}
	return obj, nil
}

// Object materializes the model object for an existing node.
func (e *Engine) Object(id string) (Referable, error) {
	obj, err := e.registry.Construct(e.store, id)
	if err != nil {
		return nil, fmt.Errorf("modelstore: object %s: %w", id, err)
	}
	return obj, nil
}

// Commit applies a batch of buffered writes to the store and returns the
// identifiers its placeholders resolved to.
func (e *Engine) Commit(b *Batch) (map[string]string, error) {
	resolved, err := store.CommitBatch(e.store, b)
	if err != nil {
		return resolved, fmt.Errorf("modelstore: commit: %w", err)
	}
	return resolved, nil
}

// ImportListed copies a catalog entry into the store unless a node with
// its identifier is already present. Short license identifiers such as
// "MIT" are accepted.
func (e *Engine) ImportListed(id string) (TypedRef, error) {
	if e.catalog == nil {
		return TypedRef{}, fmt.Errorf("modelstore: import %s: no catalog configured", id)
	}
	ref, err := e.catalog.Resolve(id)
	if err != nil {
		return TypedRef{}, fmt.Errorf("modelstore: import %s: %w", id, err)
	}
	err = store.WithCriticalSection(e.store, false, func() error {
		if existing, err := e.store.GetTypedRef(ref.ID); err == nil {
			ref = existing
			return nil
		}
		ref, err = store.Copy(e.store, e.catalog, ref.ID)
		return err
	})
	if err != nil {
		return TypedRef{}, fmt.Errorf("modelstore: import %s: %w", id, err)
	}
	return ref, nil
}

// CatalogVersion reports the license list version recorded by the last
// catalog import, or "" when there is no catalog.
func (e *Engine) CatalogVersion() (string, error) {
	if e.catalog == nil {
		return "", nil
	}
	return e.catalog.ListedVersion()
}

// GraphDigest computes a SHA-256 over every node in the store: identifiers
// are sorted case-insensitively and each contributes its identifier and
// node digest. Two stores holding the same graph produce the same digest.
func (e *Engine) GraphDigest() (string, error) {
	var digest string
	err := store.WithCriticalSection(e.store, true, func() error {
		seq, err := e.store.Scan("", "")
		if err != nil {
			return err
		}
		ids := make([]string, 0, e.store.Size())
		for ref := range seq {
			ids = append(ids, ref.ID)
		}
		slices.SortFunc(ids, func(a, b string) int {
			return strings.Compare(strings.ToLower(a), strings.ToLower(b))
		})

		h := sha256.New()
		for _, id := range ids {
			d, err := store.Digest(e.store, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "%s\n%s\n", strings.ToLower(id), d)
		}
		digest = fmt.Sprintf("%x", h.Sum(nil))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("modelstore: graph digest: %w", err)
	}
	return digest, nil
}

// Query returns a new QueryBuilder over the store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{ds: e.store, registry: e.registry}
}
