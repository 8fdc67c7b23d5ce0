package store

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemStore is the in-memory DataStore: a registry of node records keyed by
// lower-cased identifier.
//
// Thread safety: the node table and each node's property table are lock-free
// maps, so plain lookups never block. Reference counts, and the compound
// operations that must resolve a target and adjust its count as one unit, are
// serialized by refMu. txMu is the caller-visible transaction lock; no store
// operation takes it on its own. Identifier counters have their own locks.
type MemStore struct {
	nodes *xsync.MapOf[string, *storedNode]
	ids   *idGenerator

	txMu  sync.RWMutex
	refMu sync.RWMutex

	registry TypeRegistry
	listed   ListedChecker
	logger   *slog.Logger
}

// Option configures a MemStore.
type Option func(*MemStore)

// WithLogger sets the logger for lifecycle events. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemStore) {
		s.logger = logger
	}
}

// WithRegistry sets the type registry used by the assignability checks.
func WithRegistry(reg TypeRegistry) Option {
	return func(s *MemStore) {
		s.registry = reg
	}
}

// WithListedChecker lets GetIDKind recognize externally curated identifiers.
func WithListedChecker(fn ListedChecker) Option {
	return func(s *MemStore) {
		s.listed = fn
	}
}

// NewMemStore creates an empty store. All identifier counters start at zero.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		nodes:  xsync.NewMapOf[string, *storedNode](),
		ids:    newIDGenerator(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func nodeKey(id string) string {
	return strings.ToLower(id)
}

func (s *MemStore) node(id string) (*storedNode, error) {
	n, ok := s.nodes.Load(nodeKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

func (s *MemStore) Exists(id string) bool {
	_, ok := s.nodes.Load(nodeKey(id))
	return ok
}

func (s *MemStore) Create(ref TypedRef) error {
	if ref.ID == "" {
		return errors.New("create: empty identifier")
	}
	if ref.Type == "" {
		return fmt.Errorf("create %s: empty type", ref.ID)
	}
	if _, loaded := s.nodes.LoadOrStore(nodeKey(ref.ID), newStoredNode(ref)); loaded {
		return fmt.Errorf("create %s: %w", ref.ID, ErrDuplicateID)
	}
	s.ids.observe(ref.ID)
	s.logger.Debug("node created", "id", ref.ID, "type", ref.Type)
	return nil
}

func (s *MemStore) GetTypedRef(id string) (TypedRef, error) {
	n, err := s.node(id)
	if err != nil {
		return TypedRef{}, err
	}
	return n.TypedRef, nil
}

// CaseSensitiveID returns the identifier as it was created.
func (s *MemStore) CaseSensitiveID(id string) (string, bool) {
	n, ok := s.nodes.Load(nodeKey(id))
	if !ok {
		return "", false
	}
	return n.ID, true
}

func (s *MemStore) GetPropertyDescriptors(id string) ([]PropertyDescriptor, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	return n.descriptors(), nil
}

func (s *MemStore) GetValue(id string, prop PropertyDescriptor) (Value, bool, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, false, err
	}
	v, isCollection, ok := n.scalar(prop)
	if isCollection {
		return NewCollectionView(s, n.ID, prop), true, nil
	}
	return v, ok, nil
}

func (s *MemStore) SetValue(id string, prop PropertyDescriptor, v Value) error {
	if v == nil {
		return s.RemoveProperty(id, prop)
	}
	v, err := normalizeValue(v)
	if err != nil {
		return fmt.Errorf("set %s on %s: %w", prop, id, err)
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return err
	}
	var target *storedNode
	if ref, ok := v.(TypedRef); ok {
		if target, err = s.node(ref.ID); err != nil {
			return fmt.Errorf("set %s on %s: reference target: %w", prop, id, err)
		}
		v = target.TypedRef
	}

	old, isCollection, _ := n.scalar(prop)
	if isCollection {
		return fmt.Errorf("set %s: %w", id, shapeError(prop, true))
	}
	var lost []TypedRef
	if r, ok := old.(TypedRef); ok {
		lost = append(lost, r)
	}
	if err := s.checkRelease(lost); err != nil {
		return fmt.Errorf("set %s on %s: %w", prop, id, err)
	}
	if _, err := n.setScalar(prop, v); err != nil {
		return fmt.Errorf("set %s: %w", id, err)
	}
	if target != nil {
		target.refCount++
	}
	s.applyRelease(lost)
	return nil
}

func (s *MemStore) RemoveProperty(id string, prop PropertyDescriptor) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return err
	}
	lost := n.propertyRefs(prop)
	if err := s.checkRelease(lost); err != nil {
		return fmt.Errorf("remove %s from %s: %w", prop, id, err)
	}
	n.removeProperty(prop)
	s.applyRelease(lost)
	return nil
}

func (s *MemStore) AddToCollection(id string, prop PropertyDescriptor, v Value) error {
	v, err := normalizeValue(v)
	if err != nil {
		return fmt.Errorf("add to %s on %s: %w", prop, id, err)
	}
	ref, isRef := v.(TypedRef)
	if !isRef {
		n, err := s.node(id)
		if err != nil {
			return err
		}
		if err := n.add(prop, v); err != nil {
			return fmt.Errorf("add to %s: %w", id, err)
		}
		return nil
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return err
	}
	target, err := s.node(ref.ID)
	if err != nil {
		return fmt.Errorf("add to %s on %s: reference target: %w", prop, id, err)
	}
	if err := n.add(prop, target.TypedRef); err != nil {
		return fmt.Errorf("add to %s: %w", id, err)
	}
	target.refCount++
	return nil
}

func (s *MemStore) RemoveFromCollection(id string, prop PropertyDescriptor, v Value) (bool, error) {
	v, err := normalizeValue(v)
	if err != nil {
		return false, fmt.Errorf("remove from %s on %s: %w", prop, id, err)
	}
	ref, isRef := v.(TypedRef)
	if !isRef {
		n, err := s.node(id)
		if err != nil {
			return false, err
		}
		removed, err := n.remove(prop, v)
		if err != nil {
			return false, fmt.Errorf("remove from %s: %w", id, err)
		}
		return removed, nil
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	var present bool
	if _, err := n.collectionRead(prop, func(c *collection) { present = c.contains(ref) }); err != nil {
		return false, fmt.Errorf("remove from %s: %w", id, err)
	}
	if !present {
		return false, nil
	}
	if err := s.checkRelease([]TypedRef{ref}); err != nil {
		return false, fmt.Errorf("remove from %s on %s: %w", prop, id, err)
	}
	if _, err := n.remove(prop, ref); err != nil {
		return false, fmt.Errorf("remove from %s: %w", id, err)
	}
	s.applyRelease([]TypedRef{ref})
	return true, nil
}

func (s *MemStore) ClearCollection(id string, prop PropertyDescriptor) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return err
	}
	lost, exists, err := n.collectionRefs(prop)
	if err != nil {
		return fmt.Errorf("clear %s: %w", id, err)
	}
	if !exists {
		return nil
	}
	if err := s.checkRelease(lost); err != nil {
		return fmt.Errorf("clear %s on %s: %w", prop, id, err)
	}
	if err := n.clear(prop); err != nil {
		return fmt.Errorf("clear %s: %w", id, err)
	}
	s.applyRelease(lost)
	return nil
}

func (s *MemStore) CollectionSize(id string, prop PropertyDescriptor) (int, error) {
	n, err := s.node(id)
	if err != nil {
		return 0, err
	}
	var size int
	if _, err := n.collectionRead(prop, func(c *collection) { size = c.len() }); err != nil {
		return 0, fmt.Errorf("collection size %s: %w", id, err)
	}
	return size, nil
}

func (s *MemStore) CollectionContains(id string, prop PropertyDescriptor, v Value) (bool, error) {
	v, err := normalizeValue(v)
	if err != nil {
		return false, fmt.Errorf("contains %s on %s: %w", prop, id, err)
	}
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	var found bool
	if _, err := n.collectionRead(prop, func(c *collection) { found = c.contains(v) }); err != nil {
		return false, fmt.Errorf("contains %s: %w", id, err)
	}
	return found, nil
}

func (s *MemStore) CollectionValues(id string, prop PropertyDescriptor) ([]Value, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	var values []Value
	if _, err := n.collectionRead(prop, func(c *collection) { values = c.values() }); err != nil {
		return nil, fmt.Errorf("collection values %s: %w", id, err)
	}
	return values, nil
}

func (s *MemStore) IsCollectionProperty(id string, prop PropertyDescriptor) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	return n.isCollection(prop), nil
}

func (s *MemStore) IsPropertyValueAssignableTo(id string, prop PropertyDescriptor, typeName string) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	return n.isPropertyValueAssignableTo(prop, typeName, s.registry), nil
}

func (s *MemStore) IsCollectionMembersAssignableTo(id string, prop PropertyDescriptor, typeName string) (bool, error) {
	n, err := s.node(id)
	if err != nil {
		return false, err
	}
	return n.isCollectionMembersAssignableTo(prop, typeName, s.registry), nil
}

func (s *MemStore) GetNextID(kind IDKind) (string, error) {
	return s.ids.next(kind)
}

func (s *MemStore) GetIDKind(id string) IDKind {
	return ClassifyID(id, s.listed)
}

func (s *MemStore) Scan(namespace, typeName string) (iter.Seq[TypedRef], error) {
	prefix := strings.ToLower(namespace)
	var snapshot []TypedRef
	s.nodes.Range(func(key string, n *storedNode) bool {
		if strings.HasPrefix(key, prefix) && (typeName == "" || n.Type == typeName) {
			snapshot = append(snapshot, n.TypedRef)
		}
		return true
	})
	slices.SortFunc(snapshot, func(a, b TypedRef) int {
		return strings.Compare(nodeKey(a.ID), nodeKey(b.ID))
	})
	return slices.Values(snapshot), nil
}

func (s *MemStore) Delete(id string) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	n, err := s.node(id)
	if err != nil {
		return err
	}
	// References to itself count too, so a self-referencing node stays
	// in use until the reference is removed.
	if n.refCount > 0 {
		s.logger.Warn("delete refused", "id", n.ID, "references", n.refCount)
		return fmt.Errorf("delete %s: %w (%d references)", n.ID, ErrInUse, n.refCount)
	}
	held := n.allRefs()
	if err := s.checkRelease(held); err != nil {
		return fmt.Errorf("delete %s: %w", n.ID, err)
	}
	s.applyRelease(held)
	s.nodes.Delete(nodeKey(n.ID))
	s.logger.Debug("node deleted", "id", n.ID, "released", len(held))
	return nil
}

// RefCount returns how many references currently point at id.
func (s *MemStore) RefCount(id string) (int, error) {
	n, err := s.node(id)
	if err != nil {
		return 0, err
	}
	s.refMu.RLock()
	defer s.refMu.RUnlock()
	return n.refCount, nil
}

func (s *MemStore) EnterCriticalSection(readOnly bool) (*CriticalSection, error) {
	return NewCriticalSection(&s.txMu, readOnly), nil
}

func (s *MemStore) LeaveCriticalSection(cs *CriticalSection) {
	cs.Release()
}

// Size returns the number of nodes.
func (s *MemStore) Size() int {
	return s.nodes.Size()
}

// Clear removes every node. Identifier counters keep their values.
func (s *MemStore) Clear() {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.nodes.Clear()
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}

// checkRelease verifies every target in refs can be decremented once per
// occurrence. Targets that no longer exist are skipped. Caller holds refMu.
func (s *MemStore) checkRelease(refs []TypedRef) error {
	if len(refs) == 0 {
		return nil
	}
	need := make(map[string]int, len(refs))
	for _, r := range refs {
		need[nodeKey(r.ID)]++
	}
	for key, count := range need {
		target, ok := s.nodes.Load(key)
		if !ok {
			continue
		}
		if target.refCount < count {
			s.logger.Warn("reference count underflow", "id", target.ID, "count", target.refCount, "release", count)
			return fmt.Errorf("%w: %s has %d, releasing %d", ErrRefcountUnderflow, target.ID, target.refCount, count)
		}
	}
	return nil
}

// applyRelease decrements each target in refs. Caller holds refMu and has
// run checkRelease.
func (s *MemStore) applyRelease(refs []TypedRef) {
	for _, r := range refs {
		if target, ok := s.nodes.Load(nodeKey(r.ID)); ok {
			target.refCount--
		}
	}
}
