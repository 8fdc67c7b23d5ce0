package catalog

import (
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/jward/modelstore/internal/store"
)

// Compile-time check: *Store satisfies store.DataStore.
var _ store.DataStore = (*Store)(nil)

// Exists reports whether id is a catalog entry.
func (s *Store) Exists(id string) bool {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM items WHERE id = ?", id).Scan(&n)
	return err == nil && n > 0
}

func (s *Store) Create(ref store.TypedRef) error {
	return fmt.Errorf("create %s: %w", ref.ID, store.ErrReadOnly)
}

func (s *Store) GetTypedRef(id string) (store.TypedRef, error) {
	var ref store.TypedRef
	err := s.db.QueryRow(
		"SELECT id, type, spec_version FROM items WHERE id = ?", id,
	).Scan(&ref.ID, &ref.Type, &ref.SpecVersion)
	if err == sql.ErrNoRows {
		return store.TypedRef{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return store.TypedRef{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return ref, nil
}

func (s *Store) GetPropertyDescriptors(id string) ([]store.PropertyDescriptor, error) {
	if err := s.requireItem(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		"SELECT DISTINCT namespace, name FROM properties WHERE item_id = ? ORDER BY namespace, name", id,
	)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	var out []store.PropertyDescriptor
	for rows.Next() {
		var p store.PropertyDescriptor
		if err := rows.Scan(&p.Namespace, &p.Name); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SetValue(id string, prop store.PropertyDescriptor, v store.Value) error {
	return fmt.Errorf("set %s %s: %w", id, prop, store.ErrReadOnly)
}

// GetValue returns a scalar value, or a *store.CollectionView when prop is
// a collection property.
func (s *Store) GetValue(id string, prop store.PropertyDescriptor) (store.Value, bool, error) {
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	if rows[0].ordinal >= 0 {
		return store.NewCollectionView(s, id, prop), true, nil
	}
	v, err := rows[0].decode()
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) RemoveProperty(id string, prop store.PropertyDescriptor) error {
	return fmt.Errorf("remove %s %s: %w", id, prop, store.ErrReadOnly)
}

func (s *Store) AddToCollection(id string, prop store.PropertyDescriptor, v store.Value) error {
	return fmt.Errorf("add %s %s: %w", id, prop, store.ErrReadOnly)
}

func (s *Store) RemoveFromCollection(id string, prop store.PropertyDescriptor, v store.Value) (bool, error) {
	return false, fmt.Errorf("remove from %s %s: %w", id, prop, store.ErrReadOnly)
}

func (s *Store) ClearCollection(id string, prop store.PropertyDescriptor) error {
	return fmt.Errorf("clear %s %s: %w", id, prop, store.ErrReadOnly)
}

func (s *Store) CollectionSize(id string, prop store.PropertyDescriptor) (int, error) {
	values, err := s.CollectionValues(id, prop)
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

func (s *Store) CollectionContains(id string, prop store.PropertyDescriptor, v store.Value) (bool, error) {
	wantKind, wantText, err := store.EncodeValue(v)
	if err != nil {
		return false, err
	}
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.ordinal < 0 || r.kind != wantKind {
			continue
		}
		if r.value == wantText || (r.kind == store.KindRef && strings.EqualFold(r.value, wantText)) {
			return true, nil
		}
	}
	return false, nil
}

// CollectionValues returns the members of a collection property in ordinal
// order. A scalar property yields ErrUnsupportedValueType.
func (s *Store) CollectionValues(id string, prop store.PropertyDescriptor) ([]store.Value, error) {
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && rows[0].ordinal < 0 {
		return nil, fmt.Errorf("%w: %s is not a collection", store.ErrUnsupportedValueType, prop)
	}
	out := make([]store.Value, 0, len(rows))
	for _, r := range rows {
		v, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) IsCollectionProperty(id string, prop store.PropertyDescriptor) (bool, error) {
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && rows[0].ordinal >= 0, nil
}

func (s *Store) IsPropertyValueAssignableTo(id string, prop store.PropertyDescriptor, typeName string) (bool, error) {
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 || rows[0].ordinal >= 0 {
		return false, nil
	}
	v, err := rows[0].decode()
	if err != nil {
		return false, err
	}
	return store.IsAssignable(v, typeName, s.registry), nil
}

func (s *Store) IsCollectionMembersAssignableTo(id string, prop store.PropertyDescriptor, typeName string) (bool, error) {
	rows, err := s.propertyRows(id, prop)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.ordinal < 0 {
			return false, nil
		}
		v, err := r.decode()
		if err != nil {
			return false, err
		}
		if !store.IsAssignable(v, typeName, s.registry) {
			return false, nil
		}
	}
	return true, nil
}

// GetNextID always fails: the catalog never mints identifiers.
func (s *Store) GetNextID(kind store.IDKind) (string, error) {
	return "", fmt.Errorf("catalog next id %s: %w", kind, store.ErrUnsupportedIDKind)
}

func (s *Store) GetIDKind(id string) store.IDKind {
	return store.ClassifyID(id, s.IsListed)
}

// Scan returns a snapshot of catalog entries sorted by identifier. The
// namespace filter is a case-insensitive identifier prefix.
func (s *Store) Scan(namespace, typeName string) (iter.Seq[store.TypedRef], error) {
	query := "SELECT id, type, spec_version FROM items WHERE 1=1"
	var args []any
	if namespace != "" {
		query += ` AND id LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(namespace)+"%")
	}
	if typeName != "" {
		query += " AND type = ?"
		args = append(args, typeName)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	defer rows.Close()

	var refs []store.TypedRef
	for rows.Next() {
		var ref store.TypedRef
		if err := rows.Scan(&ref.ID, &ref.Type, &ref.SpecVersion); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return slices.Values(refs), nil
}

func (s *Store) Delete(id string) error {
	return fmt.Errorf("delete %s: %w", id, store.ErrReadOnly)
}

func (s *Store) EnterCriticalSection(readOnly bool) (*store.CriticalSection, error) {
	return store.NewCriticalSection(&s.txMu, readOnly), nil
}

func (s *Store) LeaveCriticalSection(cs *store.CriticalSection) {
	cs.Release()
}

type propertyRow struct {
	ordinal int
	kind    string
	value   string
	refType string
	refSpec string
}

func (r propertyRow) decode() (store.Value, error) {
	return store.DecodeValue(r.kind, r.value, store.TypedRef{Type: r.refType, SpecVersion: r.refSpec})
}

func (s *Store) propertyRows(id string, prop store.PropertyDescriptor) ([]propertyRow, error) {
	if err := s.requireItem(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT ordinal, kind, value, ref_type, ref_spec FROM properties
		 WHERE item_id = ? AND namespace = ? AND name = ? ORDER BY ordinal`,
		id, prop.Namespace, prop.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("query property %s: %w", prop, err)
	}
	defer rows.Close()

	var out []propertyRow
	for rows.Next() {
		var r propertyRow
		if err := rows.Scan(&r.ordinal, &r.kind, &r.value, &r.refType, &r.refSpec); err != nil {
			return nil, fmt.Errorf("scan property %s: %w", prop, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) requireItem(id string) error {
	if !s.Exists(id) {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
