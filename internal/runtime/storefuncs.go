package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/modelstore/internal/model"
	"github.com/jward/modelstore/internal/store"
)

// bridge builds host functions over one DataStore. Risor scripts cannot
// hold Go values, so every function takes identifiers and property names
// and converts values on the Go side.
type bridge struct {
	ds       store.DataStore
	registry *model.Registry
	propNS   string
}

// refCounter is implemented by stores that expose reference counts.
type refCounter interface {
	RefCount(id string) (int, error)
}

func (b *bridge) prop(obj object.Object) (store.PropertyDescriptor, error) {
	name, err := toString(obj)
	if err != nil {
		return store.PropertyDescriptor{}, fmt.Errorf("property: %w", err)
	}
	return parseProp(name, b.propNS), nil
}

// idProp extracts the (id, property) leading arguments shared by most
// property functions.
func (b *bridge) idProp(args []object.Object) (string, store.PropertyDescriptor, error) {
	id, err := toID(args[0])
	if err != nil {
		return "", store.PropertyDescriptor{}, err
	}
	prop, err := b.prop(args[1])
	if err != nil {
		return "", store.PropertyDescriptor{}, err
	}
	return id, prop, nil
}

// --- Node lifecycle ---

func (b *bridge) createFn() *object.Builtin {
	return object.NewBuiltin("create_node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("create_node", 2, len(args))
		}
		id, err := toString(args[0])
		if err != nil {
			return object.Errorf("create_node: %v", err)
		}
		typeName, err := toString(args[1])
		if err != nil {
			return object.Errorf("create_node: %v", err)
		}
		obj, err := b.registry.Create(b.ds, id, typeName, model.SpecVersion, store.IDKindUnknown)
		if err != nil {
			return object.Errorf("create_node: %v", err)
		}
		return refToObject(obj.Ref())
	})
}

func (b *bridge) createNextFn() *object.Builtin {
	return object.NewBuiltin("create_next", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("create_next", 2, len(args))
		}
		kind, err := toIDKind(args[0])
		if err != nil {
			return object.Errorf("create_next: %v", err)
		}
		typeName, err := toString(args[1])
		if err != nil {
			return object.Errorf("create_next: %v", err)
		}
		obj, err := b.registry.Create(b.ds, "", typeName, model.SpecVersion, kind)
		if err != nil {
			return object.Errorf("create_next: %v", err)
		}
		return refToObject(obj.Ref())
	})
}

func (b *bridge) existsFn() *object.Builtin {
	return object.NewBuiltin("exists", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("exists", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("exists: %v", err)
		}
		return object.NewBool(b.ds.Exists(id))
	})
}

func (b *bridge) typeOfFn() *object.Builtin {
	return object.NewBuiltin("type_of", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("type_of", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("type_of: %v", err)
		}
		ref, err := b.ds.GetTypedRef(id)
		if err != nil {
			return object.Errorf("type_of: %v", err)
		}
		return object.NewString(ref.Type)
	})
}

func (b *bridge) isAFn() *object.Builtin {
	return object.NewBuiltin("is_a", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("is_a", 2, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("is_a: %v", err)
		}
		typeName, err := toString(args[1])
		if err != nil {
			return object.Errorf("is_a: %v", err)
		}
		ref, err := b.ds.GetTypedRef(id)
		if err != nil {
			return object.Errorf("is_a: %v", err)
		}
		return object.NewBool(b.registry.IsAssignable(ref.Type, typeName))
	})
}

func (b *bridge) deleteFn() *object.Builtin {
	return object.NewBuiltin("delete_node", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("delete_node", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("delete_node: %v", err)
		}
		if err := b.ds.Delete(id); err != nil {
			return object.Errorf("delete_node: %v", err)
		}
		return object.Nil
	})
}

func (b *bridge) refCountFn() *object.Builtin {
	return object.NewBuiltin("refcount", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("refcount", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("refcount: %v", err)
		}
		rc, ok := b.ds.(refCounter)
		if !ok {
			return object.Errorf("refcount: store does not track reference counts")
		}
		n, err := rc.RefCount(id)
		if err != nil {
			return object.Errorf("refcount: %v", err)
		}
		return object.NewInt(int64(n))
	})
}

// --- Properties ---

func (b *bridge) setFn() *object.Builtin {
	return object.NewBuiltin("set_value", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("set_value", 3, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("set_value: %v", err)
		}
		v, err := toValue(args[2])
		if err != nil {
			return object.Errorf("set_value: %v", err)
		}
		if err := b.ds.SetValue(id, prop, v); err != nil {
			return object.Errorf("set_value: %v", err)
		}
		return object.Nil
	})
}

func (b *bridge) getFn() *object.Builtin {
	return object.NewBuiltin("get_value", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("get_value", 2, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("get_value: %v", err)
		}
		v, ok, err := b.ds.GetValue(id, prop)
		if err != nil {
			return object.Errorf("get_value: %v", err)
		}
		if !ok {
			return object.Nil
		}
		obj, err := fromValue(v)
		if err != nil {
			return object.Errorf("get_value: %v", err)
		}
		return obj
	})
}

func (b *bridge) unsetFn() *object.Builtin {
	return object.NewBuiltin("remove_property", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("remove_property", 2, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("remove_property: %v", err)
		}
		if err := b.ds.RemoveProperty(id, prop); err != nil {
			return object.Errorf("remove_property: %v", err)
		}
		return object.Nil
	})
}

func (b *bridge) propsFn() *object.Builtin {
	return object.NewBuiltin("property_names", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("property_names", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("property_names: %v", err)
		}
		props, err := b.ds.GetPropertyDescriptors(id)
		if err != nil {
			return object.Errorf("property_names: %v", err)
		}
		items := make([]object.Object, 0, len(props))
		for _, p := range props {
			items = append(items, object.NewString(p.String()))
		}
		return object.NewList(items)
	})
}

// --- Collections ---

func (b *bridge) addFn() *object.Builtin {
	return object.NewBuiltin("add_to_collection", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("add_to_collection", 3, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("add_to_collection: %v", err)
		}
		v, err := toValue(args[2])
		if err != nil {
			return object.Errorf("add_to_collection: %v", err)
		}
		if err := b.ds.AddToCollection(id, prop, v); err != nil {
			return object.Errorf("add_to_collection: %v", err)
		}
		return object.Nil
	})
}

func (b *bridge) removeFn() *object.Builtin {
	return object.NewBuiltin("remove_from_collection", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("remove_from_collection", 3, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("remove_from_collection: %v", err)
		}
		v, err := toValue(args[2])
		if err != nil {
			return object.Errorf("remove_from_collection: %v", err)
		}
		removed, err := b.ds.RemoveFromCollection(id, prop, v)
		if err != nil {
			return object.Errorf("remove_from_collection: %v", err)
		}
		return object.NewBool(removed)
	})
}

func (b *bridge) clearFn() *object.Builtin {
	return object.NewBuiltin("clear_collection", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("clear_collection", 2, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("clear_collection: %v", err)
		}
		if err := b.ds.ClearCollection(id, prop); err != nil {
			return object.Errorf("clear_collection: %v", err)
		}
		return object.Nil
	})
}

func (b *bridge) sizeFn() *object.Builtin {
	return object.NewBuiltin("collection_size", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("collection_size", 2, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("collection_size: %v", err)
		}
		n, err := b.ds.CollectionSize(id, prop)
		if err != nil {
			return object.Errorf("collection_size: %v", err)
		}
		return object.NewInt(int64(n))
	})
}

func (b *bridge) containsFn() *object.Builtin {
	return object.NewBuiltin("collection_contains", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("collection_contains", 3, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("collection_contains: %v", err)
		}
		v, err := toValue(args[2])
		if err != nil {
			return object.Errorf("collection_contains: %v", err)
		}
		found, err := b.ds.CollectionContains(id, prop, v)
		if err != nil {
			return object.Errorf("collection_contains: %v", err)
		}
		return object.NewBool(found)
	})
}

func (b *bridge) valuesFn() *object.Builtin {
	return object.NewBuiltin("collection_values", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("collection_values", 2, len(args))
		}
		id, prop, err := b.idProp(args)
		if err != nil {
			return object.Errorf("collection_values: %v", err)
		}
		values, err := b.ds.CollectionValues(id, prop)
		if err != nil {
			return object.Errorf("collection_values: %v", err)
		}
		list, err := valuesToList(values)
		if err != nil {
			return object.Errorf("collection_values: %v", err)
		}
		return list
	})
}

// --- Identifiers and queries ---

func toIDKind(obj object.Object) (store.IDKind, error) {
	s, err := toString(obj)
	if err != nil {
		return store.IDKindUnknown, err
	}
	return store.ParseIDKind(s)
}

func (b *bridge) nextIDFn() *object.Builtin {
	return object.NewBuiltin("next_id", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("next_id", 1, len(args))
		}
		kind, err := toIDKind(args[0])
		if err != nil {
			return object.Errorf("next_id: %v", err)
		}
		id, err := b.ds.GetNextID(kind)
		if err != nil {
			return object.Errorf("next_id: %v", err)
		}
		return object.NewString(id)
	})
}

func (b *bridge) idKindFn() *object.Builtin {
	return object.NewBuiltin("id_kind", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("id_kind", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("id_kind: %v", err)
		}
		return object.NewString(b.ds.GetIDKind(id).String())
	})
}

// scanFn returns scan([namespace], [type]) as a list of refs.
func (b *bridge) scanFn() *object.Builtin {
	return object.NewBuiltin("scan", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 2 {
			return object.NewArgsRangeError("scan", 0, 2, len(args))
		}
		filters := make([]string, 2)
		for i, arg := range args {
			if _, isNil := arg.(*object.NilType); isNil {
				continue
			}
			s, err := toString(arg)
			if err != nil {
				return object.Errorf("scan: %v", err)
			}
			filters[i] = s
		}
		seq, err := b.ds.Scan(filters[0], filters[1])
		if err != nil {
			return object.Errorf("scan: %v", err)
		}
		var refs []store.TypedRef
		for ref := range seq {
			refs = append(refs, ref)
		}
		return refsToList(refs)
	})
}

func (b *bridge) referrersFn() *object.Builtin {
	return object.NewBuiltin("referrers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("referrers", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("referrers: %v", err)
		}
		refs, err := store.Referrers(b.ds, id)
		if err != nil {
			return object.Errorf("referrers: %v", err)
		}
		return refsToList(refs)
	})
}

func (b *bridge) digestFn() *object.Builtin {
	return object.NewBuiltin("digest", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("digest", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("digest: %v", err)
		}
		d, err := store.Digest(b.ds, id)
		if err != nil {
			return object.Errorf("digest: %v", err)
		}
		return object.NewString(d)
	})
}

// --- Catalog ---

// listedFn returns listed(id), the catalog entry for a listed identifier
// or nil.
func (b *bridge) listedFn(catalog store.DataStore) *object.Builtin {
	return object.NewBuiltin("listed", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("listed", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("listed: %v", err)
		}
		ref, err := lookupListed(catalog, id)
		if errors.Is(err, store.ErrNotFound) {
			return object.Nil
		}
		if err != nil {
			return object.Errorf("listed: %v", err)
		}
		return refToObject(ref)
	})
}

// importListedFn returns import_listed(id), which copies a catalog entry
// into the working store unless it is already there.
func (b *bridge) importListedFn(catalog store.DataStore) *object.Builtin {
	return object.NewBuiltin("import_listed", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("import_listed", 1, len(args))
		}
		id, err := toID(args[0])
		if err != nil {
			return object.Errorf("import_listed: %v", err)
		}
		ref, err := lookupListed(catalog, id)
		if err != nil {
			return object.Errorf("import_listed: %v", err)
		}

		// Check-then-copy under the write lock so concurrent scripts do not
		// both copy the same entry.
		err = store.WithCriticalSection(b.ds, false, func() error {
			if b.ds.Exists(ref.ID) {
				existing, err := b.ds.GetTypedRef(ref.ID)
				ref = existing
				return err
			}
			ref, err = store.Copy(b.ds, catalog, ref.ID)
			return err
		})
		if err != nil {
			return object.Errorf("import_listed: %v", err)
		}
		return refToObject(ref)
	})
}

// listedResolver is implemented by catalogs that accept short listed
// identifiers such as "MIT".
type listedResolver interface {
	Resolve(id string) (store.TypedRef, error)
}

func lookupListed(catalog store.DataStore, id string) (store.TypedRef, error) {
	if r, ok := catalog.(listedResolver); ok {
		return r.Resolve(id)
	}
	return catalog.GetTypedRef(id)
}
