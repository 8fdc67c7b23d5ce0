package store

// CollectionView is a lazily materialized view of one collection property.
// Every call goes back to the store, so the view always reflects current
// state and never holds node records.
type CollectionView struct {
	ds   DataStore
	id   string
	prop PropertyDescriptor
}

// NewCollectionView returns a view over prop of node id in ds.
func NewCollectionView(ds DataStore, id string, prop PropertyDescriptor) *CollectionView {
	return &CollectionView{ds: ds, id: id, prop: prop}
}

func (v *CollectionView) ID() string                   { return v.id }
func (v *CollectionView) Property() PropertyDescriptor { return v.prop }

func (v *CollectionView) Size() (int, error) {
	return v.ds.CollectionSize(v.id, v.prop)
}

func (v *CollectionView) Contains(val Value) (bool, error) {
	return v.ds.CollectionContains(v.id, v.prop, val)
}

func (v *CollectionView) Values() ([]Value, error) {
	return v.ds.CollectionValues(v.id, v.prop)
}

func (v *CollectionView) Add(val Value) error {
	return v.ds.AddToCollection(v.id, v.prop, val)
}

func (v *CollectionView) Remove(val Value) (bool, error) {
	return v.ds.RemoveFromCollection(v.id, v.prop, val)
}

func (v *CollectionView) Clear() error {
	return v.ds.ClearCollection(v.id, v.prop)
}
