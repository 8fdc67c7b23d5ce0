package store

import (
	"errors"
	"fmt"
)

// Copy creates node id of src in dst with the same type, spec version and
// property values. Reference targets must already exist in dst. On failure
// the partially copied node is removed again and dst is left as it was.
func Copy(dst, src DataStore, id string) (TypedRef, error) {
	ref, err := src.GetTypedRef(id)
	if err != nil {
		return TypedRef{}, fmt.Errorf("copy: %w", err)
	}
	props, err := src.GetPropertyDescriptors(id)
	if err != nil {
		return TypedRef{}, fmt.Errorf("copy %s: %w", id, err)
	}
	if err := dst.Create(ref); err != nil {
		return TypedRef{}, fmt.Errorf("copy: %w", err)
	}
	if err := copyProperties(dst, src, ref.ID, props); err != nil {
		if delErr := dst.Delete(ref.ID); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return TypedRef{}, fmt.Errorf("copy %s: %w", ref.ID, err)
	}
	return ref, nil
}

func copyProperties(dst, src DataStore, id string, props []PropertyDescriptor) error {
	for _, prop := range props {
		isCollection, err := src.IsCollectionProperty(id, prop)
		if err != nil {
			return err
		}
		if !isCollection {
			v, ok, err := src.GetValue(id, prop)
			if err != nil {
				return err
			}
			if ok {
				if err := dst.SetValue(id, prop, v); err != nil {
					return err
				}
			}
			continue
		}
		values, err := src.CollectionValues(id, prop)
		if err != nil {
			return err
		}
		for _, v := range values {
			if err := dst.AddToCollection(id, prop, v); err != nil {
				return err
			}
		}
	}
	return nil
}
