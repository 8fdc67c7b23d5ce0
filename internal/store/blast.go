package store

import (
	"errors"
	"fmt"
)

// Referrers returns the nodes that currently hold a reference to id, sorted
// by identifier. These are the nodes that keep a Delete of id refused.
func Referrers(ds DataStore, id string) ([]TypedRef, error) {
	if !ds.Exists(id) {
		return nil, fmt.Errorf("referrers: %w: %s", ErrNotFound, id)
	}
	nodes, err := ds.Scan("", "")
	if err != nil {
		return nil, fmt.Errorf("referrers: %w", err)
	}
	target := Ref(id)
	var out []TypedRef
	for ref := range nodes {
		holds, err := holdsReference(ds, ref.ID, target)
		if errors.Is(err, ErrNotFound) {
			// Deleted after the scan snapshot was taken.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("referrers: %w", err)
		}
		if holds {
			out = append(out, ref)
		}
	}
	return out, nil
}

func holdsReference(ds DataStore, id string, target TypedRef) (bool, error) {
	props, err := ds.GetPropertyDescriptors(id)
	if err != nil {
		return false, err
	}
	for _, prop := range props {
		isCollection, err := ds.IsCollectionProperty(id, prop)
		if err != nil {
			return false, err
		}
		if isCollection {
			found, err := ds.CollectionContains(id, prop, target)
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
			continue
		}
		v, ok, err := ds.GetValue(id, prop)
		if err != nil {
			return false, err
		}
		if ok && valuesEqual(v, target) {
			return true, nil
		}
	}
	return false, nil
}
