package store

import (
	"crypto/sha256"
	"fmt"
)

// Digest computes a deterministic hash of a node's content: type, spec
// version and every property value. Collections hash in insertion order.
// The node's own identifier is not hashed, so equal nodes under different
// identifiers produce equal digests; reference targets are hashed by
// identifier.
func Digest(ds DataStore, id string) (string, error) {
	ref, err := ds.GetTypedRef(id)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	props, err := ds.GetPropertyDescriptors(id)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "type:%s\n", ref.Type)
	fmt.Fprintf(h, "spec:%s\n", ref.SpecVersion)

	// Descriptors come back sorted, which keeps the hash stable.
	for _, prop := range props {
		isCollection, err := ds.IsCollectionProperty(id, prop)
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", id, err)
		}
		if isCollection {
			values, err := ds.CollectionValues(id, prop)
			if err != nil {
				return "", fmt.Errorf("digest %s: %w", id, err)
			}
			fmt.Fprintf(h, "collection:%s:%d\n", prop, len(values))
			for _, v := range values {
				text, err := digestText(v)
				if err != nil {
					return "", fmt.Errorf("digest %s: %w", id, err)
				}
				fmt.Fprintf(h, "  %s\n", text)
			}
			continue
		}
		v, ok, err := ds.GetValue(id, prop)
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", id, err)
		}
		if !ok {
			continue
		}
		text, err := digestText(v)
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", id, err)
		}
		fmt.Fprintf(h, "scalar:%s=%s\n", prop, text)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
