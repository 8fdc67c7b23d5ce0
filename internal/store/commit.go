package store

import "fmt"

// CommitBatch applies every buffered operation of batch to ds, in order,
// inside one write critical section. Placeholder identifiers are replaced
// with identifiers from ds.GetNextID the first time they are used, and all
// references to them are rewritten with the same mapping.
//
// The batch is drained whether or not the commit succeeds. Commit stops at
// the first failing operation; operations before it stay applied. The
// returned map holds every placeholder resolved so far.
func CommitBatch(ds DataStore, batch *Batch) (map[string]string, error) {
	ops, placeholders := batch.drain()
	fakeToReal := make(map[string]string, len(placeholders))

	resolve := func(id string) (string, error) {
		kind, ok := placeholders[id]
		if !ok {
			return id, nil
		}
		if real, ok := fakeToReal[id]; ok {
			return real, nil
		}
		real, err := ds.GetNextID(kind)
		if err != nil {
			return "", err
		}
		fakeToReal[id] = real
		return real, nil
	}

	err := WithCriticalSection(ds, false, func() error {
		for i, op := range ops {
			id, err := resolve(op.id)
			if err != nil {
				return fmt.Errorf("commit batch: op %d (%s %s): %w", i, op.kind, op.id, err)
			}
			value := op.value
			if ref, ok := value.(TypedRef); ok {
				if ref.ID, err = resolve(ref.ID); err != nil {
					return fmt.Errorf("commit batch: op %d (%s %s): %w", i, op.kind, op.id, err)
				}
				value = ref
			}

			switch op.kind {
			case opCreate:
				ref := op.ref
				ref.ID = id
				err = ds.Create(ref)
			case opSet:
				err = ds.SetValue(id, op.prop, value)
			case opAdd:
				err = ds.AddToCollection(id, op.prop, value)
			}
			if err != nil {
				return fmt.Errorf("commit batch: op %d (%s %s): %w", i, op.kind, id, err)
			}
		}
		return nil
	})
	return fakeToReal, err
}
