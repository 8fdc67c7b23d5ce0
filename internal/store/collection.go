package store

import (
	"slices"
	"strings"
)

// bucketKey groups collection entries by value identity: one bucket per
// referenced node, and one shared bucket (the zero key) for everything else.
type bucketKey struct {
	ref bool
	id  string
}

func keyOf(v Value) bucketKey {
	if r, ok := v.(TypedRef); ok {
		return bucketKey{ref: true, id: strings.ToLower(r.ID)}
	}
	return bucketKey{}
}

// entry is one occurrence of a value. seq orders entries across buckets.
type entry struct {
	seq   uint64
	value Value
}

// collection is an ordered multi-valued bag bucketed by value identity, so
// all occurrences of one referenced node can be found without scanning the
// whole collection. Callers synchronize through the owning property.
type collection struct {
	buckets map[bucketKey][]entry
	size    int
	seq     uint64
}

func newCollection() *collection {
	return &collection{buckets: make(map[bucketKey][]entry)}
}

func (c *collection) add(v Value) {
	k := keyOf(v)
	c.seq++
	c.buckets[k] = append(c.buckets[k], entry{seq: c.seq, value: v})
	c.size++
}

// remove drops the earliest occurrence of v. Empty buckets are removed.
func (c *collection) remove(v Value) bool {
	k := keyOf(v)
	bucket := c.buckets[k]
	i := slices.IndexFunc(bucket, func(e entry) bool { return valuesEqual(e.value, v) })
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(c.buckets, k)
	} else {
		c.buckets[k] = bucket
	}
	c.size--
	return true
}

// find returns the stored occurrence equal to v.
func (c *collection) find(v Value) (Value, bool) {
	for _, e := range c.buckets[keyOf(v)] {
		if valuesEqual(e.value, v) {
			return e.value, true
		}
	}
	return nil, false
}

func (c *collection) contains(v Value) bool {
	_, ok := c.find(v)
	return ok
}

func (c *collection) len() int {
	return c.size
}

// values flattens the buckets back into insertion order.
func (c *collection) values() []Value {
	all := make([]entry, 0, c.size)
	for _, bucket := range c.buckets {
		all = append(all, bucket...)
	}
	slices.SortFunc(all, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]Value, len(all))
	for i, e := range all {
		out[i] = e.value
	}
	return out
}

// refs returns every reference occurrence, with multiplicity.
func (c *collection) refs() []TypedRef {
	var out []TypedRef
	for k, bucket := range c.buckets {
		if !k.ref {
			continue
		}
		for _, e := range bucket {
			out = append(out, e.value.(TypedRef))
		}
	}
	return out
}

func (c *collection) clear() {
	c.buckets = make(map[bucketKey][]entry)
	c.size = 0
}
