package store

import (
	"strconv"
	"strings"
	"sync"
)

// placeholderPrefix marks identifiers handed out by Batch.NextID. They are
// replaced with real generated identifiers at commit time.
const placeholderPrefix = "_:batch"

type opKind int

const (
	opCreate opKind = iota
	opSet
	opAdd
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opSet:
		return "set"
	case opAdd:
		return "add"
	}
	return "unknown"
}

type batchOp struct {
	kind  opKind
	ref   TypedRef // opCreate
	id    string
	prop  PropertyDescriptor
	value Value
}

// Batch buffers node writes so a producer can build a subgraph without
// holding any store lock, then apply it to a DataStore in one write critical
// section with CommitBatch.
//
// Thread safety: the mutex protects placeholder allocation and the op list.
type Batch struct {
	mu           sync.Mutex
	ops          []batchOp
	placeholders map[string]IDKind
	nextFake     int
}

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{placeholders: make(map[string]IDKind)}
}

// NextID reserves an identifier of kind. The returned placeholder may be
// used as a node identifier or reference target anywhere in the batch.
func (b *Batch) NextID(kind IDKind) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextFake++
	id := placeholderPrefix + strconv.Itoa(b.nextFake)
	b.placeholders[id] = kind
	return id
}

// IsPlaceholder reports whether id was issued by a Batch.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

func (b *Batch) Create(ref TypedRef) {
	b.append(batchOp{kind: opCreate, ref: ref, id: ref.ID})
}

func (b *Batch) Set(id string, prop PropertyDescriptor, v Value) {
	b.append(batchOp{kind: opSet, id: id, prop: prop, value: v})
}

func (b *Batch) Add(id string, prop PropertyDescriptor, v Value) {
	b.append(batchOp{kind: opAdd, id: id, prop: prop, value: v})
}

// Len returns the number of buffered operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

func (b *Batch) append(op batchOp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
}

// drain hands the buffered state to the committer and resets the batch.
func (b *Batch) drain() ([]batchOp, map[string]IDKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops, placeholders := b.ops, b.placeholders
	b.ops = nil
	b.placeholders = make(map[string]IDKind)
	return ops, placeholders
}
