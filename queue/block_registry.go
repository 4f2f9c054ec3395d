package queue

import (
	"fmt"
	"sync"
)

// BlockIndex identifies a blocking reason bit assigned by the registry.
type BlockIndex uint8

// MaxBlockReasons is the number of distinct reasons an entry can carry.
const MaxBlockReasons = 64

// InvalidBlockIndex indicates registration failure.
const InvalidBlockIndex BlockIndex = ^BlockIndex(0)

// BlockRegistry allocates BlockIndex values by name.
type BlockRegistry struct {
	mu          sync.Mutex
	nameToIndex map[string]BlockIndex
	names       []string
}

// NewBlockRegistry creates an empty registry.
func NewBlockRegistry() *BlockRegistry {
	return &BlockRegistry{nameToIndex: make(map[string]BlockIndex)}
}

// Register assigns a bit for name. Registering the same name twice returns
// the same index.
func (r *BlockRegistry) Register(name string) (BlockIndex, error) {
	if name == "" {
		return InvalidBlockIndex, fmt.Errorf("block reason name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.nameToIndex[name]; ok {
		return idx, nil
	}
	if len(r.names) >= MaxBlockReasons {
		return InvalidBlockIndex, fmt.Errorf("block registry limit reached (%d)", MaxBlockReasons)
	}
	idx := BlockIndex(len(r.names))
	r.nameToIndex[name] = idx
	r.names = append(r.names, name)
	return idx, nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (r *BlockRegistry) MustRegister(name string) BlockIndex {
	idx, err := r.Register(name)
	if err != nil {
		panic(err)
	}
	return idx
}

// Name returns the name registered for index.
func (r *BlockRegistry) Name(index BlockIndex) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := int(index)
	if i >= len(r.names) {
		return "", false
	}
	return r.names[i], true
}

// Count returns the number of registered reasons.
func (r *BlockRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
