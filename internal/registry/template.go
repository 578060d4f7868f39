package registry

import (
	"sync"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// TemplateRegistry collects template candidates while the scanner walks the
// template roots. Candidates are appended per name, never replaced.
type TemplateRegistry struct {
	index *types.Index
	mutex sync.RWMutex
}

// NewTemplateRegistry creates a new template registry
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{index: types.NewIndex()}
}

// Register appends a candidate to a template name.
func (r *TemplateRegistry) Register(name string, candidate types.CandidatePath) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.index.Append(name, candidate)
}

// Merge appends every candidate of another index, keeping its key order.
func (r *TemplateRegistry) Merge(other *types.Index) {
	if other == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, name := range other.Names {
		entry, ok := other.Entries[name]
		if !ok {
			continue
		}
		for _, candidate := range entry.Paths {
			r.index.Append(name, candidate)
		}
	}
}

// Index returns a deep copy of the collected index.
func (r *TemplateRegistry) Index() *types.Index {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return CloneIndex(r.index)
}

// Count returns the number of registered template names
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.index.Len()
}

// Reset drops every registered template.
func (r *TemplateRegistry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.index = types.NewIndex()
}

// CloneIndex deep-copies an index so callers cannot mutate shared state.
func CloneIndex(idx *types.Index) *types.Index {
	clone := types.NewIndex()
	if idx == nil {
		return clone
	}
	for _, name := range idx.Names {
		entry, ok := idx.Entries[name]
		if !ok || entry == nil {
			continue
		}
		for _, candidate := range entry.Paths {
			clone.Append(name, candidate)
		}
	}
	return clone
}
