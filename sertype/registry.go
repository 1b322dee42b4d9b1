package sertype

import (
	"encoding/binary"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registry interns type handles by structure and name. Entries do not hold
// references: a handle is dropped when its last reference is released.
type Registry struct {
	mu      sync.Mutex
	buckets map[uint32][]*Default
}

func NewRegistry() *Registry {
	return &Registry{buckets: make(map[uint32][]*Default)}
}

// Intern returns the registered handle equal to t with an added reference,
// or registers t and returns it. The boolean reports whether an existing
// handle was returned, in which case the caller still owns its reference
// on t.
func (r *Registry) Intern(t *Default) (*Default, bool) {
	h := t.Hash()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cand := range r.buckets[h] {
		if cand.Name() == t.Name() && cand.Equal(t) && cand.tryRef() {
			return cand, true
		}
	}
	if !t.registry.CompareAndSwap(nil, r) {
		return t, false
	}
	r.buckets[h] = append(r.buckets[h], t)
	Logger().Debug("sertype registered", zap.String("type", t.Name()), zap.Stringer("typeid", t.TypeID()))
	return t, false
}

// Find returns a live handle with the given TypeID and an added reference.
func (r *Registry) Find(id TypeID) (*Default, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found, ok := lo.Find(r.buckets[binary.LittleEndian.Uint32(id[:4])], func(t *Default) bool {
		return t.TypeID() == id && t.tryRef()
	})
	return found, ok
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.SumBy(lo.Values(r.buckets), func(b []*Default) int { return len(b) })
}

func (r *Registry) remove(t *Default) {
	h := t.Hash()

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := lo.Without(r.buckets[h], t)
	if len(bucket) == 0 {
		delete(r.buckets, h)
	} else {
		r.buckets[h] = bucket
	}
	t.registry.Store(nil)
	Logger().Debug("sertype unregistered", zap.String("type", t.Name()))
}
