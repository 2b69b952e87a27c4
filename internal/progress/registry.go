package progress

import (
	"sort"
	"sync"

	"github.com/sells-group/tcsync/internal/model"
)

// Registry keeps the latest snapshot of each record's import for observers
// that poll. Dismissing a record hides its snapshot without touching the
// pipeline that produces it.
type Registry struct {
	mu        sync.RWMutex
	states    map[string]model.ProgressState
	dismissed map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		states:    make(map[string]model.ProgressState),
		dismissed: make(map[string]bool),
	}
}

// Watch starts (or restarts) observation of recordID, clearing a previous
// dismissal. Until the first publish the record shows an empty importing
// snapshot.
func (r *Registry) Watch(recordID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dismissed, recordID)
	r.states[recordID] = model.ProgressState{
		RecordID:    recordID,
		Phase:       model.PhaseImporting,
		Steps:       []model.ImportStep{},
		LinkedItems: []model.LinkedItem{},
		FailedItems: []model.FailedItem{},
	}
}

// Publish stores a snapshot. It can be used directly as a Tracker callback.
func (r *Registry) Publish(state model.ProgressState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dismissed[state.RecordID] {
		return
	}
	r.states[state.RecordID] = state
}

// Get returns the latest snapshot for recordID.
func (r *Registry) Get(recordID string) (model.ProgressState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[recordID]
	if !ok {
		return model.ProgressState{}, false
	}
	return s.Clone(), true
}

// Dismiss drops the snapshot of recordID and ignores further updates until
// the record is watched again. It reports whether a snapshot existed.
func (r *Registry) Dismiss(recordID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.states[recordID]
	delete(r.states, recordID)
	r.dismissed[recordID] = true
	return ok
}

// List returns every visible snapshot ordered by record id.
func (r *Registry) List() []model.ProgressState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProgressState, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out
}
