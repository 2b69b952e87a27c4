package progress

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tcsync/internal/model"
)

// Tracker is the step-state machine of one import attempt. Only the
// pipeline that created it mutates it; every mutation publishes a snapshot
// to the onChange callback. Snapshot may be called from any goroutine.
type Tracker struct {
	mu       sync.Mutex
	state    model.ProgressState
	index    map[string]int
	onChange func(model.ProgressState)
}

// NewTracker returns a tracker for recordID. onChange may be nil.
func NewTracker(recordID string, onChange func(model.ProgressState)) *Tracker {
	return &Tracker{
		state:    model.ProgressState{RecordID: recordID},
		onChange: onChange,
	}
}

// Begin precomputes the step list and enters the importing phase.
func (t *Tracker) Begin(cfg model.LinkingConfiguration, tracking model.Tracking) {
	steps := PlanSteps(cfg, tracking)
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.ID] = i
	}

	t.update(func(s *model.ProgressState) {
		*s = model.ProgressState{
			RecordID: s.RecordID,
			Tracking: tracking.Kind(),
			Phase:    model.PhaseImporting,
			Steps:    steps,
		}
		t.index = index
	})
}

// MarkStep transitions one step. Transitions that would move a step
// backwards, and unknown step ids, are rejected.
func (t *Tracker) MarkStep(id string, status model.StepStatus, errMsg string) error {
	var err error
	t.update(func(s *model.ProgressState) {
		i, ok := t.index[id]
		if !ok {
			err = eris.Errorf("progress: unknown step %q", id)
			return
		}
		step := &s.Steps[i]
		if !step.Status.CanTransition(status) {
			err = eris.Errorf("progress: step %q cannot move from %s to %s", id, step.Status, status)
			return
		}
		step.Status = status
		if status == model.StepFailed {
			step.Error = errMsg
		}
	})
	return err
}

// Advance moves the current index past one attempted operation.
func (t *Tracker) Advance() {
	t.update(func(s *model.ProgressState) {
		if s.CurrentIndex < len(s.Steps) {
			s.CurrentIndex++
		}
	})
}

// SetCreated records the external id and key of the created or updated issue.
func (t *Tracker) SetCreated(id, key string) {
	t.update(func(s *model.ProgressState) {
		s.CreatedID = id
		s.CreatedKey = key
	})
}

// Validating enters the validating phase.
func (t *Tracker) Validating() {
	t.update(func(s *model.ProgressState) {
		s.Phase = model.PhaseValidating
	})
}

// Finish freezes the outcome of the linking plan and completes the attempt.
func (t *Tracker) Finish(res model.LinkingResult) {
	t.update(func(s *model.ProgressState) {
		s.Phase = model.PhaseComplete
		s.LinkedItems = append([]model.LinkedItem(nil), res.LinkedItems...)
		s.FailedItems = append([]model.FailedItem(nil), res.FailedItems...)
		s.HasErrors = res.HasErrors
		v := res.Validation.Clone()
		s.Validation = &v
	})
}

// Fail completes the attempt after a creation or update failure; no linking
// was attempted.
func (t *Tracker) Fail(item model.FailedItem) {
	t.update(func(s *model.ProgressState) {
		s.Phase = model.PhaseComplete
		s.FailedItems = append(s.FailedItems, item)
		s.HasErrors = true
	})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() model.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Tracker) update(fn func(s *model.ProgressState)) {
	t.mu.Lock()
	fn(&t.state)
	snap := t.state.Clone()
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(snap)
	}
}
