package model

// StepStatus is the lifecycle state of one import step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

// CanTransition reports whether a step may move from s to next.
// Statuses only move forward: pending -> in-progress -> completed|failed.
func (s StepStatus) CanTransition(next StepStatus) bool {
	switch s {
	case StepPending:
		return next == StepInProgress
	case StepInProgress:
		return next == StepCompleted || next == StepFailed
	default:
		return false
	}
}

// ImportStep is one planned operation of an import attempt.
type ImportStep struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Category Category   `json:"category,omitempty"`
	Status   StepStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// Phase is the coarse stage of an import attempt.
type Phase string

const (
	PhaseImporting  Phase = "importing"
	PhaseValidating Phase = "validating"
	PhaseComplete   Phase = "complete"
)

// ProgressState is the observable state of a single import attempt.
type ProgressState struct {
	RecordID     string            `json:"record_id,omitempty"`
	Tracking     string            `json:"tracking,omitempty"`
	Phase        Phase             `json:"phase"`
	Steps        []ImportStep      `json:"steps"`
	CurrentIndex int               `json:"current_index"`
	CreatedID    string            `json:"created_id,omitempty"`
	CreatedKey   string            `json:"created_key,omitempty"`
	LinkedItems  []LinkedItem      `json:"linked_items"`
	FailedItems  []FailedItem      `json:"failed_items"`
	HasErrors    bool              `json:"has_errors"`
	Validation   *ValidationResult `json:"validation,omitempty"`
}

// Counts returns the number of completed and failed steps.
func (p ProgressState) Counts() (completed, failed int) {
	for _, s := range p.Steps {
		switch s.Status {
		case StepCompleted:
			completed++
		case StepFailed:
			failed++
		}
	}
	return completed, failed
}

// Percent returns the fraction of steps attempted, in [0, 1].
func (p ProgressState) Percent() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	completed, failed := p.Counts()
	return float64(completed+failed) / float64(len(p.Steps))
}

// Clone returns a deep copy safe to hand to observers.
func (p ProgressState) Clone() ProgressState {
	out := p
	out.Steps = append([]ImportStep(nil), p.Steps...)
	out.LinkedItems = append([]LinkedItem(nil), p.LinkedItems...)
	out.FailedItems = append([]FailedItem(nil), p.FailedItems...)
	if p.Validation != nil {
		v := p.Validation.Clone()
		out.Validation = &v
	}
	return out
}
