package model

// LinkedItem records one successful link operation.
type LinkedItem struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// FailedItem records one failed operation and the reason.
type FailedItem struct {
	Label string `json:"label"`
	Error string `json:"error"`
}

// CategoryValidation is the read-back diff for one category.
type CategoryValidation struct {
	Expected []string `json:"expected"`
	Found    []string `json:"found"`
	Missing  []string `json:"missing"`
}

// FolderValidation is the read-back check for the repository folder.
type FolderValidation struct {
	Expected string `json:"expected"`
	Found    string `json:"found"`
	Valid    bool   `json:"valid"`
}

// ValidationResult is the outcome of reconciling requested links against
// what the external system reports.
type ValidationResult struct {
	IsValidated   bool               `json:"is_validated"`
	Plans         CategoryValidation `json:"plans"`
	Executions    CategoryValidation `json:"executions"`
	Sets          CategoryValidation `json:"sets"`
	Preconditions CategoryValidation `json:"preconditions"`
	Folder        FolderValidation   `json:"folder"`
}

// HasDrift reports whether any expected link is missing or the folder does
// not match.
func (v ValidationResult) HasDrift() bool {
	for _, c := range []CategoryValidation{v.Plans, v.Executions, v.Sets, v.Preconditions} {
		if len(c.Missing) > 0 {
			return true
		}
	}
	return !v.Folder.Valid
}

// Clone returns a deep copy.
func (v ValidationResult) Clone() ValidationResult {
	cp := func(c CategoryValidation) CategoryValidation {
		return CategoryValidation{
			Expected: append([]string(nil), c.Expected...),
			Found:    append([]string(nil), c.Found...),
			Missing:  append([]string(nil), c.Missing...),
		}
	}
	return ValidationResult{
		IsValidated:   v.IsValidated,
		Plans:         cp(v.Plans),
		Executions:    cp(v.Executions),
		Sets:          cp(v.Sets),
		Preconditions: cp(v.Preconditions),
		Folder:        v.Folder,
	}
}

// LinkingResult is the terminal output of one entity's linking plan.
type LinkingResult struct {
	LinkedItems []LinkedItem     `json:"linked_items"`
	FailedItems []FailedItem     `json:"failed_items"`
	HasErrors   bool             `json:"has_errors"`
	Validation  ValidationResult `json:"validation"`
}

// Outcome is the consumer-visible classification of one record's import.
type Outcome string

const (
	OutcomeFailed   Outcome = "failed"
	OutcomeWarnings Outcome = "success_with_warnings"
	OutcomeSuccess  Outcome = "success"
)

// RecordResult is one entry of a batch import.
type RecordResult struct {
	RecordID    string         `json:"record_id"`
	Key         *string        `json:"key"`
	Error       *string        `json:"error"`
	HasWarnings bool           `json:"has_warnings"`
	Tracking    string         `json:"tracking"`
	Progress    *ProgressState `json:"progress,omitempty"`
}

// Outcome classifies the result: no key is a failure, a key with errors is
// a success with warnings.
func (r RecordResult) Outcome() Outcome {
	switch {
	case r.Key == nil:
		return OutcomeFailed
	case r.HasWarnings:
		return OutcomeWarnings
	default:
		return OutcomeSuccess
	}
}
