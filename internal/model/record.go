package model

import "time"

// RecordStatus is the lifecycle status of a local test-case record.
type RecordStatus string

const (
	RecordDraft    RecordStatus = "draft"
	RecordReady    RecordStatus = "ready"
	RecordImported RecordStatus = "imported"
	RecordFailed   RecordStatus = "failed"
)

// TestStep is one manual step of a test case.
type TestStep struct {
	Action   string `json:"action" yaml:"action"`
	Data     string `json:"data,omitempty" yaml:"data,omitempty"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// TestCase is a locally authored test-case record.
type TestCase struct {
	ID          string               `json:"id" yaml:"id"`
	ProjectKey  string               `json:"project_key,omitempty" yaml:"project_key,omitempty"`
	Title       string               `json:"title" yaml:"title"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	TestType    string               `json:"test_type,omitempty" yaml:"test_type,omitempty"`
	Priority    string               `json:"priority,omitempty" yaml:"priority,omitempty"`
	Labels      []string             `json:"labels,omitempty" yaml:"labels,omitempty"`
	Steps       []TestStep           `json:"steps,omitempty" yaml:"steps,omitempty"`
	Linking     LinkingConfiguration `json:"linking" yaml:"linking"`
	Status      RecordStatus         `json:"status" yaml:"status,omitempty"`
	ExternalID  string               `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	ExternalKey string               `json:"external_key,omitempty" yaml:"external_key,omitempty"`
	Source      string               `json:"source,omitempty" yaml:"-"`
	ImportedAt  *time.Time           `json:"imported_at,omitempty" yaml:"-"`
	CreatedAt   time.Time            `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time            `json:"updated_at" yaml:"-"`
}

// RecordPatch holds the fields to change on a record. Nil fields are left
// untouched.
type RecordPatch struct {
	Status      *RecordStatus
	ExternalID  *string
	ExternalKey *string
	ImportedAt  *time.Time
}

// Apply copies the non-nil fields of p onto tc.
func (p RecordPatch) Apply(tc *TestCase) {
	if p.Status != nil {
		tc.Status = *p.Status
	}
	if p.ExternalID != nil {
		tc.ExternalID = *p.ExternalID
	}
	if p.ExternalKey != nil {
		tc.ExternalKey = *p.ExternalKey
	}
	if p.ImportedAt != nil {
		t := *p.ImportedAt
		tc.ImportedAt = &t
	}
}
