package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tcsync/internal/model"
)

// ErrNotFound is returned (wrapped) when a record or run does not exist.
var ErrNotFound = eris.New("not found")

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	Status model.RecordStatus `json:"status,omitempty"`
	Source string             `json:"source,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing import runs.
type RunFilter struct {
	RecordID     string          `json:"record_id,omitempty"`
	Status       model.RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// RunCompletion is the final state written to an import run.
type RunCompletion struct {
	Status      model.RunStatus
	ExternalKey string
	Progress    *model.ProgressState
	Error       string
}

// Store defines the persistence interface for local test-case records and
// their import history.
type Store interface {
	// Records
	CreateRecord(ctx context.Context, tc *model.TestCase) error
	UpsertRecord(ctx context.Context, tc *model.TestCase) error
	GetRecord(ctx context.Context, id string) (*model.TestCase, error)
	UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.TestCase, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.TestCase, error)
	DeleteRecord(ctx context.Context, id string) error

	// Import runs
	CreateRun(ctx context.Context, recordID, tracking string) (*model.ImportRun, error)
	CompleteRun(ctx context.Context, runID string, c RunCompletion) error
	GetRun(ctx context.Context, runID string) (*model.ImportRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is a not-found error from a Store.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

// prepareNew fills the id, status and timestamps of a record about to be
// inserted.
func prepareNew(tc *model.TestCase, now time.Time) {
	if strings.TrimSpace(tc.ID) == "" {
		tc.ID = uuid.New().String()
	}
	if tc.Status == "" {
		tc.Status = model.RecordDraft
	}
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = now
	}
	tc.UpdatedAt = now
}

// mergeExisting carries import state forward when a record is re-added from
// its source, so a re-import still updates the existing external issue.
func mergeExisting(existing, incoming *model.TestCase) {
	incoming.CreatedAt = existing.CreatedAt
	if incoming.ExternalID == "" {
		incoming.ExternalID = existing.ExternalID
	}
	if incoming.ExternalKey == "" {
		incoming.ExternalKey = existing.ExternalKey
	}
	if incoming.ImportedAt == nil {
		incoming.ImportedAt = existing.ImportedAt
	}
	if incoming.Status == "" || incoming.Status == model.RecordDraft {
		incoming.Status = existing.Status
	}
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

func encodeRecord(tc *model.TestCase) ([]byte, error) {
	b, err := json.Marshal(tc)
	return b, eris.Wrap(err, "marshal record")
}

func decodeRecord(b []byte) (*model.TestCase, error) {
	var tc model.TestCase
	if err := json.Unmarshal(b, &tc); err != nil {
		return nil, eris.Wrap(err, "unmarshal record")
	}
	return &tc, nil
}

func encodeProgress(p *model.ProgressState) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	return b, eris.Wrap(err, "marshal progress")
}

func decodeProgress(b []byte) (*model.ProgressState, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var p model.ProgressState
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, eris.Wrap(err, "unmarshal progress")
	}
	return &p, nil
}
