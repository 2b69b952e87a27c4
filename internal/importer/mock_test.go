package importer

import (
	"context"
	"sync"

	"github.com/sells-group/tcsync/internal/linking"
	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/store"
	"github.com/sells-group/tcsync/pkg/xray"
)

type mockIssues struct {
	mu       sync.Mutex
	calls    []string
	fields   []xray.IssueFields
	createFn func(ctx context.Context, fields xray.IssueFields) (*xray.IssueRef, error)
	updateFn func(ctx context.Context, id string, fields xray.IssueFields) (*xray.IssueRef, error)
}

func (m *mockIssues) Create(ctx context.Context, fields xray.IssueFields) (*xray.IssueRef, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "create:"+fields.Summary)
	m.fields = append(m.fields, fields)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, fields)
	}
	return &xray.IssueRef{ID: "10001", Key: "QA-1"}, nil
}

func (m *mockIssues) Update(ctx context.Context, id string, fields xray.IssueFields) (*xray.IssueRef, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "update:"+id)
	m.fields = append(m.fields, fields)
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fields)
	}
	return &xray.IssueRef{ID: id}, nil
}

func (m *mockIssues) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockLinker struct {
	mu        sync.Mutex
	linkedIDs []string
	fn        func(createdID string, cfg model.LinkingConfiguration, obs linking.Observer) model.LinkingResult
}

func (m *mockLinker) ExecuteLinking(_ context.Context, createdID string, cfg model.LinkingConfiguration, obs linking.Observer) model.LinkingResult {
	m.mu.Lock()
	m.linkedIDs = append(m.linkedIDs, createdID)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(createdID, cfg, obs)
	}
	return model.LinkingResult{Validation: model.ValidationResult{IsValidated: true, Folder: model.FolderValidation{Valid: true}}}
}

type mockStore struct {
	mu       sync.Mutex
	records  map[string]*model.TestCase
	runs     map[string]store.RunCompletion
	getErr   error
	updateFn func(id string, patch model.RecordPatch) (*model.TestCase, error)
}

func newMockStore(records ...model.TestCase) *mockStore {
	s := &mockStore{records: make(map[string]*model.TestCase), runs: make(map[string]store.RunCompletion)}
	for i := range records {
		r := records[i]
		s.records[r.ID] = &r
	}
	return s
}

func (m *mockStore) GetRecord(_ context.Context, id string) (*model.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) UpdateRecord(_ context.Context, id string, patch model.RecordPatch) (*model.TestCase, error) {
	if m.updateFn != nil {
		return m.updateFn(id, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(r)
	cp := *r
	return &cp, nil
}

func (m *mockStore) CreateRun(_ context.Context, recordID, tracking string) (*model.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := recordID + "-run"
	return &model.ImportRun{ID: id, RecordID: recordID, Tracking: tracking, Status: model.RunStatusRunning}, nil
}

func (m *mockStore) CompleteRun(_ context.Context, runID string, c store.RunCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = c
	return nil
}
