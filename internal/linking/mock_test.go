package linking

import (
	"context"
	"sync"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/pkg/xray"
)

type call struct {
	Method string
	Key    string
	IDs    []string
}

// mockClient records every call and fails on a cancelled context. Unset fn
// fields succeed with one item added.
type mockClient struct {
	mu    sync.Mutex
	calls []call

	planFn         func(key string) (*xray.LinkResult, error)
	executionFn    func(key string) (*xray.LinkResult, error)
	setFn          func(key string) (*xray.LinkResult, error)
	folderFn       func(projectID, path string) (*xray.LinkResult, error)
	preconditionFn func(ids []string) (*xray.LinkResult, error)
	fetchFn        func(testID string) (*xray.TestLinks, error)
}

func (m *mockClient) record(method, key string, ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{Method: method, Key: key, IDs: append([]string(nil), ids...)})
}

func (m *mockClient) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func ok() (*xray.LinkResult, error) { return &xray.LinkResult{AddedCount: 1}, nil }

func (m *mockClient) LinkToPlan(ctx context.Context, key string, ids []string) (*xray.LinkResult, error) {
	m.record("plan", key, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.planFn != nil {
		return m.planFn(key)
	}
	return ok()
}

func (m *mockClient) LinkToExecution(ctx context.Context, key string, ids []string) (*xray.LinkResult, error) {
	m.record("execution", key, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.executionFn != nil {
		return m.executionFn(key)
	}
	return ok()
}

func (m *mockClient) LinkToSet(ctx context.Context, key string, ids []string) (*xray.LinkResult, error) {
	m.record("set", key, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.setFn != nil {
		return m.setFn(key)
	}
	return ok()
}

func (m *mockClient) LinkToFolder(ctx context.Context, projectID, path string, ids []string) (*xray.LinkResult, error) {
	m.record("folder", projectID+":"+path, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.folderFn != nil {
		return m.folderFn(projectID, path)
	}
	return ok()
}

func (m *mockClient) LinkPreconditions(ctx context.Context, testID string, ids []string) (*xray.LinkResult, error) {
	m.record("preconditions", testID, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.preconditionFn != nil {
		return m.preconditionFn(ids)
	}
	return ok()
}

func (m *mockClient) FetchLinks(ctx context.Context, testID string) (*xray.TestLinks, error) {
	m.record("fetch", testID, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fetchFn != nil {
		return m.fetchFn(testID)
	}
	return &xray.TestLinks{}, nil
}

// echoLinks reports every id of cfg as linked.
func echoLinks(cfg model.LinkingConfiguration) func(string) (*xray.TestLinks, error) {
	return func(string) (*xray.TestLinks, error) {
		folder := cfg.FolderPath
		return &xray.TestLinks{
			Plans:         model.TargetIDs(cfg.Plans),
			Executions:    model.TargetIDs(cfg.Executions),
			Sets:          model.TargetIDs(cfg.Sets),
			Preconditions: cfg.PreconditionIDs(),
			Folder:        &folder,
		}, nil
	}
}
