package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/progress"
)

type fakeRunner struct {
	mu      sync.Mutex
	batches [][]string
	release chan struct{}
	publish func(model.ProgressState)
}

func (f *fakeRunner) RunBatchByID(_ context.Context, ids []string) []model.RecordResult {
	f.mu.Lock()
	f.batches = append(f.batches, ids)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	results := make([]model.RecordResult, len(ids))
	for i, id := range ids {
		key := "QA-" + id
		if f.publish != nil {
			f.publish(model.ProgressState{RecordID: id, Phase: model.PhaseComplete, CreatedKey: key})
		}
		results[i] = model.RecordResult{RecordID: id, Key: &key, Tracking: "new"}
	}
	return results
}

func (f *fakeRunner) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

func newTestServer(runner *fakeRunner) (*importServer, *progress.Registry, http.Handler) {
	reg := progress.NewRegistry()
	runner.publish = reg.Publish
	srv := newImportServer(context.Background(), runner, reg)
	return srv, reg, srv.routes([]string{"*"})
}

func doRequest(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServe_Health(t *testing.T) {
	_, _, h := newTestServer(&fakeRunner{})

	rr := doRequest(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServe_StartImport(t *testing.T) {
	runner := &fakeRunner{}
	srv, reg, h := newTestServer(runner)

	var got []model.RecordResult
	done := make(chan struct{})
	srv.afterBatch = func(results []model.RecordResult) {
		got = results
		close(done)
	}

	rr := doRequest(h, http.MethodPost, "/imports", []byte(`{"record_ids": ["a", " ", "b"]}`))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp struct {
		Status    string   `json:"status"`
		RecordIDs []string `json:"record_ids"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, []string{"a", "b"}, resp.RecordIDs)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish")
	}
	assert.Equal(t, [][]string{{"a", "b"}}, runner.calls())
	assert.Len(t, got, 2)

	s, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, model.PhaseComplete, s.Phase)
}

func TestServe_StartImport_BadRequests(t *testing.T) {
	_, _, h := newTestServer(&fakeRunner{})

	rr := doRequest(h, http.MethodPost, "/imports", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")

	rr = doRequest(h, http.MethodPost, "/imports", []byte(`{"record_ids": []}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "record_ids is required")
}

func TestServe_SnapshotVisibleWhileQueued(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv, _, h := newTestServer(runner)

	rr := doRequest(h, http.MethodPost, "/imports", []byte(`{"record_ids": ["a"]}`))
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = doRequest(h, http.MethodGet, "/imports/a", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var view snapshotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "a", view.RecordID)
	assert.Equal(t, model.PhaseImporting, view.Phase)
	assert.Zero(t, view.Percent)

	close(runner.release)
	assert.True(t, srv.wait(context.Background()))
}

func TestServe_GetAndList(t *testing.T) {
	_, reg, h := newTestServer(&fakeRunner{})
	reg.Publish(model.ProgressState{
		RecordID: "b",
		Phase:    model.PhaseImporting,
		Steps: []model.ImportStep{
			{ID: "create", Status: model.StepCompleted},
			{ID: "plan:0", Status: model.StepPending},
		},
	})
	reg.Publish(model.ProgressState{RecordID: "a", Phase: model.PhaseComplete})

	rr := doRequest(h, http.MethodGet, "/imports/b", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view snapshotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.InDelta(t, 0.5, view.Percent, 0.001)
	assert.Len(t, view.Steps, 2)

	rr = doRequest(h, http.MethodGet, "/imports", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []snapshotView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].RecordID)

	rr = doRequest(h, http.MethodGet, "/imports/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_DismissDoesNotStopBatch(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv, reg, h := newTestServer(runner)

	done := make(chan struct{})
	srv.afterBatch = func([]model.RecordResult) { close(done) }

	require.Equal(t, http.StatusAccepted, doRequest(h, http.MethodPost, "/imports", []byte(`{"record_ids": ["a"]}`)).Code)

	rr := doRequest(h, http.MethodDelete, "/imports/a", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	close(runner.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not finish after dismissal")
	}

	// the finished batch published after dismissal; the snapshot stays hidden
	_, ok := reg.Get("a")
	assert.False(t, ok)

	rr = doRequest(h, http.MethodDelete, "/imports/a", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_CORSPreflight(t *testing.T) {
	_, _, h := newTestServer(&fakeRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/imports", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunServer_ShutsDownOnCancel(t *testing.T) {
	srv := newImportServer(context.Background(), &fakeRunner{}, progress.NewRegistry())
	hs := &http.Server{Addr: "127.0.0.1:0", Handler: srv.routes(nil)}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, hs, srv, time.Second) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
