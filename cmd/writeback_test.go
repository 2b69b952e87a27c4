package main

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/store"
)

type mapRecords map[string]*model.TestCase

func (m mapRecords) GetRecord(_ context.Context, id string) (*model.TestCase, error) {
	if tc, ok := m[id]; ok {
		return tc, nil
	}
	return nil, store.ErrNotFound
}

type recordingNotion struct {
	updates map[string]*notionapi.PageUpdateRequest
	err     error
}

func (r *recordingNotion) QueryDatabase(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (r *recordingNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.updates == nil {
		r.updates = map[string]*notionapi.PageUpdateRequest{}
	}
	r.updates[pageID] = req
	return &notionapi.Page{}, nil
}

func statusOf(req *notionapi.PageUpdateRequest) string {
	return req.Properties["Status"].(notionapi.StatusProperty).Status.Name
}

func TestWriteBack(t *testing.T) {
	key := "QA-7"
	msg := "summary is required"
	records := mapRecords{
		"page-1": {ID: "page-1", Source: "notion"},
		"page-2": {ID: "page-2", Source: "notion"},
		"file-1": {ID: "file-1", Source: "file"},
	}
	results := []model.RecordResult{
		{RecordID: "page-1", Key: &key, Progress: &model.ProgressState{CreatedID: "10007"}},
		{RecordID: "page-2", Error: &msg},
		{RecordID: "file-1", Key: &key},
		{RecordID: "gone", Error: &msg},
	}

	nc := &recordingNotion{}
	n := writeBack(context.Background(), records, nc, results)

	assert.Equal(t, 2, n)
	require.Contains(t, nc.updates, "page-1")
	require.Contains(t, nc.updates, "page-2")
	assert.NotContains(t, nc.updates, "file-1")

	assert.Equal(t, notionStatusImported, statusOf(nc.updates["page-1"]))
	assert.Contains(t, nc.updates["page-1"].Properties, "Jira ID")
	assert.Equal(t, notionStatusFailed, statusOf(nc.updates["page-2"]))
}

func TestWriteBack_NilClient(t *testing.T) {
	assert.Zero(t, writeBack(context.Background(), mapRecords{}, nil, []model.RecordResult{{RecordID: "x"}}))
}

func TestWriteBack_UpdateFailureSkipped(t *testing.T) {
	key := "QA-1"
	records := mapRecords{"page-1": {ID: "page-1", Source: "notion"}}
	nc := &recordingNotion{err: assert.AnError}

	n := writeBack(context.Background(), records, nc, []model.RecordResult{{RecordID: "page-1", Key: &key}})
	assert.Zero(t, n)
}

func TestSyncStateFor_Warnings(t *testing.T) {
	key := "QA-3"
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	rec := &model.TestCase{ID: "p", ExternalID: "10003"}

	s := syncStateFor(model.RecordResult{
		RecordID:    "p",
		Key:         &key,
		HasWarnings: true,
		Progress: &model.ProgressState{
			FailedItems: []model.FailedItem{{Label: "Plan: Release", Error: "not found"}},
		},
	}, rec, now)

	assert.Equal(t, notionStatusWarnings, s.Status)
	assert.Equal(t, "QA-3", s.IssueKey)
	assert.Equal(t, "10003", s.IssueID)
	assert.Equal(t, "Plan: Release: not found", s.Message)
	assert.Equal(t, now, s.SyncedAt)

	s = syncStateFor(model.RecordResult{Key: &key, HasWarnings: true, Progress: &model.ProgressState{}}, rec, now)
	assert.Equal(t, "linked items missing on read-back", s.Message)
}
