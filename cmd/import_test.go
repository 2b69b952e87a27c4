package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/store"
)

type fakeLister struct {
	records []model.TestCase
	filter  store.RecordFilter
	err     error
}

func (f *fakeLister) ListRecords(_ context.Context, filter store.RecordFilter) ([]model.TestCase, error) {
	f.filter = filter
	return f.records, f.err
}

func TestResolveImportIDs(t *testing.T) {
	ctx := context.Background()

	ids, err := resolveImportIDs(ctx, &fakeLister{}, []string{"a", "b"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	lister := &fakeLister{records: []model.TestCase{{ID: "r1"}, {ID: "r2"}}}
	ids, err = resolveImportIDs(ctx, lister, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids)
	assert.Equal(t, model.RecordReady, lister.filter.Status)

	_, err = resolveImportIDs(ctx, &fakeLister{}, []string{"a"}, true)
	assert.ErrorContains(t, err, "not both")

	_, err = resolveImportIDs(ctx, &fakeLister{}, nil, false)
	assert.ErrorContains(t, err, "at least one record id")

	_, err = resolveImportIDs(ctx, &fakeLister{err: assert.AnError}, nil, true)
	assert.ErrorContains(t, err, "list ready records")
}

func TestProgressPrinter_SkipsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	emit := progressPrinter(&buf)

	state := model.ProgressState{
		RecordID: "r1",
		Phase:    model.PhaseImporting,
		Steps:    []model.ImportStep{{ID: "create", Label: "Create test", Status: model.StepInProgress}},
	}
	emit(state)
	emit(state)

	state.Steps[0].Status = model.StepCompleted
	emit(state)

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "[r1] 100% importing Create test")
}
