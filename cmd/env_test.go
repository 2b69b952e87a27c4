package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/config"
	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/store"
)

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	// migrated: records can be listed immediately
	records, err := st.ListRecords(context.Background(), store.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	st, err := initStore(context.Background())
	assert.Error(t, err)
	assert.Nil(t, st)
	assert.Contains(t, err.Error(), "unsupported store driver: mysql")
}

func TestInitStore_PostgresBadDSN(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres", DatabaseURL: "://bad"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: parse config")
}

func TestInitNotion(t *testing.T) {
	cfg = &config.Config{}
	assert.Nil(t, initNotion())

	cfg.Notion.Token = "ntn_test"
	assert.NotNil(t, initNotion())
}

func TestNewCoordinator_ImportsStoredRecord(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "test.db")},
		Xray:  config.XrayConfig{ProjectKey: "QA"},
	}
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.CreateRecord(ctx, &model.TestCase{ID: "r1", Title: "Login", Status: model.RecordReady}))

	var snaps []model.ProgressState
	coord := newCoordinator(&stubXray{}, st, func(p model.ProgressState) { snaps = append(snaps, p) })
	results := coord.RunBatchByID(ctx, []string{"r1"})

	require.Len(t, results, 1)
	require.NotNil(t, results[0].Key)
	assert.Equal(t, "QA-1", *results[0].Key)
	assert.Equal(t, model.OutcomeSuccess, results[0].Outcome())
	assert.NotEmpty(t, snaps)

	rec, err := st.GetRecord(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordImported, rec.Status)
	assert.Equal(t, "1", rec.ExternalID)

	runs, err := st.ListRuns(ctx, store.RunFilter{RecordID: "r1"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}
