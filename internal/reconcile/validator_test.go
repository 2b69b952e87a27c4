package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/pkg/xray"
)

type mockReader struct {
	fetchFn func(ctx context.Context, testID string) (*xray.TestLinks, error)
	calls   int
}

func (m *mockReader) FetchLinks(ctx context.Context, testID string) (*xray.TestLinks, error) {
	m.calls++
	return m.fetchFn(ctx, testID)
}

func strPtr(s string) *string { return &s }

func config() model.LinkingConfiguration {
	return model.LinkingConfiguration{
		Plans:         []model.LinkTarget{{ID: "P-1"}, {ID: "P-2"}},
		Executions:    []model.LinkTarget{{ID: "E-1"}},
		Sets:          []model.LinkTarget{{ID: "S-1"}},
		Preconditions: []model.LinkTarget{{ID: "PC-1"}, {ID: "PC-2"}},
		FolderPath:    "/Feature/Login",
		ProjectID:     "10000",
	}
}

func TestValidate_AllPresent(t *testing.T) {
	r := &mockReader{fetchFn: func(_ context.Context, id string) (*xray.TestLinks, error) {
		assert.Equal(t, "10001", id)
		return &xray.TestLinks{
			Plans:         []string{"P-2", "P-1"},
			Executions:    []string{"E-1", "E-9"},
			Sets:          []string{"S-1"},
			Preconditions: []string{"PC-1", "PC-2"},
			Folder:        strPtr("/Feature/Login"),
		}, nil
	}}

	res := NewValidator(r).Validate(context.Background(), "10001", config())

	assert.Equal(t, 1, r.calls)
	assert.True(t, res.IsValidated)
	assert.False(t, res.HasDrift())
	assert.Empty(t, res.Plans.Missing)
	assert.Equal(t, []string{"P-1", "P-2"}, res.Plans.Expected)
	assert.True(t, res.Folder.Valid)
}

func TestValidate_MissingIDs(t *testing.T) {
	r := &mockReader{fetchFn: func(context.Context, string) (*xray.TestLinks, error) {
		return &xray.TestLinks{
			Plans:         []string{"P-1", "P-2"},
			Preconditions: []string{"PC-1", "PC-2"},
			Folder:        strPtr("/Feature/Login"),
		}, nil
	}}

	res := NewValidator(r).Validate(context.Background(), "10001", config())

	assert.True(t, res.IsValidated)
	assert.True(t, res.HasDrift())
	assert.Equal(t, []string{"E-1"}, res.Executions.Missing)
	assert.Equal(t, []string{"S-1"}, res.Sets.Missing)
	assert.Empty(t, res.Plans.Missing)
}

func TestValidate_ReadFailureDegrades(t *testing.T) {
	r := &mockReader{fetchFn: func(context.Context, string) (*xray.TestLinks, error) {
		return nil, errors.New("connection reset")
	}}

	res := NewValidator(r).Validate(context.Background(), "10001", config())

	assert.False(t, res.IsValidated)
	assert.True(t, res.Folder.Valid)
	assert.False(t, res.HasDrift())
	assert.Empty(t, res.Plans.Expected)
	assert.Empty(t, res.Executions.Missing)
}

func TestValidate_FolderIgnoredWithoutProject(t *testing.T) {
	r := &mockReader{fetchFn: func(context.Context, string) (*xray.TestLinks, error) {
		return &xray.TestLinks{}, nil
	}}
	cfg := model.LinkingConfiguration{FolderPath: "/Feature/Login"}

	res := NewValidator(r).Validate(context.Background(), "10001", cfg)

	require.True(t, res.IsValidated)
	assert.True(t, res.Folder.Valid)
	assert.Equal(t, "", res.Folder.Found)
}

func TestValidate_WrongFolder(t *testing.T) {
	r := &mockReader{fetchFn: func(context.Context, string) (*xray.TestLinks, error) {
		return &xray.TestLinks{
			Plans:         []string{"P-1", "P-2"},
			Executions:    []string{"E-1"},
			Sets:          []string{"S-1"},
			Preconditions: []string{"PC-1", "PC-2"},
			Folder:        strPtr("/WrongFolder"),
		}, nil
	}}

	res := NewValidator(r).Validate(context.Background(), "10001", config())

	assert.False(t, res.Folder.Valid)
	assert.Equal(t, "/WrongFolder", res.Folder.Found)
	assert.True(t, res.HasDrift())
}

func TestFolderMatches(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		found    string
		want     bool
	}{
		{"exact", "/Feature/Login", "/Feature/Login", true},
		{"substring", "/Feature/Login", "/Root/Feature/Login/Smoke", true},
		{"wrong", "/Feature/Login", "/WrongFolder", false},
		{"empty expected", "", "/Anything", true},
		{"root expected", "/", "", true},
		{"nothing found", "/Feature/Login", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FolderMatches(tt.expected, tt.found))
		})
	}
}

func TestDiff_CollapsesDuplicates(t *testing.T) {
	got := diff([]string{"A", "B", "A", "C"}, []string{"C"})
	assert.Equal(t, []string{"A", "B"}, got.Missing)
}
