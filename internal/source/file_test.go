package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tcsync/internal/model"
)

const casesYAML = `
cases:
  - id: login-ok
    project_key: QA
    title: "  Login succeeds  "
    priority: High
    labels: [auth, smoke]
    steps:
      - action: Open login page
      - action: Submit credentials
        data: alice / secret
        expected: Dashboard shown
    linking:
      plans:
        - id: QA-100
          display_label: Release 1 plan
      executions:
        - id: QA-200
      folder_path: /Auth/Login
      project_id: "10000"
      preconditions:
        - id: QA-300
          display_label: User exists
  - id: logout
    title: Logout
    status: draft
    external_id: "10042"
    external_key: QA-42
`

func TestParseCases(t *testing.T) {
	cases, err := ParseCases([]byte(casesYAML))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	first := cases[0]
	assert.Equal(t, "login-ok", first.ID)
	assert.Equal(t, "Login succeeds", first.Title)
	assert.Equal(t, model.RecordReady, first.Status)
	assert.Equal(t, SourceFile, first.Source)
	assert.Equal(t, []string{"auth", "smoke"}, first.Labels)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, "Dashboard shown", first.Steps[1].Expected)
	assert.Equal(t, "Release 1 plan", first.Linking.Plans[0].DisplayLabel)
	assert.Equal(t, "QA-200", first.Linking.Executions[0].Label())
	assert.True(t, first.Linking.HasFolder())
	assert.Equal(t, 4, first.Linking.CountLinks())
	assert.IsType(t, model.New{}, model.Classify(first))

	second := cases[1]
	assert.Equal(t, model.RecordDraft, second.Status)
	assert.Equal(t, model.AlreadyTracked{SourceKey: "QA-42", SourceID: "10042"}, model.Classify(second))
}

func TestParseCases_JSON(t *testing.T) {
	cases, err := ParseCases([]byte(`{"cases": [{"id": "a", "title": "A"}]}`))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "A", cases[0].Title)
}

func TestParseCases_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed", "cases: [", "unmarshal cases"},
		{"missing title", "cases:\n  - id: x\n", "case 1 has no title"},
		{"duplicate id", "cases:\n  - {id: x, title: A}\n  - {id: x, title: B}\n", `duplicate case id "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCases([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(casesYAML), 0o600))

	cases, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: read cases file")
}
