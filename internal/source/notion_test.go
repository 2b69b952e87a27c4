package source

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockNotion struct {
	queryFn  func(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	requests []*notionapi.DatabaseQueryRequest
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.requests = append(m.requests, req)
	return m.queryFn(ctx, dbID, req)
}

func (m *mockNotion) UpdatePage(context.Context, string, *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return &notionapi.Page{}, nil
}

func richText(s string) *notionapi.RichTextProperty {
	return &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: s}}}
}

func multiSelect(names ...string) *notionapi.MultiSelectProperty {
	opts := make([]notionapi.Option, len(names))
	for i, n := range names {
		opts[i] = notionapi.Option{Name: n}
	}
	return &notionapi.MultiSelectProperty{MultiSelect: opts}
}

func casePage(id, title string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropName:        &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: title}}},
			PropDescription: richText("Checks the happy path"),
			PropLabels:      multiSelect("auth", "smoke"),
			PropPriority:    &notionapi.SelectProperty{Select: notionapi.Option{Name: "High"}},
			PropTestType:    &notionapi.SelectProperty{Select: notionapi.Option{Name: "Manual"}},
			PropPlans:       richText("QA-1, QA-2"),
			PropExecutions:  multiSelect("QA-3"),
			PropPrecond:     richText("QA-5\nQA-6"),
			PropFolder:      richText("/Auth"),
			PropProject:     &notionapi.SelectProperty{Select: notionapi.Option{Name: "QA"}},
			PropProjectID:   richText("10000"),
			PropSteps:       richText("Open page\nLog in | alice | Dashboard"),
		},
	}
}

func TestParsePage(t *testing.T) {
	tc, err := ParsePage(casePage("page-1", "Login works"))
	require.NoError(t, err)

	assert.Equal(t, "page-1", tc.ID)
	assert.Equal(t, "Login works", tc.Title)
	assert.Equal(t, "QA", tc.ProjectKey)
	assert.Equal(t, "High", tc.Priority)
	assert.Equal(t, "Manual", tc.TestType)
	assert.Equal(t, []string{"auth", "smoke"}, tc.Labels)
	assert.Equal(t, model.RecordReady, tc.Status)
	assert.Equal(t, SourceNotion, tc.Source)

	assert.Equal(t, []model.LinkTarget{{ID: "QA-1", DisplayLabel: "QA-1"}, {ID: "QA-2", DisplayLabel: "QA-2"}}, tc.Linking.Plans)
	assert.Len(t, tc.Linking.Executions, 1)
	assert.Empty(t, tc.Linking.Sets)
	assert.Equal(t, []string{"QA-5", "QA-6"}, tc.Linking.PreconditionIDs())
	assert.True(t, tc.Linking.HasFolder())

	require.Len(t, tc.Steps, 2)
	assert.Equal(t, model.TestStep{Action: "Open page"}, tc.Steps[0])
	assert.Equal(t, model.TestStep{Action: "Log in", Data: "alice", Expected: "Dashboard"}, tc.Steps[1])

	assert.IsType(t, model.New{}, model.Classify(tc))
}

func TestParsePage_AlreadyTracked(t *testing.T) {
	p := casePage("page-2", "Logout")
	p.Properties[PropJiraKey] = richText("QA-9")
	p.Properties[PropJiraID] = richText("10009")

	tc, err := ParsePage(p)
	require.NoError(t, err)
	assert.Equal(t, model.AlreadyTracked{SourceKey: "QA-9", SourceID: "10009"}, model.Classify(tc))
}

func TestParsePage_MissingName(t *testing.T) {
	_, err := ParsePage(notionapi.Page{ID: "page-3", Properties: notionapi.Properties{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Name property")
}

func TestPullNotion(t *testing.T) {
	mc := &mockNotion{
		queryFn: func(_ context.Context, dbID string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			assert.Equal(t, "db-cases", dbID)
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{
					casePage("p1", "First"),
					{ID: "bad", Properties: notionapi.Properties{}},
					casePage("p2", "Second"),
				},
			}, nil
		},
	}

	cases, err := PullNotion(context.Background(), mc, "db-cases", "Ready")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "p1", cases[0].ID)
	assert.Equal(t, "p2", cases[1].ID)

	require.Len(t, mc.requests, 1)
	pf, ok := mc.requests[0].Filter.(notionapi.PropertyFilter)
	require.True(t, ok)
	assert.Equal(t, "Ready", pf.Status.Equals)
}

func TestPullNotion_Error(t *testing.T) {
	mc := &mockNotion{
		queryFn: func(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, assert.AnError
		},
	}

	_, err := PullNotion(context.Background(), mc, "db-cases", "Ready")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: pull notion cases")
}
