package source

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/pkg/notion"
)

// SourceNotion marks records pulled from a Notion database.
const SourceNotion = "notion"

// Notion property names read from a test-case page.
const (
	PropName        = "Name"
	PropDescription = "Description"
	PropLabels      = "Labels"
	PropPriority    = "Priority"
	PropTestType    = "Test Type"
	PropPlans       = "Test Plans"
	PropExecutions  = "Test Executions"
	PropSets        = "Test Sets"
	PropPrecond     = "Preconditions"
	PropFolder      = "Folder"
	PropProject     = "Project"
	PropProjectID   = "Project ID"
	PropSteps       = "Steps"
	PropJiraKey     = "Jira Key"
	PropJiraID      = "Jira ID"
)

// PullNotion queries the database for pages with the given status and maps
// each to a TestCase. Malformed pages are logged and skipped.
func PullNotion(ctx context.Context, client notion.Client, dbID, status string) ([]model.TestCase, error) {
	pages, err := notion.QueryByStatus(ctx, client, dbID, status)
	if err != nil {
		return nil, eris.Wrap(err, "source: pull notion cases")
	}

	var cases []model.TestCase
	for _, p := range pages {
		tc, err := ParsePage(p)
		if err != nil {
			zap.L().Warn("source: skipping malformed case page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// ParsePage maps a Notion page to a ready TestCase keyed by the page id.
func ParsePage(p notionapi.Page) (model.TestCase, error) {
	props := p.Properties
	tc := model.TestCase{
		ID:          string(p.ID),
		ProjectKey:  notion.Text(props, PropProject),
		Title:       notion.Text(props, PropName),
		Description: notion.Text(props, PropDescription),
		TestType:    notion.Text(props, PropTestType),
		Priority:    notion.Text(props, PropPriority),
		Labels:      notion.Options(props, PropLabels),
		Steps:       parseSteps(notion.Text(props, PropSteps)),
		Linking: model.LinkingConfiguration{
			Plans:         targets(notion.Options(props, PropPlans)),
			Executions:    targets(notion.Options(props, PropExecutions)),
			Sets:          targets(notion.Options(props, PropSets)),
			Preconditions: targets(notion.Options(props, PropPrecond)),
			FolderPath:    notion.Text(props, PropFolder),
			ProjectID:     notion.Text(props, PropProjectID),
		},
		Status:      model.RecordReady,
		ExternalKey: notion.Text(props, PropJiraKey),
		ExternalID:  notion.Text(props, PropJiraID),
		Source:      SourceNotion,
	}

	if tc.Title == "" {
		return tc, eris.New("missing Name property")
	}
	return tc, nil
}

// targets turns plain keys into link targets labelled by their key.
func targets(keys []string) []model.LinkTarget {
	if len(keys) == 0 {
		return nil
	}
	out := make([]model.LinkTarget, len(keys))
	for i, k := range keys {
		out[i] = model.LinkTarget{ID: k, DisplayLabel: k}
	}
	return out
}

// parseSteps reads one "action | data | expected" step per line.
func parseSteps(text string) []model.TestStep {
	var steps []model.TestStep
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		s := model.TestStep{Action: parts[0]}
		if len(parts) > 1 {
			s.Data = parts[1]
		}
		if len(parts) > 2 {
			s.Expected = parts[2]
		}
		if s.Action != "" {
			steps = append(steps, s)
		}
	}
	return steps
}
