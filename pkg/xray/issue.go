package xray

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultTestType = "Manual"

type issuePayload struct {
	Fields map[string]any `json:"fields"`
	Xray   *xrayPayload   `json:"xray,omitempty"`
}

type xrayPayload struct {
	TestType string `json:"testType"`
	Steps    []Step `json:"steps,omitempty"`
}

func buildIssuePayload(f IssueFields, create bool) issuePayload {
	fields := map[string]any{
		"summary":     f.Summary,
		"description": f.Description,
	}
	if create {
		fields["project"] = map[string]string{"key": f.ProjectKey}
		fields["issuetype"] = map[string]string{"name": "Test"}
	}
	if f.Priority != "" {
		fields["priority"] = map[string]string{"name": f.Priority}
	}
	if f.Labels != nil {
		fields["labels"] = f.Labels
	}

	testType := f.TestType
	if testType == "" {
		testType = defaultTestType
	}
	return issuePayload{
		Fields: fields,
		Xray:   &xrayPayload{TestType: testType, Steps: f.Steps},
	}
}

func (c *httpClient) Create(ctx context.Context, fields IssueFields) (*IssueRef, error) {
	if fields.ProjectKey == "" {
		return nil, eris.New("xray: create: project key is required")
	}
	var ref IssueRef
	if err := c.call(ctx, http.MethodPost, "/rest/api/2/issue", buildIssuePayload(fields, true), &ref); err != nil {
		return nil, eris.Wrap(err, "xray: create test")
	}
	if ref.ID == "" {
		return nil, eris.New("xray: create test: response has no issue id")
	}
	return &ref, nil
}

func (c *httpClient) Update(ctx context.Context, issueID string, fields IssueFields) (*IssueRef, error) {
	path := "/rest/api/2/issue/" + escape(issueID)
	if err := c.call(ctx, http.MethodPut, path, buildIssuePayload(fields, false), nil); err != nil {
		return nil, eris.Wrapf(err, "xray: update test %s", issueID)
	}

	// The update is already applied; a failed key read-back leaves the
	// caller to supply the key it has on record.
	var ref IssueRef
	if err := c.call(ctx, http.MethodGet, path+"?fields=key", nil, &ref); err != nil {
		zap.L().Warn("xray: read key after update failed",
			zap.String("issue_id", issueID),
			zap.Error(err),
		)
		return &IssueRef{ID: issueID}, nil
	}
	if ref.ID == "" {
		ref.ID = issueID
	}
	return &ref, nil
}
