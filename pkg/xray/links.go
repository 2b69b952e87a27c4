package xray

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
)

type addRequest struct {
	Path string   `json:"path,omitempty"`
	Add  []string `json:"add"`
}

// link posts an add request and converts the warning list the server returns
// for entities it skipped (already associated, ...) into an added count.
func (c *httpClient) link(ctx context.Context, path string, req addRequest) (*LinkResult, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, path, req, &raw); err != nil {
		return nil, err
	}

	var warnings []string
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &warnings); err != nil {
			return nil, eris.Wrap(err, "xray: unmarshal link response")
		}
	}
	return &LinkResult{
		AddedCount: max(len(req.Add)-len(warnings), 0),
		Warnings:   warnings,
	}, nil
}

func (c *httpClient) LinkToPlan(ctx context.Context, planKey string, testIDs []string) (*LinkResult, error) {
	res, err := c.link(ctx, "/rest/raven/1.0/api/testplan/"+escape(planKey)+"/test", addRequest{Add: testIDs})
	return res, eris.Wrapf(err, "xray: link to test plan %s", planKey)
}

func (c *httpClient) LinkToExecution(ctx context.Context, execKey string, testIDs []string) (*LinkResult, error) {
	res, err := c.link(ctx, "/rest/raven/1.0/api/testexec/"+escape(execKey)+"/test", addRequest{Add: testIDs})
	return res, eris.Wrapf(err, "xray: link to test execution %s", execKey)
}

func (c *httpClient) LinkToSet(ctx context.Context, setKey string, testIDs []string) (*LinkResult, error) {
	res, err := c.link(ctx, "/rest/raven/1.0/api/testset/"+escape(setKey)+"/test", addRequest{Add: testIDs})
	return res, eris.Wrapf(err, "xray: link to test set %s", setKey)
}

func (c *httpClient) LinkToFolder(ctx context.Context, projectID, path string, testIDs []string) (*LinkResult, error) {
	res, err := c.link(ctx,
		"/rest/raven/1.0/api/testrepository/"+escape(projectID)+"/folders/tests",
		addRequest{Path: path, Add: testIDs},
	)
	return res, eris.Wrapf(err, "xray: link to folder %s", path)
}

func (c *httpClient) LinkPreconditions(ctx context.Context, testID string, preconditionIDs []string) (*LinkResult, error) {
	res, err := c.link(ctx, "/rest/raven/1.0/api/test/"+escape(testID)+"/preconditions", addRequest{Add: preconditionIDs})
	return res, eris.Wrapf(err, "xray: link preconditions to %s", testID)
}

func (c *httpClient) FetchLinks(ctx context.Context, testID string) (*TestLinks, error) {
	var links TestLinks
	if err := c.call(ctx, http.MethodGet, "/rest/raven/1.0/api/test/"+escape(testID)+"/links", nil, &links); err != nil {
		return nil, eris.Wrapf(err, "xray: fetch links for %s", testID)
	}
	return &links, nil
}
