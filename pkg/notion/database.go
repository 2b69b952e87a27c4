package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches every page of a database query, following cursors until
// the result set is exhausted.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor, PageSize: 100}
		if query != nil {
			req.Filter = query.Filter
			req.Sorts = query.Sorts
			if query.PageSize > 0 {
				req.PageSize = query.PageSize
			}
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// QueryByStatus fetches all pages whose Status property equals status.
func QueryByStatus(ctx context.Context, c Client, dbID, status string) ([]notionapi.Page, error) {
	query := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: status,
			},
		},
	}
	pages, err := QueryAll(ctx, c, dbID, query)
	if err != nil {
		return nil, eris.Wrapf(err, "notion: query pages with status %q", status)
	}
	return pages, nil
}

// SyncState is written back to a test-case page after an import attempt.
type SyncState struct {
	Status   string
	IssueKey string
	IssueID  string
	Message  string
	SyncedAt time.Time
}

// WriteSyncState updates a page's Status, Jira Key, Jira ID, Sync Message
// and Last Synced properties. Empty key and id are left untouched.
func WriteSyncState(ctx context.Context, c Client, pageID string, s SyncState) error {
	synced := notionapi.Date(s.SyncedAt)
	msg := s.Message
	if len(msg) > 200 {
		msg = msg[:200]
	}

	props := notionapi.Properties{
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: s.Status},
		},
		"Sync Message": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: msg}}},
		},
		"Last Synced": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &synced},
		},
	}
	if s.IssueKey != "" {
		props["Jira Key"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s.IssueKey}}},
		}
	}
	if s.IssueID != "" {
		props["Jira ID"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s.IssueID}}},
		}
	}

	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
	return eris.Wrapf(err, "notion: write sync state to page %s", pageID)
}
