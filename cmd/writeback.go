package main

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/source"
	"github.com/sells-group/tcsync/pkg/notion"
)

// Notion Status values written after an import.
const (
	notionStatusImported = "Imported"
	notionStatusWarnings = "Imported with warnings"
	notionStatusFailed   = "Import failed"
)

type recordGetter interface {
	GetRecord(ctx context.Context, id string) (*model.TestCase, error)
}

// writeBack copies each Notion-sourced record's import outcome to its page.
// Failures are logged and skipped.
func writeBack(ctx context.Context, records recordGetter, nc notion.Client, results []model.RecordResult) int {
	if nc == nil {
		return 0
	}
	written := 0
	for _, r := range results {
		rec, err := records.GetRecord(ctx, r.RecordID)
		if err != nil || rec.Source != source.SourceNotion {
			continue
		}

		state := syncStateFor(r, rec, time.Now().UTC())
		if err := notion.WriteSyncState(ctx, nc, rec.ID, state); err != nil {
			zap.L().Warn("notion write-back failed", zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		written++
	}
	return written
}

func syncStateFor(r model.RecordResult, rec *model.TestCase, now time.Time) notion.SyncState {
	s := notion.SyncState{SyncedAt: now, IssueKey: rec.ExternalKey, IssueID: rec.ExternalID}
	if r.Key != nil {
		s.IssueKey = *r.Key
	}
	if r.Progress != nil && r.Progress.CreatedID != "" {
		s.IssueID = r.Progress.CreatedID
	}

	switch r.Outcome() {
	case model.OutcomeSuccess:
		s.Status = notionStatusImported
	case model.OutcomeWarnings:
		s.Status = notionStatusWarnings
		if r.Progress != nil {
			msgs := make([]string, 0, len(r.Progress.FailedItems))
			for _, f := range r.Progress.FailedItems {
				msgs = append(msgs, f.Label+": "+f.Error)
			}
			if len(msgs) == 0 {
				msgs = append(msgs, "linked items missing on read-back")
			}
			s.Message = strings.Join(msgs, "; ")
		}
	default:
		s.Status = notionStatusFailed
		if r.Error != nil {
			s.Message = *r.Error
		}
	}
	return s
}
