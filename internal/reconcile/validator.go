// Package reconcile reads back what the external system reports for an
// imported test and diffs it against what was requested.
package reconcile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/pkg/xray"
)

// Reader fetches the current association state of a test.
type Reader interface {
	FetchLinks(ctx context.Context, testID string) (*xray.TestLinks, error)
}

// Validator performs the post-linking read-back.
type Validator struct {
	reader Reader
}

// NewValidator returns a Validator backed by reader.
func NewValidator(reader Reader) *Validator {
	return &Validator{reader: reader}
}

// Validate issues one read call for createdID and compares the result with
// cfg. A failed read yields an unvalidated result that reports no drift.
func (v *Validator) Validate(ctx context.Context, createdID string, cfg model.LinkingConfiguration) model.ValidationResult {
	links, err := v.reader.FetchLinks(ctx, createdID)
	if err != nil || links == nil {
		zap.L().Warn("reconcile: read-back failed, result not validated",
			zap.String("created_id", createdID),
			zap.Error(err),
		)
		return model.ValidationResult{
			IsValidated: false,
			Folder:      model.FolderValidation{Valid: true},
		}
	}

	res := model.ValidationResult{
		IsValidated:   true,
		Plans:         diff(model.TargetIDs(cfg.Plans), links.Plans),
		Executions:    diff(model.TargetIDs(cfg.Executions), links.Executions),
		Sets:          diff(model.TargetIDs(cfg.Sets), links.Sets),
		Preconditions: diff(cfg.PreconditionIDs(), links.Preconditions),
	}

	found := ""
	if links.Folder != nil {
		found = *links.Folder
	}
	res.Folder = model.FolderValidation{Expected: cfg.FolderPath, Found: found, Valid: true}
	if cfg.HasFolder() {
		res.Folder.Valid = FolderMatches(cfg.FolderPath, found)
	}

	if res.HasDrift() {
		zap.L().Warn("reconcile: linked state differs from request",
			zap.String("created_id", createdID),
			zap.Strings("missing_plans", res.Plans.Missing),
			zap.Strings("missing_executions", res.Executions.Missing),
			zap.Strings("missing_sets", res.Sets.Missing),
			zap.Strings("missing_preconditions", res.Preconditions.Missing),
			zap.Bool("folder_valid", res.Folder.Valid),
		)
	}
	return res
}

// FolderMatches reports whether found satisfies expected. The server may
// report a fuller path than requested, so containment is enough.
func FolderMatches(expected, found string) bool {
	if model.IsRootFolder(expected) {
		return true
	}
	return strings.Contains(found, strings.TrimSpace(expected))
}

// diff returns expected minus found, in expected order, without duplicates.
func diff(expected, found []string) model.CategoryValidation {
	have := make(map[string]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}

	var missing []string
	seen := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	return model.CategoryValidation{
		Expected: expected,
		Found:    append([]string(nil), found...),
		Missing:  missing,
	}
}
