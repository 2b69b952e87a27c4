// Package progress tracks the step-by-step state of an import attempt so a
// caller can observe it while the linking plan runs.
package progress

import (
	"fmt"

	"github.com/sells-group/tcsync/internal/model"
)

// Step ids shared by the planner and the linking orchestrator.
const (
	CreateStepID        = "create"
	FolderStepID        = "folder"
	PreconditionsStepID = "preconditions"
)

// ItemStepID returns the step id of the n-th item of an item-wise category.
func ItemStepID(cat model.Category, n int) string {
	return fmt.Sprintf("%s:%d", cat, n)
}

var itemVerbs = map[model.Category]string{
	model.CategoryPlan:      "Link to test plan",
	model.CategoryExecution: "Add to test execution",
	model.CategorySet:       "Add to test set",
}

// PlanSteps returns the ordered steps of an import attempt: creation (or
// update) first, then one step per plan, execution and set, then a single
// folder step and a single preconditions step when they apply. The list has
// cfg.CountLinks()+1 entries.
func PlanSteps(cfg model.LinkingConfiguration, tracking model.Tracking) []model.ImportStep {
	steps := make([]model.ImportStep, 0, cfg.CountLinks()+1)
	steps = append(steps, model.ImportStep{
		ID:     CreateStepID,
		Label:  createLabel(tracking),
		Status: model.StepPending,
	})

	for _, cat := range []model.Category{model.CategoryPlan, model.CategoryExecution, model.CategorySet} {
		for i, target := range cfg.Targets(cat) {
			steps = append(steps, model.ImportStep{
				ID:       ItemStepID(cat, i),
				Label:    itemVerbs[cat] + " " + target.Label(),
				Category: cat,
				Status:   model.StepPending,
			})
		}
	}

	if cfg.HasFolder() {
		steps = append(steps, model.ImportStep{
			ID:       FolderStepID,
			Label:    "Move to folder " + cfg.FolderPath,
			Category: model.CategoryFolder,
			Status:   model.StepPending,
		})
	}

	if n := len(cfg.Preconditions); n > 0 {
		steps = append(steps, model.ImportStep{
			ID:       PreconditionsStepID,
			Label:    "Link " + PreconditionCount(n),
			Category: model.CategoryPrecondition,
			Status:   model.StepPending,
		})
	}
	return steps
}

// PreconditionCount describes a number of preconditions ("1 precondition").
func PreconditionCount(n int) string {
	if n == 1 {
		return "1 precondition"
	}
	return fmt.Sprintf("%d preconditions", n)
}

func createLabel(tracking model.Tracking) string {
	if t, ok := tracking.(model.AlreadyTracked); ok {
		ref := t.SourceKey
		if ref == "" {
			ref = t.SourceID
		}
		return "Update test " + ref
	}
	return "Create test"
}
