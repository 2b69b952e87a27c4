// Package linking executes the ordered, best-effort plan of link operations
// that associates a freshly created or updated test with its plans,
// executions, sets, folder and preconditions.
package linking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/progress"
	"github.com/sells-group/tcsync/pkg/xray"
)

// Linker is the subset of the test-management client used for linking.
type Linker interface {
	LinkToPlan(ctx context.Context, planKey string, testIDs []string) (*xray.LinkResult, error)
	LinkToExecution(ctx context.Context, execKey string, testIDs []string) (*xray.LinkResult, error)
	LinkToSet(ctx context.Context, setKey string, testIDs []string) (*xray.LinkResult, error)
	LinkToFolder(ctx context.Context, projectID, path string, testIDs []string) (*xray.LinkResult, error)
	LinkPreconditions(ctx context.Context, testID string, preconditionIDs []string) (*xray.LinkResult, error)
}

// Validator reconciles the requested links against the server's state.
type Validator interface {
	Validate(ctx context.Context, createdID string, cfg model.LinkingConfiguration) model.ValidationResult
}

// Observer receives step transitions as the plan executes. *progress.Tracker
// satisfies it.
type Observer interface {
	MarkStep(id string, status model.StepStatus, errMsg string) error
	Advance()
	Validating()
}

// Orchestrator runs linking plans. It is safe for sequential reuse.
type Orchestrator struct {
	client    Linker
	validator Validator
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(client Linker, validator Validator) *Orchestrator {
	return &Orchestrator{client: client, validator: validator}
}

// op is one tagged link operation.
type op struct {
	stepID   string
	category model.Category
	display  string
	linked   string
	invoke   func(ctx context.Context) (*xray.LinkResult, error)
}

// ExecuteLinking attempts every operation cfg describes against createdID in
// the fixed category order, then validates. A failed operation is recorded
// and the plan continues. It never returns an error; obs may be nil.
//
// The caller's cancellation is not propagated to the client: once started,
// a plan always runs to completion.
func (o *Orchestrator) ExecuteLinking(ctx context.Context, createdID string, cfg model.LinkingConfiguration, obs Observer) model.LinkingResult {
	if obs == nil {
		obs = nopObserver{}
	}
	ctx = context.WithoutCancel(ctx)
	log := zap.L().With(zap.String("created_id", createdID))

	res := model.LinkingResult{
		LinkedItems: []model.LinkedItem{},
		FailedItems: []model.FailedItem{},
	}
	for _, step := range o.plan(createdID, cfg) {
		attempt(ctx, log, step, obs, &res)
	}

	obs.Validating()
	res.Validation = o.validator.Validate(ctx, createdID, cfg)
	res.HasErrors = len(res.FailedItems) > 0 || res.Validation.HasDrift()

	log.Info("linking: plan finished",
		zap.Int("linked", len(res.LinkedItems)),
		zap.Int("failed", len(res.FailedItems)),
		zap.Bool("validated", res.Validation.IsValidated),
		zap.Bool("has_errors", res.HasErrors),
	)
	return res
}

// plan lists the operations in execution order. Step ids match
// progress.PlanSteps.
func (o *Orchestrator) plan(createdID string, cfg model.LinkingConfiguration) []op {
	ids := []string{createdID}
	ops := make([]op, 0, cfg.CountLinks())

	items := []struct {
		cat  model.Category
		call func(ctx context.Context, key string, testIDs []string) (*xray.LinkResult, error)
	}{
		{model.CategoryPlan, o.client.LinkToPlan},
		{model.CategoryExecution, o.client.LinkToExecution},
		{model.CategorySet, o.client.LinkToSet},
	}
	for _, it := range items {
		for i, target := range cfg.Targets(it.cat) {
			call, key := it.call, target.ID
			ops = append(ops, op{
				stepID:   progress.ItemStepID(it.cat, i),
				category: it.cat,
				display:  target.Label(),
				linked:   target.Label(),
				invoke: func(ctx context.Context) (*xray.LinkResult, error) {
					return call(ctx, key, ids)
				},
			})
		}
	}

	if cfg.HasFolder() {
		ops = append(ops, op{
			stepID:   progress.FolderStepID,
			category: model.CategoryFolder,
			display:  cfg.FolderPath,
			linked:   cfg.FolderPath,
			invoke: func(ctx context.Context) (*xray.LinkResult, error) {
				return o.client.LinkToFolder(ctx, cfg.ProjectID, cfg.FolderPath, ids)
			},
		})
	}

	if n := len(cfg.Preconditions); n > 0 {
		labels := make([]string, 0, n)
		for _, p := range cfg.Preconditions {
			labels = append(labels, p.Label())
		}
		pre := cfg.PreconditionIDs()
		ops = append(ops, op{
			stepID:   progress.PreconditionsStepID,
			category: model.CategoryPrecondition,
			display:  strings.Join(labels, ", "),
			linked:   progress.PreconditionCount(n),
			invoke: func(ctx context.Context) (*xray.LinkResult, error) {
				return o.client.LinkPreconditions(ctx, createdID, pre)
			},
		})
	}
	return ops
}

// attempt runs one operation and records its outcome on res.
func attempt(ctx context.Context, log *zap.Logger, o op, obs Observer, res *model.LinkingResult) {
	mark(log, obs, o.stepID, model.StepInProgress, "")

	out, err := o.invoke(ctx)
	if err != nil {
		msg := xray.ErrorMessage(err)
		res.FailedItems = append(res.FailedItems, model.FailedItem{
			Label: o.category.Title() + ": " + o.display,
			Error: msg,
		})
		res.HasErrors = true
		log.Warn("linking: link failed",
			zap.String("category", string(o.category)),
			zap.String("target", o.display),
			zap.Error(err),
		)
		mark(log, obs, o.stepID, model.StepFailed, msg)
		obs.Advance()
		return
	}

	added := 0
	if out != nil {
		added = out.AddedCount
	}
	res.LinkedItems = append(res.LinkedItems, model.LinkedItem{Label: o.linked, Category: o.category})
	log.Debug("linking: linked",
		zap.String("category", string(o.category)),
		zap.String("target", o.display),
		zap.Int("added", added),
	)
	mark(log, obs, o.stepID, model.StepCompleted, "")
	obs.Advance()
}

func mark(log *zap.Logger, obs Observer, id string, status model.StepStatus, errMsg string) {
	if err := obs.MarkStep(id, status, errMsg); err != nil {
		log.Debug("linking: observer rejected step transition", zap.String("step", id), zap.Error(err))
	}
}

type nopObserver struct{}

func (nopObserver) MarkStep(string, model.StepStatus, string) error { return nil }
func (nopObserver) Advance() {}
func (nopObserver) Validating() {}
