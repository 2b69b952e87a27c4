// Package importer runs batches of test-case records through
// create-or-update, linking and validation, one record at a time.
package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/tcsync/internal/linking"
	"github.com/sells-group/tcsync/internal/model"
	"github.com/sells-group/tcsync/internal/progress"
	"github.com/sells-group/tcsync/internal/store"
	"github.com/sells-group/tcsync/pkg/xray"
)

// ErrBatchCancelled is reported for records a cancelled batch never started.
var ErrBatchCancelled = eris.New("batch cancelled")

// IssueWriter creates or updates the external issue of a record.
type IssueWriter interface {
	Create(ctx context.Context, fields xray.IssueFields) (*xray.IssueRef, error)
	Update(ctx context.Context, issueID string, fields xray.IssueFields) (*xray.IssueRef, error)
}

// Linker executes the linking plan of a created issue.
type Linker interface {
	ExecuteLinking(ctx context.Context, createdID string, cfg model.LinkingConfiguration, obs linking.Observer) model.LinkingResult
}

// RecordStore is the subset of store.Store the coordinator reads and writes.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (*model.TestCase, error)
	UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.TestCase, error)
	CreateRun(ctx context.Context, recordID, tracking string) (*model.ImportRun, error)
	CompleteRun(ctx context.Context, runID string, c store.RunCompletion) error
}

// Coordinator imports records sequentially. Only one batch runs at a time;
// concurrent callers queue for admission.
type Coordinator struct {
	issues         IssueWriter
	linker         Linker
	store          RecordStore
	admit          *semaphore.Weighted
	observers      []func(model.ProgressState)
	defaultProject string
	now            func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore persists run history and record status to s.
func WithStore(s RecordStore) Option {
	return func(c *Coordinator) { c.store = s }
}

// WithProgress registers a callback that receives every progress snapshot.
func WithProgress(fn func(model.ProgressState)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithDefaultProject sets the project key used for records that carry none.
func WithDefaultProject(key string) Option {
	return func(c *Coordinator) { c.defaultProject = key }
}

// NewCoordinator returns a Coordinator.
func NewCoordinator(issues IssueWriter, linker Linker, opts ...Option) *Coordinator {
	c := &Coordinator{
		issues: issues,
		linker: linker,
		admit:  semaphore.NewWeighted(1),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchItem struct {
	id     string
	record *model.TestCase
}

// RunBatch imports records in order and returns one result per record.
// A record's failure never prevents the next one from being attempted.
func (c *Coordinator) RunBatch(ctx context.Context, records []model.TestCase) []model.RecordResult {
	items := make([]batchItem, len(records))
	for i := range records {
		items[i] = batchItem{id: records[i].ID, record: &records[i]}
	}
	return c.run(ctx, items)
}

// RunBatchByID loads each record from the store before importing it. A
// record that cannot be loaded is reported as failed.
func (c *Coordinator) RunBatchByID(ctx context.Context, ids []string) []model.RecordResult {
	items := make([]batchItem, len(ids))
	for i, id := range ids {
		items[i] = batchItem{id: id}
	}
	return c.run(ctx, items)
}

// ImportRecord imports a single record.
func (c *Coordinator) ImportRecord(ctx context.Context, record model.TestCase) model.RecordResult {
	return c.RunBatch(ctx, []model.TestCase{record})[0]
}

// ImportByID loads and imports a single record.
func (c *Coordinator) ImportByID(ctx context.Context, id string) model.RecordResult {
	return c.RunBatchByID(ctx, []string{id})[0]
}

func (c *Coordinator) run(ctx context.Context, items []batchItem) []model.RecordResult {
	results := make([]model.RecordResult, 0, len(items))
	if len(items) == 0 {
		return results
	}

	if err := c.admit.Acquire(ctx, 1); err != nil {
		for _, it := range items {
			results = append(results, failed(it.id, "", ErrBatchCancelled.Error(), nil))
		}
		return results
	}
	defer c.admit.Release(1)

	start := time.Now()
	for _, it := range items {
		if ctx.Err() != nil {
			results = append(results, failed(it.id, "", ErrBatchCancelled.Error(), nil))
			continue
		}

		rec := it.record
		if rec == nil {
			loaded, err := c.load(ctx, it.id)
			if err != nil {
				zap.L().Warn("importer: load record failed", zap.String("record_id", it.id), zap.Error(err))
				results = append(results, failed(it.id, "", err.Error(), nil))
				continue
			}
			rec = loaded
		}
		results = append(results, c.importOne(ctx, *rec))
	}

	ok, warned, failedN := summarize(results)
	zap.L().Info("importer: batch finished",
		zap.Int("records", len(results)),
		zap.Int("succeeded", ok),
		zap.Int("warnings", warned),
		zap.Int("failed", failedN),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func (c *Coordinator) load(ctx context.Context, id string) (*model.TestCase, error) {
	if c.store == nil {
		return nil, eris.Errorf("importer: no record store configured to load %s", id)
	}
	return c.store.GetRecord(ctx, id)
}

// importOne runs create-or-update, then linking, for one record. Once the
// external call starts it is not interrupted by caller cancellation.
func (c *Coordinator) importOne(ctx context.Context, rec model.TestCase) model.RecordResult {
	tracking := model.Classify(rec)
	log := zap.L().With(zap.String("record_id", rec.ID), zap.String("tracking", tracking.Kind()))

	tr := progress.NewTracker(rec.ID, c.publish)
	tr.Begin(rec.Linking, tracking)
	runID := c.startRun(ctx, log, rec.ID, tracking)

	work := context.WithoutCancel(ctx)
	markStep(log, tr, progress.CreateStepID, model.StepInProgress, "")

	ref, err := c.write(work, rec, tracking)
	if err != nil {
		msg := xray.ErrorMessage(err)
		log.Error("importer: create or update failed", zap.Error(err))
		markStep(log, tr, progress.CreateStepID, model.StepFailed, msg)
		tr.Advance()
		tr.Fail(model.FailedItem{Label: tr.Snapshot().Steps[0].Label, Error: msg})

		snap := tr.Snapshot()
		res := failed(rec.ID, tracking.Kind(), msg, &snap)
		c.finish(work, log, rec.ID, runID, res, nil)
		return res
	}

	markStep(log, tr, progress.CreateStepID, model.StepCompleted, "")
	tr.SetCreated(ref.ID, ref.Key)
	tr.Advance()
	log.Info("importer: issue written", zap.String("external_id", ref.ID), zap.String("key", ref.Key))

	linked := c.linker.ExecuteLinking(work, ref.ID, rec.Linking, tr)
	tr.Finish(linked)

	snap := tr.Snapshot()
	key := ref.Key
	res := model.RecordResult{
		RecordID:    rec.ID,
		Key:         &key,
		HasWarnings: linked.HasErrors,
		Tracking:    tracking.Kind(),
		Progress:    &snap,
	}
	c.finish(work, log, rec.ID, runID, res, ref)
	return res
}

// write creates a new issue or updates the tracked one in place.
func (c *Coordinator) write(ctx context.Context, rec model.TestCase, tracking model.Tracking) (*xray.IssueRef, error) {
	fields := c.issueFields(rec)

	var (
		ref *xray.IssueRef
		err error
	)
	switch t := tracking.(type) {
	case model.AlreadyTracked:
		ref, err = c.issues.Update(ctx, t.SourceID, fields)
		if err == nil && ref != nil {
			if ref.ID == "" {
				ref.ID = t.SourceID
			}
			if ref.Key == "" {
				ref.Key = t.SourceKey
			}
		}
	default:
		ref, err = c.issues.Create(ctx, fields)
	}
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.ID == "" {
		return nil, eris.New("importer: server returned no issue id")
	}
	if ref.Key == "" {
		ref.Key = ref.ID
	}
	return ref, nil
}

func (c *Coordinator) issueFields(rec model.TestCase) xray.IssueFields {
	project := rec.ProjectKey
	if project == "" {
		project = c.defaultProject
	}
	steps := make([]xray.Step, 0, len(rec.Steps))
	for _, s := range rec.Steps {
		steps = append(steps, xray.Step{Action: s.Action, Data: s.Data, Result: s.Expected})
	}
	return xray.IssueFields{
		ProjectKey:  project,
		Summary:     rec.Title,
		Description: rec.Description,
		Priority:    rec.Priority,
		Labels:      rec.Labels,
		TestType:    rec.TestType,
		Steps:       steps,
	}
}

func (c *Coordinator) publish(s model.ProgressState) {
	for _, fn := range c.observers {
		fn(s)
	}
}

func (c *Coordinator) startRun(ctx context.Context, log *zap.Logger, recordID string, tracking model.Tracking) string {
	if c.store == nil {
		return ""
	}
	run, err := c.store.CreateRun(ctx, recordID, tracking.Kind())
	if err != nil {
		log.Warn("importer: record run start failed", zap.Error(err))
		return ""
	}
	return run.ID
}

// finish writes the run outcome and the record's import state. Failures are
// logged only; they never change the result.
func (c *Coordinator) finish(ctx context.Context, log *zap.Logger, recordID, runID string, res model.RecordResult, ref *xray.IssueRef) {
	if c.store == nil {
		return
	}

	if runID != "" {
		completion := store.RunCompletion{Status: model.RunStatusFor(res), Progress: res.Progress}
		if res.Key != nil {
			completion.ExternalKey = *res.Key
		}
		if res.Error != nil {
			completion.Error = *res.Error
		}
		if err := c.store.CompleteRun(ctx, runID, completion); err != nil {
			log.Warn("importer: record run completion failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	var patch model.RecordPatch
	if ref != nil {
		status := model.RecordImported
		now := c.now()
		patch = model.RecordPatch{Status: &status, ExternalID: &ref.ID, ExternalKey: &ref.Key, ImportedAt: &now}
	} else {
		status := model.RecordFailed
		patch = model.RecordPatch{Status: &status}
	}
	if _, err := c.store.UpdateRecord(ctx, recordID, patch); err != nil {
		if store.IsNotFound(err) {
			log.Debug("importer: record not stored locally, status not written")
			return
		}
		log.Warn("importer: record status update failed", zap.Error(err))
	}
}

func failed(recordID, tracking, msg string, snap *model.ProgressState) model.RecordResult {
	return model.RecordResult{RecordID: recordID, Error: &msg, Tracking: tracking, Progress: snap}
}

func markStep(log *zap.Logger, tr *progress.Tracker, id string, status model.StepStatus, errMsg string) {
	if err := tr.MarkStep(id, status, errMsg); err != nil {
		log.Debug("importer: step transition rejected", zap.String("step", id), zap.Error(err))
	}
}

// summarize counts results by outcome.
func summarize(results []model.RecordResult) (ok, warned, failedN int) {
	for _, r := range results {
		switch r.Outcome() {
		case model.OutcomeSuccess:
			ok++
		case model.OutcomeWarnings:
			warned++
		default:
			failedN++
		}
	}
	return ok, warned, failedN
}
