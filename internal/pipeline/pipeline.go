// Package pipeline implements the staged, checkpointed collection pipeline:
// category discovery, entity resolution, metadata and summary fetch, CSV
// assembly and cleaning, driven step by step with resumable checkpoints.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cinedata/filmset-cli/internal/checkpoint"
	"github.com/cinedata/filmset-cli/internal/config"
	"github.com/cinedata/filmset-cli/internal/model"
)

// Driver sequences the stages in dependency order. It owns every checkpoint:
// stages only see input data and return output data. Exactly one driver may
// write a given store per process.
type Driver struct {
	cfg    *config.Config
	store  checkpoint.Store
	stages *Stages
}

// RunOpts selects which steps and groups to run.
type RunOpts struct {
	// Steps to force-recompute. Empty means resume: reuse existing
	// checkpoints and compute only missing steps.
	Steps []model.Step
	// Group restricts the run to one category group. Empty means all.
	Group string
	// CleanOnly skips every fetch stage and re-cleans existing output files.
	CleanOnly bool
}

// New creates a pipeline driver.
func New(cfg *config.Config, store checkpoint.Store, stages *Stages) *Driver {
	return &Driver{cfg: cfg, store: store, stages: stages}
}

// Run executes the requested steps for the requested groups. Groups are
// processed independently: one group's failure never blocks the others.
// The returned results carry a terminal status per executed (group, step).
func (d *Driver) Run(ctx context.Context, opts RunOpts) ([]model.GroupResult, error) {
	groups, err := d.selectGroups(opts.Group)
	if err != nil {
		return nil, err
	}

	if opts.CleanOnly {
		results := make([]model.GroupResult, 0, len(groups))
		for _, group := range groups {
			results = append(results, d.cleanOnly(ctx, group))
		}
		return results, nil
	}

	requested := make(map[model.Step]bool, len(opts.Steps))
	for _, s := range opts.Steps {
		requested[s] = true
	}
	// No explicit steps means resume: reuse every existing checkpoint and
	// compute only the missing ones. Explicit --steps forces recomputation.
	resume := len(opts.Steps) == 0

	results := make([]model.GroupResult, 0, len(groups))
	for _, group := range groups {
		results = append(results, d.runGroup(ctx, group, requested, resume))
	}
	return results, nil
}

func (d *Driver) selectGroups(group string) ([]string, error) {
	if group == "" {
		return d.cfg.Groups, nil
	}
	for _, g := range d.cfg.Groups {
		if g == group {
			return []string{group}, nil
		}
	}
	return nil, eris.Errorf("pipeline: unknown group %q", group)
}

// runGroup walks the steps in dependency order for one group. Per step the
// decision table is explicit: requested -> recompute; checkpointed -> reuse
// (skipped); missing -> compute on a resume run, otherwise the step does not
// run and a later step needing it fails with a missing-upstream cause.
func (d *Driver) runGroup(ctx context.Context, group string, requested map[model.Step]bool, resume bool) model.GroupResult {
	log := zap.L().With(zap.String("group", group))
	res := model.GroupResult{RunID: uuid.New().String(), Group: group}
	log.Info("pipeline: starting group", zap.String("run_id", res.RunID))

	for _, step := range model.AllSteps() {
		run, err := d.decide(ctx, group, step, requested, resume, &res)
		if err != nil {
			res.Steps = append(res.Steps, model.StepOutcome{
				Step: step, Status: model.StepAborted, Error: err.Error(),
			})
			break
		}
		if !run {
			continue
		}

		outcome := d.runStep(ctx, group, step)
		res.Steps = append(res.Steps, outcome)

		log.Info("pipeline: step finished",
			zap.String("step", string(step)),
			zap.String("status", string(outcome.Status)),
			zap.Int("failures", outcome.Failures),
		)

		if outcome.Status == model.StepAborted {
			break
		}
	}

	log.Info("pipeline: group done",
		zap.Bool("aborted", res.Aborted()),
		zap.Int("failures", res.Failures()),
	)
	return res
}

// decide applies the requested?/exists? table for one step. An existing
// checkpoint is reused unless the step was explicitly requested; a missing
// one is computed only on a resume run.
func (d *Driver) decide(ctx context.Context, group string, step model.Step, requested map[model.Step]bool, resume bool, res *model.GroupResult) (bool, error) {
	if requested[step] {
		return true, nil
	}
	exists, err := d.store.Exists(ctx, group, step)
	if err != nil {
		return false, err
	}
	if exists {
		res.Steps = append(res.Steps, model.StepOutcome{Step: step, Status: model.StepSkipped})
		return false, nil
	}
	return resume, nil
}

// runStep recomputes one step from its upstream checkpoints and persists the
// result. On a systemic failure the partial output is persisted before the
// step reports aborted; on a missing upstream nothing is written.
func (d *Driver) runStep(ctx context.Context, group string, step model.Step) model.StepOutcome {
	switch step {
	case model.StepSubcats:
		subcats, failures, err := d.stages.Subcats(ctx, group)
		return d.finish(ctx, group, step, subcats, failures, err)

	case model.StepFilms:
		subcats, err := loadUpstream[[]string](ctx, d.store, group, model.StepSubcats)
		if err != nil {
			return abortedOutcome(step, err)
		}
		films, failures, stageErr := d.stages.Films(ctx, group, subcats)
		return d.finish(ctx, group, step, films, failures, stageErr)

	case model.StepQIDs:
		films, err := loadUpstream[[]string](ctx, d.store, group, model.StepFilms)
		if err != nil {
			return abortedOutcome(step, err)
		}
		qids, failures, stageErr := d.stages.QIDs(ctx, films)
		return d.finish(ctx, group, step, qids, failures, stageErr)

	case model.StepMetadata:
		qids, err := loadUpstream[map[string]string](ctx, d.store, group, model.StepQIDs)
		if err != nil {
			return abortedOutcome(step, err)
		}
		meta, failures, stageErr := d.stages.Metadata(ctx, qids)
		return d.finish(ctx, group, step, meta, failures, stageErr)

	case model.StepSummaries:
		films, err := loadUpstream[[]string](ctx, d.store, group, model.StepFilms)
		if err != nil {
			return abortedOutcome(step, err)
		}
		summaries, failures, stageErr := d.stages.Summaries(ctx, films)
		return d.finish(ctx, group, step, summaries, failures, stageErr)

	case model.StepCSV:
		return d.runAssemble(ctx, group)

	case model.StepClean:
		return d.runClean(ctx, group)

	default:
		return abortedOutcome(step, eris.Errorf("pipeline: unknown step %q", step))
	}
}

func (d *Driver) runAssemble(ctx context.Context, group string) model.StepOutcome {
	qids, err := loadUpstream[map[string]string](ctx, d.store, group, model.StepQIDs)
	if err != nil {
		return abortedOutcome(model.StepCSV, err)
	}
	meta, err := loadUpstream[map[string]model.FilmMeta](ctx, d.store, group, model.StepMetadata)
	if err != nil {
		return abortedOutcome(model.StepCSV, err)
	}
	summaries, err := loadUpstream[map[string]string](ctx, d.store, group, model.StepSummaries)
	if err != nil {
		return abortedOutcome(model.StepCSV, err)
	}

	records := d.stages.Assemble(qids, meta, summaries)

	if err := d.store.Save(ctx, group, model.StepCSV, records); err != nil {
		return abortedOutcome(model.StepCSV, err)
	}
	if err := WriteCSV(OutputPath(d.cfg.Paths.OutputDir, group), records); err != nil {
		return abortedOutcome(model.StepCSV, err)
	}
	return model.StepOutcome{Step: model.StepCSV, Status: model.StepCompleted}
}

func (d *Driver) runClean(ctx context.Context, group string) model.StepOutcome {
	records, err := loadUpstream[[]model.FilmRecord](ctx, d.store, group, model.StepCSV)
	if err != nil {
		return abortedOutcome(model.StepClean, err)
	}
	return d.cleanAndWrite(ctx, group, records)
}

// cleanOnly re-cleans a group's existing output file without touching any
// fetch stage. Groups with no output file yet are skipped, not failed: only
// what exists gets cleaned.
func (d *Driver) cleanOnly(ctx context.Context, group string) model.GroupResult {
	res := model.GroupResult{RunID: uuid.New().String(), Group: group}

	path := OutputPath(d.cfg.Paths.OutputDir, group)
	records, err := ReadCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("pipeline: no output file to clean",
			zap.String("group", group), zap.String("path", path))
		res.Steps = append(res.Steps, model.StepOutcome{Step: model.StepClean, Status: model.StepSkipped})
		return res
	}
	if err != nil {
		res.Steps = append(res.Steps, abortedOutcome(model.StepClean, err))
		return res
	}

	res.Steps = append(res.Steps, d.cleanAndWrite(ctx, group, records))
	return res
}

func (d *Driver) cleanAndWrite(ctx context.Context, group string, records []model.FilmRecord) model.StepOutcome {
	cleaned := CleanRecords(records)

	if err := d.store.Save(ctx, group, model.StepClean, cleaned); err != nil {
		return abortedOutcome(model.StepClean, err)
	}
	if err := WriteCSV(OutputPath(d.cfg.Paths.OutputDir, group), cleaned); err != nil {
		return abortedOutcome(model.StepClean, err)
	}

	report := BuildQualityReport(group, cleaned)
	if err := writeReport(ReportPath(d.cfg.Paths.ReportsDir, group), report); err != nil {
		return abortedOutcome(model.StepClean, err)
	}

	return model.StepOutcome{Step: model.StepClean, Status: model.StepCompleted}
}

// finish persists a stage's output and classifies its outcome. The checkpoint
// is written even on a systemic failure so the partial results survive.
func (d *Driver) finish(ctx context.Context, group string, step model.Step, data any, failures []model.ItemFailure, stageErr error) model.StepOutcome {
	if saveErr := d.store.Save(ctx, group, step, data); saveErr != nil {
		return abortedOutcome(step, saveErr)
	}

	out := model.StepOutcome{Step: step, Failures: len(failures)}
	switch {
	case stageErr != nil:
		out.Status = model.StepAborted
		out.Error = stageErr.Error()
	case len(failures) > 0:
		out.Status = model.StepPartial
	default:
		out.Status = model.StepCompleted
	}
	return out
}

func abortedOutcome(step model.Step, err error) model.StepOutcome {
	return model.StepOutcome{Step: step, Status: model.StepAborted, Error: err.Error()}
}

// loadUpstream loads a required upstream checkpoint, converting absence into
// a clear missing-upstream cause.
func loadUpstream[T any](ctx context.Context, store checkpoint.Store, group string, step model.Step) (T, error) {
	var out T
	err := store.Load(ctx, group, step, &out)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return out, eris.Errorf("pipeline: missing upstream checkpoint %q for group %q; run --steps %s first", step, group, step)
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func writeReport(path string, report model.QualityReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create reports dir")
	}
	return eris.Wrap(
		os.WriteFile(path, []byte(FormatQualityReport(report)), 0o644),
		"pipeline: write quality report",
	)
}
