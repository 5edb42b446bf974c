// Package pipeline provides the high-level orchestration for the study
// planning process: per-paper analysis and concept extraction, batched
// graph building and scheduling, and per-paper task generation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/binliang/learnpilot/internal/config"
	"github.com/binliang/learnpilot/internal/executor"
	"github.com/binliang/learnpilot/internal/graph"
	"github.com/binliang/learnpilot/internal/schedule"
	"github.com/binliang/learnpilot/internal/types"
	"github.com/binliang/learnpilot/internal/usage"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage   string `json:"stage"`
	PaperID string `json:"paper_id,omitempty"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Options holds the dependencies for an Orchestrator.
type Options struct {
	Config   config.Config
	Executor executor.StageExecutor
	// Cache is optional; nil gets an in-process cache with the
	// configured TTL.
	Cache      Cache
	OnProgress ProgressCallback
}

// Orchestrator drives pipeline runs against a stage executor. The cost
// ceiling spans everything one orchestrator executes, including
// on-demand guidance calls.
type Orchestrator struct {
	cfg        config.Config
	exec       executor.StageExecutor
	cache      Cache
	tracker    *usage.Tracker
	onProgress ProgressCallback

	// Overridable in tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New validates the configuration and builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Executor == nil {
		return nil, &config.InvalidConfigurationError{Field: "executor", Message: "a stage executor is required"}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(opts.Config.CacheTTL.Std())
	}
	return &Orchestrator{
		cfg:        opts.Config,
		exec:       opts.Executor,
		cache:      cache,
		tracker:    usage.NewTracker(opts.Config.MaxCostBudget),
		onProgress: opts.OnProgress,
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

// UsageSummary reports the cost accounting accumulated so far.
func (o *Orchestrator) UsageSummary() types.UsageSummary {
	return o.tracker.Summary()
}

// paperRun carries one paper's state through a run. A paper is owned by
// exactly one worker at a time; phases are separated by barriers.
type paperRun struct {
	rec        types.PaperRecord
	analysis   *types.AnalysisResult
	extraction *types.ExtractionResult
	tasks      *types.TaskSheet
	states     []*types.StageState // analysis, extraction, task_generation
}

func newPaperRun(rec types.PaperRecord) *paperRun {
	rec.Status = types.PaperPending
	return &paperRun{
		rec: rec,
		states: []*types.StageState{
			newStageState(rec.ID, types.StageAnalysis),
			newStageState(rec.ID, types.StageExtraction),
			newStageState(rec.ID, types.StageTasks),
		},
	}
}

func (p *paperRun) state(stage string) *types.StageState {
	for _, st := range p.states {
		if st.Stage == stage {
			return st
		}
	}
	return nil
}

// extracted reports whether both per-paper model stages completed, which
// is what the success ratio gate counts.
func (p *paperRun) extracted() bool {
	for _, stage := range []string{types.StageAnalysis, types.StageExtraction} {
		switch p.state(stage).Status {
		case types.StageSucceeded, types.StageCached:
		default:
			return false
		}
	}
	return true
}

// settle records a stage error on the paper. A deferred stage also
// defers everything downstream of it; a failure leaves downstream stages
// pending for the report to derive as blocked.
func (p *paperRun) settle(at time.Time, err error) {
	if errors.Is(err, ErrDeferred) {
		p.rec.Status = types.PaperDeferred
		for _, st := range p.states {
			if st.Status == types.StagePending {
				_ = transition(st, types.StageDeferred, at, "upstream stage deferred")
			}
		}
		return
	}
	p.rec.Status = types.PaperFailed
}

// paper assembles the graph builder's input from the analysis and
// extraction results.
func (p *paperRun) paper() types.Paper {
	title := p.analysis.Title
	if title == "" {
		title = p.rec.Title
	}
	minutes := p.analysis.EstimatedMinutes
	if minutes <= 0 {
		minutes = p.extraction.LearningMinutes
	}
	concepts := make([]types.ConceptClaim, 0, len(p.extraction.CoreConcepts)+len(p.extraction.SupportingConcepts))
	concepts = append(concepts, p.extraction.CoreConcepts...)
	concepts = append(concepts, p.extraction.SupportingConcepts...)
	return types.Paper{
		ID:               p.rec.ID,
		Title:            title,
		Difficulty:       p.analysis.Difficulty,
		EstimatedMinutes: minutes,
		CoreConcepts:     concepts,
		Prerequisites:    p.extraction.Prerequisites,
		Relationships:    p.extraction.Relationships,
		IngestIndex:      p.rec.IngestIndex,
	}
}

// run is the mutable state of one pipeline run.
type run struct {
	id        string
	startedAt time.Time
	papers    []*paperRun

	graphState    *types.StageState
	scheduleState *types.StageState
	graph         *types.DependencyGraph
	schedule      *types.Schedule

	mu             sync.Mutex
	warnings       []types.Warning
	deferredWarned bool
	aborted        bool // batched stages skipped by the success ratio gate
}

func (r *run) warn(code types.WarningCode, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, types.Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *run) warnAll(ws []types.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, ws...)
}

func (r *run) warnDeferredOnce(budget, spent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deferredWarned {
		return
	}
	r.deferredWarned = true
	r.warnings = append(r.warnings, types.Warning{
		Code:    types.WarnCostDeferred,
		Message: fmt.Sprintf("cost budget of $%.2f reached ($%.4f spent); remaining model calls deferred", budget, spent),
	})
}

// Run executes the full pipeline over the given papers and always
// returns a report, even when it also returns an error. The error is
// the caller's signal; the report is the record of what happened.
func (o *Orchestrator) Run(ctx context.Context, papers []types.PaperRecord) (*types.PipelineReport, error) {
	r := &run{
		id:            uuid.New().String(),
		startedAt:     o.now(),
		graphState:    newStageState("", types.StageGraph),
		scheduleState: newStageState("", types.StageSchedule),
	}

	if len(papers) == 0 {
		return o.report(r), &config.InvalidConfigurationError{Field: "papers", Message: "at least one paper is required"}
	}

	ordered := make([]types.PaperRecord, len(papers))
	copy(ordered, papers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].IngestIndex < ordered[j].IngestIndex })
	for _, rec := range ordered {
		r.papers = append(r.papers, newPaperRun(rec))
	}

	o.emit(r.id, "", "", fmt.Sprintf("starting run over %d papers", len(r.papers)))

	// Phase 1: analysis and extraction, fanned out per paper.
	o.runPaperPhase(ctx, r)

	if err := ctx.Err(); err != nil {
		r.warn(types.WarnCanceled, "run canceled: %v", err)
		return o.report(r), err
	}

	// Success ratio gate. Zero successes abort regardless of the ratio:
	// a graph over nothing helps nobody.
	succeeded := 0
	for _, p := range r.papers {
		if p.extracted() {
			succeeded++
		}
	}
	total := len(r.papers)
	if succeeded == 0 || float64(succeeded)/float64(total) < o.cfg.MinSuccessRatio {
		r.aborted = true
		r.warn(types.WarnPartialFailure, "only %d of %d papers completed analysis and extraction", succeeded, total)
		return o.report(r), &PartialPipelineError{Succeeded: succeeded, Total: total, MinRatio: o.cfg.MinSuccessRatio}
	}

	// Phase 2: batched graph and schedule over the successful papers.
	if err := o.runBatchedPhase(r); err != nil {
		return o.report(r), err
	}

	// Phase 3: per-paper task generation against the graph.
	o.runTaskPhase(ctx, r)

	if err := ctx.Err(); err != nil {
		r.warn(types.WarnCanceled, "run canceled: %v", err)
		return o.report(r), err
	}

	return o.report(r), nil
}

// runPaperPhase fans the per-paper stages out over the worker pool and
// waits for every paper to settle. When enough papers have failed that
// the success ratio can no longer be met, the remaining work is
// canceled early.
func (o *Orchestrator) runPaperPhase(ctx context.Context, r *run) {
	need := int(math.Ceil(o.cfg.MinSuccessRatio * float64(len(r.papers))))
	if need < 1 {
		need = 1
	}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.WorkerConcurrency)

	var mu sync.Mutex
	failed := 0

	for _, p := range r.papers {
		p := p // per-iteration copy; required under pre-1.22 loop semantics
		g.Go(func() error {
			o.runPaperStages(phaseCtx, r, p)
			if !p.extracted() {
				mu.Lock()
				failed++
				unsatisfiable := len(r.papers)-failed < need
				mu.Unlock()
				if unsatisfiable {
					cancel()
				}
			}
			return nil
		})
	}
	_ = g.Wait() // workers isolate their own failures
}

// runPaperStages executes analysis then extraction for one paper.
func (o *Orchestrator) runPaperStages(ctx context.Context, r *run, p *paperRun) {
	if ctx.Err() != nil {
		return // never started; stages stay pending
	}
	p.rec.Status = types.PaperRunning
	o.emit(r.id, types.StageAnalysis, p.rec.ID, fmt.Sprintf("analyzing %q", p.rec.Title))

	analysis, err := runStage(ctx, o, r, p.state(types.StageAnalysis), VersionAnalysis, p.rec.Content,
		func(cctx context.Context) (*types.AnalysisResult, types.Usage, error) {
			return o.exec.Analyze(cctx, p.rec)
		})
	if err != nil {
		p.settle(o.now(), err)
		return
	}
	p.analysis = analysis

	o.emit(r.id, types.StageExtraction, p.rec.ID, fmt.Sprintf("extracting concepts from %q", p.rec.Title))

	extraction, err := runStage(ctx, o, r, p.state(types.StageExtraction), VersionExtraction, extractionInput(p.rec, analysis),
		func(cctx context.Context) (*types.ExtractionResult, types.Usage, error) {
			return o.exec.ExtractConcepts(cctx, p.rec, p.analysis)
		})
	if err != nil {
		p.settle(o.now(), err)
		return
	}
	p.extraction = extraction
}

// runBatchedPhase builds the dependency graph and the schedule. Both are
// local computations; they cost nothing and do not retry.
func (o *Orchestrator) runBatchedPhase(r *run) error {
	if err := transition(r.graphState, types.StageRunning, o.now(), ""); err != nil {
		return err
	}
	inputs := make([]types.Paper, 0, len(r.papers))
	for _, p := range r.papers {
		if p.extracted() {
			inputs = append(inputs, p.paper())
		}
	}
	depGraph, warnings, err := graph.Build(inputs)
	if err != nil {
		r.graphState.Error = err.Error()
		_ = transition(r.graphState, types.StageFailed, o.now(), "graph build failed")
		return err
	}
	r.warnAll(warnings)
	r.graph = depGraph
	if err := transition(r.graphState, types.StageSucceeded, o.now(), ""); err != nil {
		return err
	}
	o.emit(r.id, types.StageGraph, "", fmt.Sprintf("built dependency graph: %d papers, %d concepts, %d edges",
		len(depGraph.Papers), len(depGraph.Concepts), len(depGraph.Edges)))

	if err := transition(r.scheduleState, types.StageRunning, o.now(), ""); err != nil {
		return err
	}
	plan, warnings, err := schedule.Build(depGraph, schedule.Options{
		DailyBudgetMinutes: o.cfg.DailyTimeBudgetMinutes,
		TotalDays:          o.cfg.TotalDays,
		ReviewIntervalDays: o.cfg.ReviewIntervalDays,
	})
	if err != nil {
		r.scheduleState.Error = err.Error()
		_ = transition(r.scheduleState, types.StageFailed, o.now(), "scheduling failed")
		return err
	}
	r.warnAll(warnings)
	r.schedule = plan
	if err := transition(r.scheduleState, types.StageSucceeded, o.now(), ""); err != nil {
		return err
	}
	o.emit(r.id, types.StageSchedule, "", fmt.Sprintf("planned %d days (%d overflow)", len(plan.Days), plan.OverflowDays))
	return nil
}

// runTaskPhase generates a task sheet for every paper that made it
// through extraction.
func (o *Orchestrator) runTaskPhase(ctx context.Context, r *run) {
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.WorkerConcurrency)

	for _, p := range r.papers {
		p := p // per-iteration copy; required under pre-1.22 loop semantics
		if !p.extracted() {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			gc := graphContext(r.graph, p.rec.ID)
			o.emit(r.id, types.StageTasks, p.rec.ID, fmt.Sprintf("generating tasks for %q", p.rec.Title))

			sheet, err := runStage(ctx, o, r, p.state(types.StageTasks), VersionTasks, tasksInput(p.rec, gc),
				func(cctx context.Context) (*types.TaskSheet, types.Usage, error) {
					return o.exec.GenerateTasks(cctx, p.rec, gc)
				})
			if err != nil {
				p.settle(o.now(), err)
				return nil
			}
			p.tasks = sheet
			p.rec.Status = types.PaperSucceeded
			return nil
		})
	}
	_ = g.Wait()
}

// Guidance reviews a learner submission on demand. It shares the
// orchestrator's cache, retry policy, and cost ceiling but runs outside
// any batch.
func (o *Orchestrator) Guidance(ctx context.Context, submission types.Submission) (*types.Feedback, error) {
	if strings.TrimSpace(submission.Content) == "" {
		return nil, &config.InvalidConfigurationError{Field: "submission", Message: "submission content is empty"}
	}
	r := &run{id: uuid.New().String(), startedAt: o.now()}
	st := newStageState(submission.PaperID, types.StageGuidance)
	input := submission.PaperID + "\n" + submission.TaskRef + "\n" + submission.Content

	return runStage(ctx, o, r, st, VersionGuidance, input,
		func(cctx context.Context) (*types.Feedback, types.Usage, error) {
			return o.exec.GenerateGuidance(cctx, submission)
		})
}

// runStage executes one model-backed stage through the cache, budget
// check, timeout, and retry loop, driving the stage's state machine as
// it goes.
func runStage[T any](ctx context.Context, o *Orchestrator, r *run, st *types.StageState, version, input string,
	invoke func(context.Context) (*T, types.Usage, error)) (*T, error) {

	mark := func(to types.StageStatus, note string) error {
		return transition(st, to, o.now(), note)
	}

	if err := mark(types.StageRunning, ""); err != nil {
		return nil, err
	}

	// 1. Cache lookup. Hits cost nothing and are served even past the
	//    cost ceiling.
	key := Fingerprint(version, o.exec.ModelFor(st.Stage), input)
	if raw, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		out := new(T)
		if uerr := json.Unmarshal([]byte(raw), out); uerr == nil {
			o.tracker.RecordCacheHit()
			o.emit(r.id, st.Stage, st.PaperID, "served from cache")
			if terr := mark(types.StageCached, "cache hit"); terr != nil {
				return nil, terr
			}
			return out, nil
		}
		// Corrupt entry; recompute below.
	}

	for attempt := 0; ; attempt++ {
		// 2. Soft cost ceiling, checked before every non-cached call.
		if o.tracker.BudgetExhausted() {
			r.warnDeferredOnce(o.cfg.MaxCostBudget, o.tracker.TotalCost())
			if err := mark(types.StageDeferred, "cost budget exhausted"); err != nil {
				return nil, err
			}
			return nil, ErrDeferred
		}

		// 3. One attempt under the per-call timeout.
		st.Attempts++
		callCtx, cancelCall := context.WithTimeout(ctx, o.cfg.StageTimeout.Std())
		result, u, err := invoke(callCtx)
		cancelCall()

		if u.TotalTokens() > 0 {
			o.tracker.Record(st.Stage, st.PaperID, u)
		}

		if err == nil {
			if raw, merr := json.Marshal(result); merr == nil {
				// Cache write failures never fail the stage.
				_ = o.cache.Put(ctx, key, string(raw))
			}
			if terr := mark(types.StageSucceeded, ""); terr != nil {
				return nil, terr
			}
			return result, nil
		}

		// 4. Retry transient failures with exponential backoff until the
		//    attempt budget runs out.
		retryable := executor.IsRetryable(err) && ctx.Err() == nil
		if !retryable || attempt >= o.cfg.MaxRetryAttempts {
			st.Error = err.Error()
			if terr := mark(types.StageFailed, fmt.Sprintf("attempt %d: %v", st.Attempts, err)); terr != nil {
				return nil, terr
			}
			return nil, err
		}
		if terr := mark(types.StageRetrying, fmt.Sprintf("attempt %d failed: %v", st.Attempts, err)); terr != nil {
			return nil, terr
		}
		if serr := o.sleep(ctx, backoffDelay(attempt)); serr != nil {
			st.Error = serr.Error()
			if terr := mark(types.StageFailed, "canceled during backoff"); terr != nil {
				return nil, terr
			}
			return nil, serr
		}
		if terr := mark(types.StageRunning, "retrying"); terr != nil {
			return nil, terr
		}
	}
}

// extractionInput is the cache fingerprint input for the extraction
// stage: the paper text plus the analysis concepts that season the
// prompt.
func extractionInput(rec types.PaperRecord, analysis *types.AnalysisResult) string {
	return rec.Content + "\n" + strings.Join(analysis.CoreConcepts, ",")
}

// tasksInput is the cache fingerprint input for task generation: the
// paper text plus its graph context, which changes when the reading
// order around it changes.
func tasksInput(rec types.PaperRecord, gc types.GraphContext) string {
	ctxJSON, _ := json.Marshal(gc)
	return rec.Content + "\n" + string(ctxJSON)
}

// graphContext assembles the slice of the graph that task generation
// sees for one paper.
func graphContext(g *types.DependencyGraph, paperID string) types.GraphContext {
	gc := types.GraphContext{PaperID: paperID, OrderTotal: len(g.Order)}
	for i, id := range g.Order {
		if id == paperID {
			gc.OrderPosition = i + 1
			break
		}
	}
	for _, cid := range g.ConceptsTaughtBy(paperID) {
		if c := g.Concept(cid); c != nil {
			gc.Teaches = append(gc.Teaches, c.Name)
		}
	}
	for _, pid := range g.PrerequisitesOf(paperID) {
		if pn := g.Paper(pid); pn != nil {
			gc.Prerequisites = append(gc.Prerequisites, pn.Title)
		}
	}
	for _, pid := range g.DependentsOf(paperID) {
		if pn := g.Paper(pid); pn != nil {
			gc.Dependents = append(gc.Dependents, pn.Title)
		}
	}
	return gc
}

// report assembles the final pipeline report, deriving blocked stages
// and settling paper statuses.
func (o *Orchestrator) report(r *run) *types.PipelineReport {
	now := o.now()

	rep := &types.PipelineReport{
		RunID:      r.id,
		StartedAt:  r.startedAt,
		FinishedAt: now,
		Settings:   o.settings(),
		Graph:      r.graph,
		Schedule:   r.schedule,
		Usage:      o.tracker.Summary(),
	}

	// Derive the batched stage states first: when the gate aborted the
	// run they were skipped because of upstream failures.
	for _, st := range []*types.StageState{r.graphState, r.scheduleState} {
		if r.aborted && st.Status == types.StagePending {
			_ = transition(st, types.StageBlocked, now, "per-paper stages fell below the success ratio")
		}
	}
	if r.graphState.Status == types.StageFailed && r.scheduleState.Status == types.StagePending {
		_ = transition(r.scheduleState, types.StageBlocked, now, "graph stage failed")
	}
	rep.Batched = []types.StageState{*r.graphState, *r.scheduleState}

	for _, p := range r.papers {
		o.derivePaper(r, p, now)

		stages := make([]types.StageState, 0, len(p.states))
		for _, st := range p.states {
			stages = append(stages, *st)
		}
		rep.Papers = append(rep.Papers, types.PaperReport{
			PaperID: p.rec.ID,
			Title:   p.rec.Title,
			Status:  p.rec.Status,
			Stages:  stages,
		})
		if p.tasks != nil {
			if rep.TaskSheets == nil {
				rep.TaskSheets = make(map[string]*types.TaskSheet)
			}
			rep.TaskSheets[p.rec.ID] = p.tasks
		}
	}

	r.mu.Lock()
	rep.Warnings = append(rep.Warnings, r.warnings...)
	r.mu.Unlock()

	return rep
}

// derivePaper finalizes one paper's stage states and status for the
// report.
func (o *Orchestrator) derivePaper(r *run, p *paperRun, now time.Time) {
	// A failed stage blocks every pending stage after it. The gate
	// aborting the batch blocks task generation even for papers whose
	// own stages all succeeded.
	failedUpstream := false
	for _, st := range p.states {
		if failedUpstream && st.Status == types.StagePending {
			_ = transition(st, types.StageBlocked, now, "upstream stage failed")
			continue
		}
		if st.Status == types.StageFailed {
			failedUpstream = true
		}
		if st.Stage == types.StageTasks && st.Status == types.StagePending && r.aborted && p.extracted() {
			_ = transition(st, types.StageBlocked, now, "batched stages were skipped")
		}
	}

	var anyFailed, anyDeferred, anyBlocked, anyPending bool
	for _, st := range p.states {
		switch st.Status {
		case types.StageFailed:
			anyFailed = true
		case types.StageDeferred:
			anyDeferred = true
		case types.StageBlocked:
			anyBlocked = true
		case types.StagePending, types.StageRunning, types.StageRetrying:
			anyPending = true
		}
	}
	switch {
	case anyFailed:
		p.rec.Status = types.PaperFailed
	case anyDeferred:
		p.rec.Status = types.PaperDeferred
	case anyBlocked:
		p.rec.Status = types.PaperBlocked
	case anyPending:
		p.rec.Status = types.PaperPending
	default:
		p.rec.Status = types.PaperSucceeded
	}
}

func (o *Orchestrator) settings() types.RunSettings {
	return types.RunSettings{
		DailyTimeBudgetMinutes: o.cfg.DailyTimeBudgetMinutes,
		TotalDays:              o.cfg.TotalDays,
		ReviewIntervalDays:     o.cfg.ReviewIntervalDays,
		MaxRetryAttempts:       o.cfg.MaxRetryAttempts,
		MinSuccessRatio:        o.cfg.MinSuccessRatio,
		WorkerConcurrency:      o.cfg.WorkerConcurrency,
		MaxCostBudget:          o.cfg.MaxCostBudget,
		UserLevel:              o.cfg.UserLevel,
		Language:               o.cfg.Language,
	}
}

func (o *Orchestrator) emit(runID, stage, paperID, message string) {
	if o.onProgress != nil {
		o.onProgress(ProgressEvent{Stage: stage, PaperID: paperID, Message: message, RunID: runID})
	}
}
