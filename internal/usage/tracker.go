package usage

import (
	"sync"
	"time"

	"github.com/binliang/learnpilot/internal/types"
)

// Tracker accumulates usage records for one pipeline run. It is safe for
// concurrent use; stage workers record calls as they happen.
type Tracker struct {
	mu        sync.Mutex
	budget    float64 // USD ceiling, zero means unlimited
	records   []types.UsageRecord
	cacheHits int

	now func() time.Time
}

// NewTracker returns a tracker enforcing the given soft cost ceiling.
// A zero budget disables the ceiling.
func NewTracker(maxCostBudget float64) *Tracker {
	return &Tracker{budget: maxCostBudget, now: time.Now}
}

// Record prices one external call and appends it to the run's records.
// PaperID is empty for calls not attributable to a single paper.
func (t *Tracker) Record(stage, paperID string, u types.Usage) types.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := types.UsageRecord{
		Stage:        stage,
		PaperID:      paperID,
		Model:        u.Model,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		Cost:         Cost(u),
		Timestamp:    t.now(),
	}
	t.records = append(t.records, rec)
	return rec
}

// RecordCacheHit counts a stage served from cache. Cache hits carry no
// cost and produce no usage record.
func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	t.cacheHits++
	t.mu.Unlock()
}

// TotalCost returns the accumulated cost so far.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

func (t *Tracker) totalLocked() float64 {
	total := 0.0
	for _, r := range t.records {
		total += r.Cost
	}
	return total
}

// BudgetExhausted reports whether the cost ceiling has been reached.
// Callers check this before issuing a new external call; work already in
// flight is never interrupted.
func (t *Tracker) BudgetExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget > 0 && t.totalLocked() >= t.budget
}

// Summary aggregates the run's records into per-stage and per-paper
// breakdowns.
func (t *Tracker) Summary() types.UsageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := types.UsageSummary{
		Records:    make([]types.UsageRecord, len(t.records)),
		Calls:      len(t.records),
		CacheHits:  t.cacheHits,
		ByStage:    make(map[string]types.UsageBucket),
		ByPaper:    make(map[string]types.UsageBucket),
		CostBudget: t.budget,
	}
	copy(s.Records, t.records)

	for _, r := range t.records {
		s.InputTokens += r.InputTokens
		s.OutputTokens += r.OutputTokens
		s.TotalCost += r.Cost

		bucket := s.ByStage[r.Stage]
		bucket.Calls++
		bucket.InputTokens += r.InputTokens
		bucket.OutputTokens += r.OutputTokens
		bucket.Cost += r.Cost
		s.ByStage[r.Stage] = bucket

		if r.PaperID != "" {
			bucket = s.ByPaper[r.PaperID]
			bucket.Calls++
			bucket.InputTokens += r.InputTokens
			bucket.OutputTokens += r.OutputTokens
			bucket.Cost += r.Cost
			s.ByPaper[r.PaperID] = bucket
		}
	}

	s.BudgetExhausted = t.budget > 0 && s.TotalCost >= t.budget
	return s
}
