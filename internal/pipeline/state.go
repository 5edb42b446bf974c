package pipeline

import (
	"fmt"
	"time"

	"github.com/binliang/learnpilot/internal/types"
)

// validNext encodes the stage state machine. Succeeded, Cached, Failed,
// and Deferred are terminal. Blocked is reachable only from Pending and
// only during report derivation, for stages skipped because an upstream
// stage failed.
var validNext = map[types.StageStatus][]types.StageStatus{
	types.StagePending:  {types.StageRunning, types.StageDeferred, types.StageBlocked},
	types.StageRunning:  {types.StageSucceeded, types.StageCached, types.StageFailed, types.StageRetrying, types.StageDeferred},
	types.StageRetrying: {types.StageRunning, types.StageFailed},
}

func canTransition(from, to types.StageStatus) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// newStageState returns the pending state for one stage of one paper.
// Batched stages pass an empty paperID.
func newStageState(paperID, stage string) *types.StageState {
	return &types.StageState{
		PaperID: paperID,
		Stage:   stage,
		Status:  types.StagePending,
	}
}

// transition applies a status change, recording it in the append-only
// history. Illegal transitions are rejected so a bug in the orchestrator
// cannot silently corrupt a report.
func transition(st *types.StageState, to types.StageStatus, at time.Time, note string) error {
	if !canTransition(st.Status, to) {
		return fmt.Errorf("invalid stage transition %s -> %s (%s/%s)", st.Status, to, st.PaperID, st.Stage)
	}
	st.History = append(st.History, types.StageTransition{From: st.Status, To: to, At: at, Note: note})
	st.Status = to
	if to == types.StageRunning && st.StartedAt.IsZero() {
		st.StartedAt = at
	}
	if to.Terminal() {
		st.FinishedAt = at
	}
	return nil
}
