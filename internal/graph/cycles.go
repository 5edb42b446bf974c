package graph

import (
	"sort"

	"github.com/binliang/learnpilot/internal/types"
)

// breakCycles removes derived paper ordering edges until the paper
// subgraph is acyclic. Each detected cycle loses its lowest-confidence
// edge, with ties broken by (FromID, ToID) so repeated builds remove the
// same edges. Returns the surviving edge list and the removed edges in
// removal order.
func breakCycles(papers []types.Paper, edges []types.DependencyEdge, paperIDs map[string]bool) (kept, removed []types.DependencyEdge) {
	ingestRank := make(map[string]int, len(papers))
	for _, p := range papers {
		ingestRank[p.ID] = p.IngestIndex
	}
	startOrder := make([]string, 0, len(papers))
	for _, p := range papers {
		startOrder = append(startOrder, p.ID)
	}

	isPaperEdge := func(e types.DependencyEdge) bool {
		return e.Kind == types.RelationPrerequisiteOf && paperIDs[e.FromID] && paperIDs[e.ToID]
	}

	kept = edges
	for {
		// Adjacency over the current paper edges, neighbors in ingest
		// order so the DFS is deterministic.
		adj := make(map[string][]string)
		confidence := make(map[[2]string]float64)
		for _, e := range kept {
			if !isPaperEdge(e) {
				continue
			}
			adj[e.FromID] = append(adj[e.FromID], e.ToID)
			confidence[[2]string{e.FromID, e.ToID}] = e.Confidence
		}
		for n := range adj {
			targets := adj[n]
			sort.Slice(targets, func(i, j int) bool {
				return ingestRank[targets[i]] < ingestRank[targets[j]]
			})
		}

		cycle := findCycle(startOrder, adj)
		if cycle == nil {
			return kept, removed
		}

		// Pick the weakest edge on the cycle.
		var victim types.DependencyEdge
		found := false
		for i := 0; i+1 < len(cycle); i++ {
			e := types.DependencyEdge{
				FromID:     cycle[i],
				ToID:       cycle[i+1],
				Kind:       types.RelationPrerequisiteOf,
				Confidence: confidence[[2]string{cycle[i], cycle[i+1]}],
			}
			if !found || weakerEdge(e, victim) {
				victim = e
				found = true
			}
		}

		next := make([]types.DependencyEdge, 0, len(kept)-1)
		for _, e := range kept {
			if isPaperEdge(e) && e.FromID == victim.FromID && e.ToID == victim.ToID {
				continue
			}
			next = append(next, e)
		}
		kept = next
		removed = append(removed, victim)
	}
}

// weakerEdge reports whether a should be removed in preference to b.
func weakerEdge(a, b types.DependencyEdge) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	if a.FromID != b.FromID {
		return a.FromID < b.FromID
	}
	return a.ToID < b.ToID
}

// findCycle runs a colored DFS over the adjacency and returns the first
// cycle found as a node path whose first and last elements match, or nil
// when the graph is acyclic.
func findCycle(startOrder []string, adj map[string][]string) []string {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	parent := make(map[string]string)
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		for _, m := range adj[n] {
			switch color[m] {
			case white:
				parent[m] = n
				if visit(m) {
					return true
				}
			case grey:
				// Closing edge n -> m: walk parents back to m to
				// recover the cycle m -> ... -> n -> m.
				seq := []string{n}
				for cur := n; cur != m; {
					cur = parent[cur]
					seq = append(seq, cur)
				}
				for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
					seq[i], seq[j] = seq[j], seq[i]
				}
				cycle = append(seq, m)
				return true
			}
		}
		color[n] = black
		return false
	}

	for _, n := range startOrder {
		if color[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}
