package graph

import (
	"sort"

	"github.com/binliang/learnpilot/internal/types"
)

// topologicalOrder runs Kahn's algorithm over the paper ordering edges.
// Whenever several papers are ready at once, the easiest one goes first;
// remaining ties fall back to ingestion order. The edge set must already
// be acyclic.
func topologicalOrder(papers []types.Paper, edges []types.DependencyEdge, paperIDs map[string]bool) []string {
	type key struct {
		difficulty  int
		ingestIndex int
	}
	keys := make(map[string]key, len(papers))
	for _, p := range papers {
		keys[p.ID] = key{difficulty: p.Difficulty.Rank(), ingestIndex: p.IngestIndex}
	}

	indegree := make(map[string]int, len(papers))
	adj := make(map[string][]string)
	for _, p := range papers {
		indegree[p.ID] = 0
	}
	for _, e := range edges {
		if e.Kind != types.RelationPrerequisiteOf || !paperIDs[e.FromID] || !paperIDs[e.ToID] {
			continue
		}
		adj[e.FromID] = append(adj[e.FromID], e.ToID)
		indegree[e.ToID]++
	}

	ready := make([]string, 0, len(papers))
	for _, p := range papers {
		if indegree[p.ID] == 0 {
			ready = append(ready, p.ID)
		}
	}

	order := make([]string, 0, len(papers))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := keys[ready[i]], keys[ready[j]]
			if a.difficulty != b.difficulty {
				return a.difficulty < b.difficulty
			}
			return a.ingestIndex < b.ingestIndex
		})
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range adj[n] {
			indegree[m]--
			if indegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	return order
}
