package graph

import (
	"fmt"
	"sort"

	"github.com/binliang/learnpilot/internal/config"
	"github.com/binliang/learnpilot/internal/types"
)

// levelConfidence maps the stated depth of a prerequisite to the
// confidence of the edges it induces. Deeper requirements are stronger
// ordering signals.
func levelConfidence(level types.PrereqLevel) float64 {
	switch level {
	case types.PrereqBasic:
		return 0.6
	case types.PrereqIntermediate:
		return 0.75
	case types.PrereqAdvanced:
		return 0.9
	default:
		return 0.5
	}
}

func clampConfidence(c float64) float64 {
	if c <= 0 {
		return 0.5
	}
	if c > 1 {
		return 1
	}
	return c
}

// Build constructs the dependency graph for a set of analyzed papers.
//
// Nodes are the papers plus every concept they teach or require, with
// concept names normalized so different spellings merge. Edges are:
//   - teaches: paper -> core concept
//   - prerequisite_of: required concept -> paper, plus a derived
//     paper -> paper edge when one paper's prerequisite is a core concept
//     another paper teaches
//   - related: concept -> concept links reported by extraction
//
// Cycles among the derived paper edges are broken by dropping the
// lowest-confidence edge on each cycle; every removal is reported as a
// warning. The returned graph carries the topological reading order with
// ties broken by difficulty (easiest first) and then ingestion order, so
// identical inputs always produce identical output.
func Build(papers []types.Paper) (*types.DependencyGraph, []types.Warning, error) {
	if len(papers) == 0 {
		return nil, nil, &config.InvalidConfigurationError{
			Field:   "papers",
			Message: "at least one successfully analyzed paper is required",
		}
	}

	// 1. Anchor every tie-break to ingestion order.
	sorted := make([]types.Paper, len(papers))
	copy(sorted, papers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].IngestIndex < sorted[j].IngestIndex
	})

	// 2. Concept nodes, merged by normalized ID. First-seen order is kept
	// so the node list is stable.
	var conceptOrder []string
	concepts := make(map[string]*types.ConceptNode)
	seenBy := make(map[string]map[string]bool) // concept ID -> paper IDs referencing it

	touch := func(paperID, rawName string) *types.ConceptNode {
		id := NormalizeConcept(rawName)
		if id == "" {
			return nil
		}
		node, ok := concepts[id]
		if !ok {
			node = &types.ConceptNode{ID: id, Name: rawName}
			concepts[id] = node
			conceptOrder = append(conceptOrder, id)
			seenBy[id] = make(map[string]bool)
		}
		if paperID != "" && !seenBy[id][paperID] {
			seenBy[id][paperID] = true
			node.Frequency++
		}
		return node
	}

	for _, p := range sorted {
		for _, claim := range p.CoreConcepts {
			node := touch(p.ID, claim.Name)
			if node == nil {
				continue
			}
			if node.Category == "" {
				node.Category = claim.Category
			}
			if claim.Importance > node.Importance {
				node.Importance = claim.Importance
			}
		}
		for _, pre := range p.Prerequisites {
			touch(p.ID, pre.Name)
		}
	}

	// 3. Concept-level edges.
	var edges []types.DependencyEdge
	edgeIndex := make(map[string]int) // from|kind|to -> index into edges

	addEdge := func(from, to string, kind types.RelationKind, conf float64) {
		if from == "" || to == "" || from == to {
			return
		}
		key := from + "|" + string(kind) + "|" + to
		if i, ok := edgeIndex[key]; ok {
			if conf > edges[i].Confidence {
				edges[i].Confidence = conf
			}
			return
		}
		edgeIndex[key] = len(edges)
		edges = append(edges, types.DependencyEdge{FromID: from, ToID: to, Kind: kind, Confidence: conf})
	}

	teachers := make(map[string][]string) // concept ID -> paper IDs teaching it, ingest order
	for _, p := range sorted {
		for _, claim := range p.CoreConcepts {
			id := NormalizeConcept(claim.Name)
			if id == "" {
				continue
			}
			addEdge(p.ID, id, types.RelationTeaches, clampConfidence(claim.Importance))
			teachers[id] = append(teachers[id], p.ID)
		}
	}
	for _, p := range sorted {
		for _, pre := range p.Prerequisites {
			id := NormalizeConcept(pre.Name)
			addEdge(id, p.ID, types.RelationPrerequisiteOf, levelConfidence(pre.Level))
		}
		for _, link := range p.Relationships {
			from := NormalizeConcept(link.From)
			to := NormalizeConcept(link.To)
			touch("", link.From)
			touch("", link.To)
			addEdge(from, to, types.RelationRelated, clampConfidence(link.Confidence))
		}
	}

	// 4. Derived paper -> paper ordering edges: if paper X requires a
	// concept paper Y teaches, Y comes before X.
	for _, p := range sorted {
		for _, pre := range p.Prerequisites {
			id := NormalizeConcept(pre.Name)
			for _, teacherID := range teachers[id] {
				if teacherID == p.ID {
					continue
				}
				addEdge(teacherID, p.ID, types.RelationPrerequisiteOf, levelConfidence(pre.Level))
			}
		}
	}

	// 5. Break cycles among the paper edges, lowest confidence first.
	paperIDs := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		paperIDs[p.ID] = true
	}
	edges, removed := breakCycles(sorted, edges, paperIDs)

	var warnings []types.Warning
	for _, e := range removed {
		warnings = append(warnings, types.Warning{
			Code: types.WarnCycleBroken,
			Message: fmt.Sprintf("dependency cycle detected: removed edge %s -> %s (confidence %.2f)",
				e.FromID, e.ToID, e.Confidence),
		})
	}

	// 6. Topological reading order over the now-acyclic paper edges.
	order := topologicalOrder(sorted, edges, paperIDs)

	g := &types.DependencyGraph{
		Papers:   make([]types.PaperNode, 0, len(sorted)),
		Concepts: make([]types.ConceptNode, 0, len(conceptOrder)),
		Edges:    edges,
		Order:    order,
	}
	for _, p := range sorted {
		g.Papers = append(g.Papers, types.PaperNode{
			ID:               p.ID,
			Title:            p.Title,
			Difficulty:       p.Difficulty,
			EstimatedMinutes: p.EstimatedMinutes,
			IngestIndex:      p.IngestIndex,
		})
	}
	for _, id := range conceptOrder {
		g.Concepts = append(g.Concepts, *concepts[id])
	}

	return g, warnings, nil
}
