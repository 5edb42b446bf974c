// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RelationKind classifies a dependency graph edge.
type RelationKind string

// Edge kinds. PrerequisiteOf points from the thing that must come first
// to the thing that depends on it.
const (
	RelationPrerequisiteOf RelationKind = "prerequisite_of"
	RelationTeaches        RelationKind = "teaches"
	RelationRelated        RelationKind = "related"
)

// PaperNode is a paper vertex in the dependency graph.
type PaperNode struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	IngestIndex      int        `json:"ingest_index"`
}

// ConceptNode is a concept vertex in the dependency graph. Its ID is the
// normalized concept name, so papers naming the same concept with
// different casing or spacing share one node.
type ConceptNode struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Importance float64 `json:"importance"`
	// Frequency counts how many papers reference the concept.
	Frequency int `json:"frequency"`
}

// DependencyEdge is a directed edge between two graph nodes. FromID and
// ToID reference paper or concept node IDs; the two ID spaces do not
// overlap because paper IDs are generated.
type DependencyEdge struct {
	FromID     string       `json:"from_id"`
	ToID       string       `json:"to_id"`
	Kind       RelationKind `json:"kind"`
	Confidence float64      `json:"confidence"` // 0.0 to 1.0
}

// DependencyGraph is the acyclic dependency graph over papers and
// concepts produced by the graph builder. Order holds the topological
// reading order of the paper nodes.
type DependencyGraph struct {
	Papers   []PaperNode      `json:"papers"`
	Concepts []ConceptNode    `json:"concepts"`
	Edges    []DependencyEdge `json:"edges"`
	Order    []string         `json:"order"`
}

// TopologicalOrder returns paper IDs in reading order.
func (g *DependencyGraph) TopologicalOrder() []string {
	return g.Order
}

// Paper returns the paper node with the given ID, or nil.
func (g *DependencyGraph) Paper(id string) *PaperNode {
	for i := range g.Papers {
		if g.Papers[i].ID == id {
			return &g.Papers[i]
		}
	}
	return nil
}

// Concept returns the concept node with the given normalized ID, or nil.
func (g *DependencyGraph) Concept(id string) *ConceptNode {
	for i := range g.Concepts {
		if g.Concepts[i].ID == id {
			return &g.Concepts[i]
		}
	}
	return nil
}

// PrerequisitesOf returns the IDs of papers that must be read before the
// given paper, in a stable order.
func (g *DependencyGraph) PrerequisitesOf(paperID string) []string {
	var out []string
	papers := g.paperSet()
	for _, e := range g.Edges {
		if e.Kind == RelationPrerequisiteOf && e.ToID == paperID && papers[e.FromID] {
			out = append(out, e.FromID)
		}
	}
	return out
}

// DependentsOf returns the IDs of papers that depend on the given paper,
// in a stable order.
func (g *DependencyGraph) DependentsOf(paperID string) []string {
	var out []string
	papers := g.paperSet()
	for _, e := range g.Edges {
		if e.Kind == RelationPrerequisiteOf && e.FromID == paperID && papers[e.ToID] {
			out = append(out, e.ToID)
		}
	}
	return out
}

// ConceptsTaughtBy returns the concept IDs a paper teaches.
func (g *DependencyGraph) ConceptsTaughtBy(paperID string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Kind == RelationTeaches && e.FromID == paperID {
			out = append(out, e.ToID)
		}
	}
	return out
}

func (g *DependencyGraph) paperSet() map[string]bool {
	set := make(map[string]bool, len(g.Papers))
	for _, p := range g.Papers {
		set[p.ID] = true
	}
	return set
}
