// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// AnalysisResult is the structured output of the paper analysis stage.
type AnalysisResult struct {
	Title            string     `json:"title"`
	Authors          []string   `json:"authors,omitempty"`
	ResearchProblem  string     `json:"research_problem"`
	MainMethod       string     `json:"main_method"`
	KeyContributions []string   `json:"key_contributions"`
	Difficulty       Difficulty `json:"difficulty"`
	// EstimatedMinutes is the reading time estimate for a reader at the
	// configured user level.
	EstimatedMinutes int      `json:"estimated_minutes"`
	CoreConcepts     []string `json:"core_concepts"`
}

// ExtractionResult is the structured output of the concept extraction stage.
type ExtractionResult struct {
	CoreConcepts       []ConceptClaim `json:"core_concepts"`
	SupportingConcepts []ConceptClaim `json:"supporting_concepts,omitempty"`
	Prerequisites      []Prerequisite `json:"prerequisites"`
	Relationships      []ConceptLink  `json:"concept_relationships,omitempty"`
	KnowledgeDomains   []string       `json:"knowledge_domains,omitempty"`
	// LearningMinutes estimates time to learn the paper's concepts, as
	// opposed to merely reading it. Used when analysis omits an estimate.
	LearningMinutes int `json:"learning_minutes,omitempty"`
}

// ConceptLink is a relationship between two concepts within a paper,
// as reported by extraction.
type ConceptLink struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Kind       string  `json:"kind,omitempty"` // e.g. "builds_on", "related"
	Confidence float64 `json:"confidence"`     // 0.0 to 1.0
}
