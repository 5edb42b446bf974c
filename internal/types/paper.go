// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// Difficulty is the assessed reading difficulty of a paper.
type Difficulty string

// Difficulty levels, ordered from easiest to hardest.
const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// Rank returns the ordinal position of the difficulty for sorting.
// Unknown values rank as intermediate so malformed analysis output
// does not push a paper to either end of the order.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 0
	case DifficultyIntermediate:
		return 1
	case DifficultyAdvanced:
		return 2
	case DifficultyExpert:
		return 3
	default:
		return 1
	}
}

// ParseDifficulty normalizes a free-form difficulty string to a known level.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beginner", "basic", "easy":
		return DifficultyBeginner
	case "intermediate", "medium":
		return DifficultyIntermediate
	case "advanced", "hard":
		return DifficultyAdvanced
	case "expert":
		return DifficultyExpert
	default:
		return DifficultyIntermediate
	}
}

// PrereqLevel is the depth of background knowledge a prerequisite demands.
type PrereqLevel string

// Prerequisite levels as reported by concept extraction.
const (
	PrereqBasic        PrereqLevel = "basic"
	PrereqIntermediate PrereqLevel = "intermediate"
	PrereqAdvanced     PrereqLevel = "advanced"
)

// Prerequisite is a named concept a reader should know before a paper,
// tagged with the level of familiarity required.
type Prerequisite struct {
	Name  string      `json:"name"`
	Level PrereqLevel `json:"level"`
}

// PaperStatus is the coarse per-paper pipeline status maintained by the
// orchestrator. It summarizes the paper's stage states.
type PaperStatus string

// Per-paper statuses.
const (
	PaperPending   PaperStatus = "pending"
	PaperRunning   PaperStatus = "running"
	PaperSucceeded PaperStatus = "succeeded"
	PaperFailed    PaperStatus = "failed"
	PaperBlocked   PaperStatus = "blocked"
	PaperDeferred  PaperStatus = "deferred"
)

// Terminal reports whether the status can no longer change during a run.
func (s PaperStatus) Terminal() bool {
	switch s {
	case PaperSucceeded, PaperFailed, PaperBlocked, PaperDeferred:
		return true
	default:
		return false
	}
}

// PaperRecord is a single ingested paper. It is created once by ingestion
// and never modified afterwards, except for Status which the orchestrator
// updates as the paper moves through the pipeline.
type PaperRecord struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	SourcePath  string      `json:"source_path,omitempty"`
	IngestIndex int         `json:"ingest_index"`
	Status      PaperStatus `json:"status"`
}

// Paper is the enriched view of a paper after analysis and extraction
// succeed. It carries everything the graph builder and scheduler consume.
type Paper struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Difficulty       Difficulty     `json:"difficulty"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	CoreConcepts     []ConceptClaim `json:"core_concepts"`
	Prerequisites    []Prerequisite `json:"prerequisites"`
	Relationships    []ConceptLink  `json:"concept_relationships,omitempty"`
	IngestIndex      int            `json:"ingest_index"`
}

// ConceptClaim is a concept a paper teaches, as reported by extraction.
type ConceptClaim struct {
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Importance float64 `json:"importance"` // 0.0 to 1.0
}
