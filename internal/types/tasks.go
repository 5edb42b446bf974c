// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// TaskSheet is the per-paper study material produced by the task
// generation stage.
type TaskSheet struct {
	PaperID     string          `json:"paper_id"`
	Questions   []Question      `json:"questions"`
	CodingTasks []CodingTask    `json:"coding_tasks,omitempty"`
	Activities  []StudyActivity `json:"study_activities,omitempty"`
}

// Question is a comprehension or analysis question about a paper.
type Question struct {
	Prompt   string   `json:"prompt"`
	Kind     string   `json:"kind,omitempty"` // comprehension, analysis, synthesis
	Concepts []string `json:"concepts,omitempty"`
}

// CodingTask is a hands-on implementation exercise derived from a paper.
type CodingTask struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Difficulty       string `json:"difficulty,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// StudyActivity is a non-coding exercise such as summarizing a section
// or comparing two methods.
type StudyActivity struct {
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// GraphContext is the slice of the dependency graph handed to task
// generation for one paper: where the paper sits in the reading order
// and what surrounds it.
type GraphContext struct {
	PaperID       string   `json:"paper_id"`
	OrderPosition int      `json:"order_position"` // 1-based position in the reading order
	OrderTotal    int      `json:"order_total"`
	Teaches       []string `json:"teaches,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"` // titles of prerequisite papers
	Dependents    []string `json:"dependents,omitempty"`    // titles of dependent papers
}

// Submission is a learner's answer or work product submitted for guidance.
type Submission struct {
	PaperID string `json:"paper_id,omitempty"`
	TaskRef string `json:"task_ref,omitempty"`
	Content string `json:"content"`
}

// Feedback is the structured output of the guidance stage.
type Feedback struct {
	Advice     string   `json:"advice"`
	StudyTips  []string `json:"study_tips,omitempty"`
	NextSteps  []string `json:"next_steps,omitempty"`
	Resources  []string `json:"resources,omitempty"`
	Motivation string   `json:"motivation,omitempty"`
}
