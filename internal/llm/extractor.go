// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
// It provides a reusable way to define what information to extract from text.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "PaperAnalysis", "ConceptExtraction")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	// System description
	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	// Output schema
	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	// Instructions
	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	// Input text
	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// --- Predefined Schemas ---

// PaperAnalysisSchema returns the extraction schema for the paper
// analysis stage. Field names match types.AnalysisResult.
func PaperAnalysisSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "PaperAnalysis",
		Description: `You are an expert research mentor. Your task is to assess an academic paper for a learner preparing a study plan.
Judge the paper on its own text; do not assume knowledge the text does not provide.`,
		Fields: []SchemaField{
			{
				Name:        "title",
				Type:        "\"string\"",
				Description: "Paper title exactly as written",
				Required:    true,
			},
			{
				Name:        "authors",
				Type:        "[\"string\"]",
				Description: "Author names if stated in the text",
				Required:    false,
			},
			{
				Name:        "research_problem",
				Type:        "\"string\"",
				Description: "The problem the paper addresses, one or two sentences",
				Required:    true,
			},
			{
				Name:        "main_method",
				Type:        "\"string\"",
				Description: "The paper's core method or approach",
				Required:    true,
			},
			{
				Name:        "key_contributions",
				Type:        "[\"string\"]",
				Description: "Main contributions, one phrase each",
				Required:    true,
			},
			{
				Name:        "difficulty",
				Type:        "\"string\"",
				Description: "One of: beginner, intermediate, advanced, expert",
				Required:    true,
			},
			{
				Name:        "estimated_minutes",
				Type:        "number",
				Description: "Reading time in minutes for the stated learner level",
				Required:    true,
			},
			{
				Name:        "core_concepts",
				Type:        "[\"string\"]",
				Description: "3-8 concepts the paper teaches",
				Required:    true,
			},
		},
	}
}

// ConceptExtractionSchema returns the extraction schema for the concept
// extraction stage. Field names match types.ExtractionResult.
func ConceptExtractionSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "ConceptExtraction",
		Description: `You are an expert knowledge engineer. Your task is to map the concepts an academic paper teaches and the background it assumes.
Name concepts with short canonical noun phrases so the same concept is spelled the same way across papers.`,
		Fields: []SchemaField{
			{
				Name:        "core_concepts",
				Type:        "[{\"name\": \"string\", \"category\": \"string\", \"importance\": number}]",
				Description: "Concepts the paper teaches; importance is 0.0-1.0",
				Required:    true,
			},
			{
				Name:        "supporting_concepts",
				Type:        "[{\"name\": \"string\", \"category\": \"string\", \"importance\": number}]",
				Description: "Secondary concepts used but not central",
				Required:    false,
			},
			{
				Name:        "prerequisites",
				Type:        "[{\"name\": \"string\", \"level\": \"string\"}]",
				Description: "Background concepts the reader must already know; level is basic, intermediate, or advanced",
				Required:    true,
			},
			{
				Name:        "concept_relationships",
				Type:        "[{\"from\": \"string\", \"to\": \"string\", \"kind\": \"string\", \"confidence\": number}]",
				Description: "Directed links between concepts named above; confidence is 0.0-1.0",
				Required:    false,
			},
			{
				Name:        "knowledge_domains",
				Type:        "[\"string\"]",
				Description: "Fields the paper belongs to",
				Required:    false,
			},
			{
				Name:        "learning_minutes",
				Type:        "number",
				Description: "Minutes to learn the concepts, not merely read the paper",
				Required:    false,
			},
		},
	}
}
