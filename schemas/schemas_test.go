package schemas

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/binliang/learnpilot/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var artifactSchemas = []string{
	"graph.schema.json",
	"schedule.schema.json",
	"report.schema.json",
}

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	for _, schemaFile := range artifactSchemas {
		t.Run(schemaFile, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(".", schemaFile))
			require.NoError(t, err, "should be able to read schema file")

			var v interface{}
			err = json.Unmarshal(data, &v)
			assert.NoError(t, err, "schema file should be valid JSON: %s", schemaFile)
		})
	}
}

func TestSchemaFiles_ValidJSONSchema(t *testing.T) {
	for _, schemaFile := range artifactSchemas {
		t.Run(schemaFile, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(".", schemaFile))
			require.NoError(t, err)

			var schemaObj map[string]interface{}
			err = json.Unmarshal(data, &schemaObj)
			require.NoError(t, err)

			_, hasType := schemaObj["type"]
			_, hasSchema := schemaObj["$schema"]
			_, hasProps := schemaObj["properties"]

			assert.True(t, hasType && hasSchema && hasProps,
				"schema should declare type, $schema, and properties")
			assert.Contains(t, schemaObj, "required",
				"artifact schemas pin their required fields")
		})
	}
}

func TestGraphSchema_AcceptsValidArtifact(t *testing.T) {
	schemaData, err := os.ReadFile("graph.schema.json")
	require.NoError(t, err)

	doc := `{
		"papers": [
			{"id": "paper_1", "title": "Attention Is All You Need", "difficulty": "intermediate", "estimated_minutes": 60, "ingest_index": 0}
		],
		"concepts": [
			{"id": "concept_attention", "name": "attention mechanism", "importance": 0.9, "frequency": 1}
		],
		"edges": [
			{"from_id": "paper_1", "to_id": "concept_attention", "kind": "teaches", "confidence": 0.9}
		],
		"order": ["paper_1"]
	}`

	assert.NoError(t, schemas.ValidateJSONString(string(schemaData), doc))
}

func TestGraphSchema_RejectsUnknownDifficulty(t *testing.T) {
	schemaData, err := os.ReadFile("graph.schema.json")
	require.NoError(t, err)

	doc := `{
		"papers": [
			{"id": "paper_1", "title": "x", "difficulty": "impossible", "estimated_minutes": 60, "ingest_index": 0}
		],
		"concepts": [],
		"edges": [],
		"order": []
	}`

	err = schemas.ValidateJSONString(string(schemaData), doc)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	assert.True(t, errors.As(err, &validationErr), "expected ValidationError, got %T", err)
}

func TestScheduleSchema_AcceptsValidArtifact(t *testing.T) {
	schemaData, err := os.ReadFile("schedule.schema.json")
	require.NoError(t, err)

	doc := `{
		"days": [
			{"index": 1, "entries": [
				{"day_index": 1, "item_ref": "paper_1", "title": "Attention Is All You Need", "allocated_minutes": 60, "kind": "new"},
				{"day_index": 1, "item_ref": "paper_2", "allocated_minutes": 45, "kind": "continued"}
			]},
			{"index": 2, "entries": [
				{"day_index": 2, "item_ref": "paper_1", "allocated_minutes": 15, "kind": "review"}
			]}
		],
		"daily_budget_minutes": 120,
		"planned_days": 7,
		"overflow_days": 0
	}`

	assert.NoError(t, schemas.ValidateJSONString(string(schemaData), doc))
}

func TestScheduleSchema_RejectsZeroMinuteEntry(t *testing.T) {
	schemaData, err := os.ReadFile("schedule.schema.json")
	require.NoError(t, err)

	doc := `{
		"days": [
			{"index": 1, "entries": [
				{"day_index": 1, "item_ref": "paper_1", "allocated_minutes": 0, "kind": "new"}
			]}
		],
		"daily_budget_minutes": 120,
		"planned_days": 7
	}`

	err = schemas.ValidateJSONString(string(schemaData), doc)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	assert.True(t, errors.As(err, &validationErr), "expected ValidationError, got %T", err)
}

func TestReportSchema_AcceptsValidArtifact(t *testing.T) {
	schemaData, err := os.ReadFile("report.schema.json")
	require.NoError(t, err)

	doc := `{
		"run_id": "4f2c2b9a-9a7e-4a58-a2e6-0d2f6f9c8b11",
		"started_at": "2026-03-02T09:00:00Z",
		"finished_at": "2026-03-02T09:05:00Z",
		"settings": {
			"daily_time_budget_minutes": 120,
			"total_days": 7,
			"review_interval_days": 3,
			"max_retry_attempts": 2,
			"min_success_ratio": 0.5,
			"worker_concurrency": 4,
			"max_cost_budget_usd": 0,
			"user_level": "intermediate",
			"language": "English"
		},
		"papers": [
			{
				"paper_id": "paper_1",
				"title": "Attention Is All You Need",
				"status": "succeeded",
				"stages": [
					{"paper_id": "paper_1", "stage": "analysis", "status": "succeeded", "attempts": 1},
					{"paper_id": "paper_1", "stage": "extraction", "status": "cached", "attempts": 0},
					{"paper_id": "paper_1", "stage": "tasks", "status": "succeeded", "attempts": 2}
				]
			}
		],
		"usage": {
			"calls": 2,
			"cache_hits": 1,
			"input_tokens": 3000,
			"output_tokens": 400,
			"total_cost_usd": 0.0019
		},
		"warnings": [
			{"code": "cycle_broken", "message": "removed edge paper_2 -> paper_1"}
		]
	}`

	assert.NoError(t, schemas.ValidateJSONString(string(schemaData), doc))
}

func TestReportSchema_RejectsNegativeUsage(t *testing.T) {
	schemaData, err := os.ReadFile("report.schema.json")
	require.NoError(t, err)

	doc := `{
		"run_id": "4f2c2b9a-9a7e-4a58-a2e6-0d2f6f9c8b11",
		"started_at": "2026-03-02T09:00:00Z",
		"finished_at": "2026-03-02T09:05:00Z",
		"settings": {
			"daily_time_budget_minutes": 120,
			"total_days": 7,
			"review_interval_days": 3,
			"max_retry_attempts": 2,
			"min_success_ratio": 0.5,
			"worker_concurrency": 4,
			"max_cost_budget_usd": 0
		},
		"papers": [],
		"usage": {
			"calls": -1,
			"cache_hits": 0,
			"input_tokens": 0,
			"output_tokens": 0,
			"total_cost_usd": 0
		}
	}`

	err = schemas.ValidateJSONString(string(schemaData), doc)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	require.True(t, errors.As(err, &validationErr), "expected ValidationError, got %T", err)
	require.NotEmpty(t, validationErr.Errors)
	assert.Contains(t, validationErr.Errors[0].Field, "calls")
}

func TestReportSchema_ValidateFromFiles(t *testing.T) {
	// The CLI validates artifacts by path right after writing them.
	doc := map[string]interface{}{
		"run_id":      "4f2c2b9a-9a7e-4a58-a2e6-0d2f6f9c8b11",
		"started_at":  "2026-03-02T09:00:00Z",
		"finished_at": "2026-03-02T09:05:00Z",
		"settings": map[string]interface{}{
			"daily_time_budget_minutes": 120,
			"total_days":                7,
			"review_interval_days":      3,
			"max_retry_attempts":        2,
			"min_success_ratio":         0.5,
			"worker_concurrency":        4,
			"max_cost_budget_usd":       0,
		},
		"papers": []interface{}{},
		"usage": map[string]interface{}{
			"calls":          0,
			"cache_hits":     0,
			"input_tokens":   0,
			"output_tokens":  0,
			"total_cost_usd": 0,
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	docPath := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(docPath, data, 0644))

	assert.NoError(t, schemas.ValidateJSON("report.schema.json", docPath))
}
