package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJSON_ValidJSON(t *testing.T) {
	schemaPath := filepath.Join("testdata", "valid_schema.json")
	jsonPath := filepath.Join("testdata", "valid_json.json")

	err := ValidateJSON(schemaPath, jsonPath)
	assert.NoError(t, err)
}

func TestValidateJSON_InvalidJSON_MissingField(t *testing.T) {
	schemaPath := filepath.Join("testdata", "valid_schema.json")
	jsonPath := filepath.Join("testdata", "invalid_json.json")

	err := ValidateJSON(schemaPath, jsonPath)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidateJSON_InvalidJSON_WrongType(t *testing.T) {
	schemaPath := filepath.Join("testdata", "valid_schema.json")
	jsonPath := filepath.Join("testdata", "type_mismatch.json")

	err := ValidateJSON(schemaPath, jsonPath)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidateJSON_NonExistentSchema(t *testing.T) {
	schemaPath := "testdata/nonexistent_schema.json"
	jsonPath := filepath.Join("testdata", "valid_json.json")

	err := ValidateJSON(schemaPath, jsonPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateJSON_NonExistentJSON(t *testing.T) {
	schemaPath := filepath.Join("testdata", "valid_schema.json")
	jsonPath := "testdata/nonexistent_json.json"

	err := ValidateJSON(schemaPath, jsonPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateJSON_MalformedJSON(t *testing.T) {
	// Create a temporary malformed JSON file
	tmpDir := t.TempDir()
	malformedJSON := filepath.Join(tmpDir, "malformed.json")
	err := os.WriteFile(malformedJSON, []byte("{ invalid json }"), 0644)
	require.NoError(t, err)

	schemaPath := filepath.Join("testdata", "valid_schema.json")

	valErr := ValidateJSON(schemaPath, malformedJSON)
	require.Error(t, valErr)
	// The error might be from gojsonschema parsing, not our code
}

func TestResolveSchemaPath_FindsRepoSchemas(t *testing.T) {
	// Artifact schemas live at the repo root; tests run two levels down.
	resolved := ResolveSchemaPath(filepath.Join("schemas", "graph.schema.json"))
	require.NotEmpty(t, resolved)
	_, err := os.Stat(resolved)
	assert.NoError(t, err)
}

func TestResolveSchemaPath_Missing(t *testing.T) {
	resolved := ResolveSchemaPath(filepath.Join("schemas", "no_such_schema.json"))
	assert.Empty(t, resolved)
}

func TestValidateStageOutput(t *testing.T) {
	tests := []struct {
		name      string
		stage     string
		content   string
		wantError bool
	}{
		{
			name:      "valid analysis",
			stage:     "analysis",
			content:   `{"title":"Attention Is All You Need","research_problem":"sequence transduction","main_method":"self-attention","difficulty":"advanced","estimated_minutes":90,"core_concepts":["attention"]}`,
			wantError: false,
		},
		{
			name:      "analysis missing difficulty",
			stage:     "analysis",
			content:   `{"title":"T","research_problem":"p","main_method":"m","estimated_minutes":60,"core_concepts":[]}`,
			wantError: true,
		},
		{
			name:      "valid extraction",
			stage:     "extraction",
			content:   `{"core_concepts":[{"name":"attention","importance":0.9}],"prerequisites":[{"name":"linear algebra","level":"basic"}]}`,
			wantError: false,
		},
		{
			name:      "extraction bad prerequisite level",
			stage:     "extraction",
			content:   `{"core_concepts":[],"prerequisites":[{"name":"x","level":"grandmaster"}]}`,
			wantError: true,
		},
		{
			name:      "valid task sheet",
			stage:     "task_generation",
			content:   `{"questions":[{"prompt":"What problem does the paper solve?","kind":"comprehension"}]}`,
			wantError: false,
		},
		{
			name:      "task sheet with no questions",
			stage:     "task_generation",
			content:   `{"questions":[]}`,
			wantError: true,
		},
		{
			name:      "valid guidance",
			stage:     "guidance",
			content:   `{"advice":"Revisit the attention mechanism section.","next_steps":["re-read section 3"]}`,
			wantError: false,
		},
		{
			name:      "guidance without advice",
			stage:     "guidance",
			content:   `{"study_tips":["take notes"]}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStageOutput(tt.stage, tt.content)
			if tt.wantError {
				require.Error(t, err)
				validationErr, ok := err.(*ValidationError)
				require.True(t, ok, "error should be ValidationError, got %T: %v", err, err)
				assert.Greater(t, len(validationErr.Errors), 0)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStageOutput_UnknownStage(t *testing.T) {
	err := ValidateStageOutput("rendering", `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema registered")
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"name": "test"}`

	err := ValidateJSONString(schemaContent, jsonContent)
	assert.NoError(t, err)
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"age": 30}`

	err := ValidateJSONString(schemaContent, jsonContent)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "title", Message: "is required"},
			{Field: "estimated_minutes", Message: "must be a number"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "title")
	assert.Contains(t, errorMsg, "estimated_minutes")
}

func TestValidateJSON_NestedFieldValidation(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["paper"],
		"properties": {
			"paper": {
				"type": "object",
				"required": ["title"],
				"properties": {
					"title": {"type": "string"}
				}
			}
		}
	}`

	jsonContent := `{"paper": {}}`

	err := ValidateJSONString(schemaContent, jsonContent)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
	// Check that the field path includes nested field
	found := false
	for _, fieldErr := range validationErr.Errors {
		if fieldErr.Field != "" {
			found = true
			break
		}
	}
	assert.True(t, found, "should include field path in error")
}
