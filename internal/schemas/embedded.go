package schemas

import (
	"embed"
	"fmt"
)

//go:embed stage/*.json
var stageSchemas embed.FS

// stageFiles maps pipeline stage names to their embedded schema files.
// Graph and schedule outputs are produced locally and validated by type,
// so only the model-facing stages appear here.
var stageFiles = map[string]string{
	"analysis":        "stage/analysis.json",
	"extraction":      "stage/extraction.json",
	"task_generation": "stage/tasks.json",
	"guidance":        "stage/guidance.json",
}

// ValidateStageOutput checks raw model output for a stage against the
// stage's embedded schema. Unknown stages are an error: a typo here
// would otherwise silently skip validation.
func ValidateStageOutput(stage, jsonContent string) error {
	name, ok := stageFiles[stage]
	if !ok {
		return fmt.Errorf("no schema registered for stage %q", stage)
	}
	data, err := stageSchemas.ReadFile(name)
	if err != nil {
		return &SchemaLoadError{Path: name, Message: "embedded schema missing", Cause: err}
	}
	return ValidateJSONString(string(data), jsonContent)
}
