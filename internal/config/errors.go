// Package config provides configuration loading and validation for the CLI.
package config

import "fmt"

// InvalidConfigurationError reports a configuration value that would make
// a pipeline run meaningless. It is raised before any stage executes,
// never mid-run. The graph builder reuses it for an empty paper set.
type InvalidConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *InvalidConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid configuration: %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Cause
}
