package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display: message, optional
// hint, and the code for bug reports.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ee, ok := err.(*EngineError)
	if !ok {
		ee = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ee.Message))
	if ee.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ee.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ee.Code))
	return sb.String()
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ee, ok := err.(*EngineError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": ee.Code,
		"message":    ee.Message,
		"category":   string(ee.Category),
		"severity":   string(ee.Severity),
		"retryable":  ee.Retryable,
	}
	if ee.Cause != nil {
		result["cause"] = ee.Cause.Error()
	}
	if ee.Suggestion != "" {
		result["suggestion"] = ee.Suggestion
	}
	for k, v := range ee.Details {
		result["detail_"+k] = v
	}
	return result
}
