package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSON strips markdown fences and surrounding prose from a model
// completion, returning the first JSON object or array it contains.
func CleanJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	if strings.HasSuffix(response, "```") {
		response = strings.TrimSuffix(response, "```")
	}
	response = strings.TrimSpace(response)

	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		if end := strings.LastIndex(response, "}"); end > objStart {
			return response[objStart : end+1]
		}
	case arrStart >= 0:
		if end := strings.LastIndex(response, "]"); end > arrStart {
			return response[arrStart : end+1]
		}
	}

	return response
}

// DecodeJSON cleans a completion and unmarshals it into v. A completion
// with no parseable JSON yields a typed malformed failure.
func DecodeJSON(response string, v interface{}) error {
	cleaned := CleanJSON(response)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &Error{Kind: FailureMalformed, Err: fmt.Errorf("JSON parse error: %w", err)}
	}
	return nil
}

// ClampConfidence bounds a model-reported confidence to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
