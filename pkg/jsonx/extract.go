// Package jsonx extracts JSON objects from free-form LLM output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the substring from the first '{' to the last '}' in text.
// LLMs routinely wrap JSON in prose or code fences; this recovers the object
// without attempting a full repair. Returns the input unchanged when no
// object-looking span is found.
func Extract(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return text
	}
	return text[start : end+1]
}

// UnmarshalObject extracts the first JSON object from text and unmarshals it
// into target. The fallback behavior is left to the caller.
func UnmarshalObject(text string, target any) error {
	content := Extract(text)
	if err := json.Unmarshal([]byte(content), target); err != nil {
		return fmt.Errorf("jsonx: unmarshal extracted object: %w", err)
	}
	return nil
}
