package llm

import (
	"fmt"
	"strings"
)

// ExtractJSONObject isolates the single JSON object expected inside a
// free-text model reply. The model is instructed to return only JSON, but
// replies routinely arrive wrapped in markdown code fences or padded with
// commentary, so this is tolerant of both: fences are stripped, then the
// substring from the first '{' to the last '}' is taken.
func ExtractJSONObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in model response")
	}
	return s[start : end+1], nil
}
