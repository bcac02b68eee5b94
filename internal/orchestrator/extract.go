package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of free-form LLM output. Direct
// parse first, then a markdown fence, then the widest brace-delimited
// span. Callers apply their own fallback when all three fail.
func extractJSON(content string, out any) error {
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}

	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), out); err == nil {
			return nil
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parsable JSON object in response")
}
