package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const classificationSchemaJSON = `{
  "type": "object",
  "properties": {
    "block_type": {
      "type": "string",
      "enum": ["heading", "paragraph", "list_item", "caption", "glossary_term", "footnote", "sidebar", "header", "footer"]
    }
  },
  "required": ["block_type"],
  "additionalProperties": true
}`

var classificationSchema = jsonschema.MustCompileString("classification.json", classificationSchemaJSON)

// parseClassification extracts a validated block type from model output.
// Models wrap JSON in markdown fences often enough that stripping them is
// part of the parse, not error recovery.
func parseClassification(content string) (string, error) {
	content = stripCodeFences(strings.TrimSpace(content))
	if content == "" {
		return "", fmt.Errorf("empty classification answer")
	}

	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", fmt.Errorf("parse classification answer: %w", err)
	}
	if err := classificationSchema.Validate(parsed); err != nil {
		return "", fmt.Errorf("validate classification answer: %w", err)
	}

	obj := parsed.(map[string]any)
	return obj["block_type"].(string), nil
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
