package llm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := map[string]string{
		"gemini-flash":     "gemini-2.0-flash",
		"gemini-pro":       "gemini-2.0-pro",
		"gemini-2.0-flash": "gemini-2.0-flash",
	}
	for in, want := range tests {
		if got := resolveModel(in, geminiModels); got != want {
			t.Errorf("resolveModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comprehension":          map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"restated_in_own_words":  map[string]any{"type": "boolean"},
			"engagement_level":       map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
			"misconception_detected": map[string]any{"type": []any{"string", "null"}},
			"tags":                   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []any{"comprehension", "engagement_level"},
		"additionalProperties": false,
	})

	if schema.Type != genai.TypeObject {
		t.Fatalf("Type = %s, want OBJECT", schema.Type)
	}
	if got := schema.Properties["comprehension"]; got.Type != genai.TypeNumber || *got.Maximum != 1.0 {
		t.Errorf("comprehension = %+v", got)
	}
	if diff := cmp.Diff([]string{"high", "medium", "low"}, schema.Properties["engagement_level"].Enum); diff != "" {
		t.Errorf("enum mismatch (-want +got):\n%s", diff)
	}
	if m := schema.Properties["misconception_detected"]; m.Type != genai.TypeString || m.Nullable == nil || !*m.Nullable {
		t.Errorf("misconception_detected = %+v, want nullable STRING", m)
	}
	if schema.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("tags items = %s, want STRING", schema.Properties["tags"].Items.Type)
	}
	if diff := cmp.Diff([]string{"comprehension", "engagement_level"}, schema.Required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}
}
