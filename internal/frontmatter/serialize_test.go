package frontmatter

import (
	"strings"
	"testing"
)

func TestSerializeYAML_Deterministic(t *testing.T) {
	fields := map[string]any{
		"weight":      2,
		"title":       "Scene Gallery",
		"artifacts":   []string{"a.mvsj", "b.mvsj"},
		"draft":       false,
		"description": "gallery page",
	}

	first, err := SerializeYAML(fields, Style{Newline: "\n"})
	if err != nil {
		t.Fatalf("SerializeYAML() error: %v", err)
	}

	for range 5 {
		again, err := SerializeYAML(fields, Style{Newline: "\n"})
		if err != nil {
			t.Fatalf("SerializeYAML() error: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("SerializeYAML() output not stable:\n%s\nvs\n%s", first, again)
		}
	}

	// Keys appear in sorted order
	text := string(first)
	if strings.Index(text, "artifacts:") > strings.Index(text, "title:") {
		t.Errorf("keys not sorted:\n%s", text)
	}
}

func TestSerializeYAML_Empty(t *testing.T) {
	out, err := SerializeYAML(map[string]any{}, Style{})
	if err != nil {
		t.Fatalf("SerializeYAML() error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("SerializeYAML(empty) = %q, want empty", out)
	}
}

func TestSerializeYAML_ParseRoundTrip(t *testing.T) {
	fields := map[string]any{
		"title": "Round Trip",
		"nested": map[string]any{
			"weight": 7,
			"flag":   true,
		},
	}

	out, err := SerializeYAML(fields, Style{Newline: "\n"})
	if err != nil {
		t.Fatalf("SerializeYAML() error: %v", err)
	}

	parsed, err := ParseYAML(out)
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}
	if parsed["title"] != "Round Trip" {
		t.Errorf("title = %v", parsed["title"])
	}
	nested, ok := parsed["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %T, want map", parsed["nested"])
	}
	if nested["weight"] != 7 {
		t.Errorf("nested.weight = %v, want 7", nested["weight"])
	}
}
