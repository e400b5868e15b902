package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestJSONWellFormed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			"plain object",
			`{"title": "Quiz", "points": 10}`,
			map[string]any{"title": "Quiz", "points": float64(10)},
		},
		{
			"fenced with language tag",
			"```json\n{\"title\": \"Quiz\"}\n```",
			map[string]any{"title": "Quiz"},
		},
		{
			"fenced without language tag",
			"```\n{\"ok\": true}\n```",
			map[string]any{"ok": true},
		},
		{
			"stray json token",
			`json {"a": 1}`,
			map[string]any{"a": float64(1)},
		},
		{
			"prose around the object",
			`Here is your quiz:\n{"q": "What is 2+2?"}\nLet me know if you need more.`,
			map[string]any{"q": "What is 2+2?"},
		},
		{
			"nested structures",
			`{"a": {"b": [1, 2, {"c": null}]}}`,
			map[string]any{"a": map[string]any{"b": []any{float64(1), float64(2), map[string]any{"c": nil}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON(tt.raw, "")
			if err != nil {
				t.Fatalf("JSON() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("JSON() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJSONArrayWrapping(t *testing.T) {
	got, err := JSON(`[{"q": 1}, {"q": 2}]`, "")
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if _, ok := got[DefaultWrapKey]; !ok {
		t.Errorf("JSON(array) keys = %v, want wrapper key %q", got, DefaultWrapKey)
	}

	got, err = JSON(`[1, 2, 3]`, "questions")
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	arr, ok := got["questions"].([]any)
	if !ok || len(arr) != 3 {
		t.Errorf("JSON(array, questions) = %#v, want 3 items under \"questions\"", got)
	}
}

func TestJSONRepair(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			"truncated object and array",
			`{"a": 1, "b": [1, 2`,
			map[string]any{"a": float64(1), "b": []any{float64(1), float64(2)}},
		},
		{
			"unterminated string",
			`{"a": "cut off mid sent`,
			map[string]any{"a": "cut off mid sent"},
		},
		{
			"trailing comma after truncation",
			`{"a": 1,`,
			map[string]any{"a": float64(1)},
		},
		{
			"single quoted keys and values",
			`{'title': 'Quiz'}`,
			map[string]any{"title": "Quiz"},
		},
		{
			"missing comma between objects",
			`[{"a": 1} {"b": 2}]`,
			map[string]any{DefaultWrapKey: []any{map[string]any{"a": float64(1)}, map[string]any{"b": float64(2)}}},
		},
		{
			"missing comma between arrays",
			`{"rows": [[1] [2]]}`,
			map[string]any{"rows": []any{[]any{float64(1)}, []any{float64(2)}}},
		},
		{
			"escaped quote before truncation",
			`{"a": "he said \"hi`,
			map[string]any{"a": `he said "hi`},
		},
		{
			"fenced and truncated",
			"```json\n{\"items\": [\"a\", \"b\"",
			map[string]any{"items": []any{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON(tt.raw, "")
			if err != nil {
				t.Fatalf("JSON() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("JSON() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJSONUnrecoverable(t *testing.T) {
	raw := "I'm sorry, I can't produce that. " + strings.Repeat("More prose. ", 100)

	_, err := JSON(raw, "")
	if err == nil {
		t.Fatal("JSON(prose) error = nil, want UnrecoverableOutputError")
	}
	var uoe *UnrecoverableOutputError
	if !errors.As(err, &uoe) {
		t.Fatalf("JSON(prose) error = %T, want *UnrecoverableOutputError", err)
	}
	if len(uoe.Snippet) > 500 {
		t.Errorf("Snippet length = %d, want <= 500", len(uoe.Snippet))
	}
	if !strings.HasPrefix(raw, uoe.Snippet) {
		t.Errorf("Snippet is not a prefix of the original text")
	}
}

func TestJSONDeterministic(t *testing.T) {
	raw := `{"a": [1, {"b": "x`
	first, err1 := JSON(raw, "")
	second, err2 := JSON(raw, "")
	if (err1 == nil) != (err2 == nil) || !reflect.DeepEqual(first, second) {
		t.Errorf("JSON() is not deterministic: %#v/%v vs %#v/%v", first, err1, second, err2)
	}
}
