package repos

import (
	"reflect"
	"testing"

	"gorm.io/datatypes"
)

func TestNormalizeDocument_EmptyAndMalformed(t *testing.T) {
	if got := NormalizeDocument(nil); len(got) != 0 {
		t.Fatalf("nil document: got %v want empty object", got)
	}
	if got := NormalizeDocument(datatypes.JSON(`[1,2,3]`)); len(got) != 0 {
		t.Fatalf("array document: got %v want empty object", got)
	}
	if got := NormalizeDocument(datatypes.JSON(`"oops"`)); len(got) != 0 {
		t.Fatalf("string document: got %v want empty object", got)
	}
	if got := NormalizeDocument(datatypes.JSON(`not json`)); len(got) != 0 {
		t.Fatalf("garbage document: got %v want empty object", got)
	}
}

func TestNormalizeDocument_ObjectPassesThrough(t *testing.T) {
	got := NormalizeDocument(datatypes.JSON(`{"intervals":[],"overall":{"execution_score":90}}`))
	if _, ok := got["intervals"]; !ok {
		t.Fatalf("expected intervals key to survive, got %v", got)
	}
	if _, ok := got["overall"]; !ok {
		t.Fatalf("expected overall key to survive, got %v", got)
	}
}

func TestShallowMergeDocument_DisjointKeysNeverLost(t *testing.T) {
	existing := map[string]any{"intervals": []any{"a"}, "analysis": map[string]any{"series": 1}}
	partial := map[string]any{"overall": map[string]any{"execution_score": 88.0}}

	merged := ShallowMergeDocument(existing, partial)
	if len(merged) != 3 {
		t.Fatalf("expected 3 keys after merge, got %v", merged)
	}
	if !reflect.DeepEqual(merged["intervals"], []any{"a"}) {
		t.Fatalf("untouched key changed: %v", merged["intervals"])
	}
	if !reflect.DeepEqual(merged["overall"], partial["overall"]) {
		t.Fatalf("merged key missing: %v", merged["overall"])
	}
}

func TestShallowMergeDocument_PartialOverwritesWholeKey(t *testing.T) {
	existing := map[string]any{"overall": map[string]any{"execution_score": 50.0, "total_penalty": 50.0}}
	partial := map[string]any{"overall": map[string]any{"execution_score": 88.0}}

	merged := ShallowMergeDocument(existing, partial)
	overall, ok := merged["overall"].(map[string]any)
	if !ok {
		t.Fatalf("overall not an object: %v", merged["overall"])
	}
	// Shallow semantics: the stage rewrites its whole key, no deep merging.
	if _, stale := overall["total_penalty"]; stale {
		t.Fatalf("expected replaced key, found stale nested field: %v", overall)
	}
}

func TestShallowMergeDocument_NilValueDeletesKey(t *testing.T) {
	existing := map[string]any{"intervals": []any{"a"}, "overall": map[string]any{}}
	partial := map[string]any{"intervals": nil, "overall": nil}

	merged := ShallowMergeDocument(existing, partial)
	if _, ok := merged["intervals"]; ok {
		t.Fatalf("expected intervals deleted, got %v", merged)
	}
	if _, ok := merged["overall"]; ok {
		t.Fatalf("expected overall deleted, got %v", merged)
	}
}
