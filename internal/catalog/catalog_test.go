package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/passplay/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	keys := c.Keys()
	expected := []string{"code-review", "essay", "math", "logic", "writing"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %d problems, got %d", len(expected), len(keys))
	}
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("expected %q at index %d, got %q", key, i, keys[i])
		}
		p, ok := c.Problem(key)
		if !ok {
			t.Fatalf("problem %q missing", key)
		}
		if len(p.Passes) != 4 {
			t.Fatalf("expected 4 passes for %q, got %d", key, len(p.Passes))
		}
	}
}

func TestDefaultCatalogCodeReviewScores(t *testing.T) {
	p, ok := Default().Problem("code-review")
	if !ok {
		t.Fatalf("code-review missing")
	}
	got := p.Passes[1]
	want := model.Scores{Clarity: 75, Correctness: 90, Structure: 80}
	if got.Scores != want || got.Errors != 2 {
		t.Fatalf("unexpected pass 2 scores: %+v errors=%d", got.Scores, got.Errors)
	}
	if !strings.HasPrefix(got.Output, "def calculate_average(numbers: list) -> float:") {
		t.Fatalf("unexpected output: %q", got.Output)
	}
	if !strings.Contains(got.Output, "\n    \"\"\"Calculate") {
		t.Fatalf("expected indentation to survive decoding: %q", got.Output)
	}
}

func TestParseRejectsInvalidProblems(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"no passes": "problems:\n  - key: a\n    passes: []\n",
		"score":     "problems:\n  - key: a\n    passes:\n      - clarity: 101\n",
		"errors":    "problems:\n  - key: a\n    passes:\n      - errors: -1\n",
		"duplicate": "problems:\n  - key: a\n    passes:\n      - clarity: 1\n  - key: a\n    passes:\n      - clarity: 1\n",
		"no key":    "problems:\n  - title: x\n    passes:\n      - clarity: 1\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOrEmptyFallsBack(t *testing.T) {
	c := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if c.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d problems", c.Len())
	}
	if _, ok := c.Problem("essay"); ok {
		t.Fatalf("expected lookup to fail on empty catalog")
	}
	if LoadOrEmpty("", nil).Len() == 0 {
		t.Fatalf("expected built-in catalog for empty path")
	}
}

func TestMarshalRoundTripThroughFile(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	orig, _ := Default().Problem("math")
	got, ok := loaded.Problem("math")
	if !ok {
		t.Fatalf("math missing after reload")
	}
	if got.Passes[3].Output != orig.Passes[3].Output {
		t.Fatalf("output changed after reload")
	}
}

func TestNextKeyWraps(t *testing.T) {
	c := Default()
	if got := c.NextKey("writing"); got != "code-review" {
		t.Fatalf("expected wrap to code-review, got %q", got)
	}
	if got := c.NextKey("unknown"); got != "code-review" {
		t.Fatalf("expected first key for unknown, got %q", got)
	}
	if got := Empty().NextKey("a"); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}
