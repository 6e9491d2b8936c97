package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/passplay/internal/catalog"
	"github.com/verte-zerg/passplay/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "nested", "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestLoadCatalogEmptyDatabase(t *testing.T) {
	st := openTestStore(t)
	cat, err := st.LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cat.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d problems", cat.Len())
	}
}

func TestImportAndLoadCatalog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	want := catalog.Default()
	if err := st.ImportCatalog(ctx, want); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := st.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	wantKeys := want.Keys()
	gotKeys := got.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("expected %d problems, got %d", len(wantKeys), len(gotKeys))
	}
	for i, key := range wantKeys {
		if gotKeys[i] != key {
			t.Fatalf("key %d: expected %s, got %s", i, key, gotKeys[i])
		}
		wp, _ := want.Problem(key)
		gp, _ := got.Problem(key)
		if gp.Title != wp.Title || gp.Description != wp.Description || len(gp.Passes) != len(wp.Passes) {
			t.Fatalf("problem %s differs after round trip", key)
		}
		for j := range wp.Passes {
			if gp.Passes[j] != wp.Passes[j] {
				t.Fatalf("problem %s pass %d differs after round trip", key, j)
			}
		}
	}
}

func TestImportReplacesPreviousCatalog(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.ImportCatalog(ctx, catalog.Default()); err != nil {
		t.Fatalf("import: %v", err)
	}
	small, err := catalog.New([]model.Problem{{
		Key:   "tiny",
		Title: "Tiny",
		Passes: []model.Pass{
			{Output: "a", Scores: model.Scores{Clarity: 10, Correctness: 20, Structure: 30}, Errors: 2},
			{Output: "b", Scores: model.Scores{Clarity: 40, Correctness: 50, Structure: 60}},
		},
	}})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	if err := st.ImportCatalog(ctx, small); err != nil {
		t.Fatalf("second import: %v", err)
	}
	summaries, err := st.ListProblems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Key != "tiny" || summaries[0].Passes != 2 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	got, err := st.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, ok := got.Problem("tiny")
	if !ok || p.Passes[1].Output != "b" || p.Passes[0].Errors != 2 {
		t.Fatalf("unexpected problem: %+v", p)
	}
}
