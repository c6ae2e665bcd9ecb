package lexical

import (
	"context"
	"testing"
)

func TestIndex_SearchRanksOverlapHigher(t *testing.T) {
	ix := New()
	ctx := context.Background()

	mustIndex(t, ix, "c1", "copper-ore", "Copper ore can be smelted in a crucible to produce copper ingots.")
	mustIndex(t, ix, "c2", "copper-ore", "Surface copper deposits appear near rocky terrain.")
	mustIndex(t, ix, "c3", "crafting-hoe", "A hoe is crafted from a stick and a stone blade.")

	hits, err := ix.Search(ctx, "how to smelt copper", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits for matching query")
	}
	if hits[0].ChunkID != "c1" {
		t.Errorf("expected c1 ranked first, got %s", hits[0].ChunkID)
	}
	for _, h := range hits {
		if h.ChunkID == "c3" {
			t.Error("unrelated chunk should not match")
		}
	}
}

func TestIndex_EmptyQuery(t *testing.T) {
	ix := New()
	mustIndex(t, ix, "c1", "d1", "some content")

	hits, err := ix.Search(context.Background(), "  !!! ", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for empty query, got %d", len(hits))
	}
}

func TestIndex_Remove(t *testing.T) {
	ix := New()
	ctx := context.Background()

	mustIndex(t, ix, "c1", "d1", "copper smelting guide")
	if err := ix.Remove(ctx, "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := ix.Search(ctx, "copper", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after removal, got %d", len(hits))
	}
	if ix.Len() != 0 {
		t.Errorf("expected empty index, got %d postings", ix.Len())
	}
}

func TestIndex_ReindexReplacesPostings(t *testing.T) {
	ix := New()
	ctx := context.Background()

	mustIndex(t, ix, "c1", "d1", "copper smelting")
	mustIndex(t, ix, "c1", "d1", "flax weaving")

	hits, err := ix.Search(ctx, "copper", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Error("stale tokens should be gone after reindex")
	}

	hits, err = ix.Search(ctx, "flax", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for new tokens, got %d", len(hits))
	}
}

func TestIndex_Limit(t *testing.T) {
	ix := New()
	mustIndex(t, ix, "c1", "d1", "copper one")
	mustIndex(t, ix, "c2", "d1", "copper two")
	mustIndex(t, ix, "c3", "d1", "copper three")

	hits, err := ix.Search(context.Background(), "copper", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Smelt Copper-Ore, twice!")
	want := []string{"smelt", "copper", "ore", "twice"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func mustIndex(t *testing.T, ix *Index, chunkID, documentID, content string) {
	t.Helper()
	if err := ix.Index(context.Background(), chunkID, documentID, content); err != nil {
		t.Fatalf("index %s: %v", chunkID, err)
	}
}
