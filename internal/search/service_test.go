package search

import (
	"context"
	"testing"
)

func TestSearchWithoutBackendsIsEmpty(t *testing.T) {
	svc := NewService(nil, nil)

	resp := svc.Search(Query{Text: "anything", Limit: 10})
	if resp.Total != 0 {
		t.Fatalf("total: got %d, want 0", resp.Total)
	}
	if resp.Results == nil {
		t.Fatal("results should be an empty slice, not nil")
	}
	if len(resp.Results) != 0 {
		t.Fatalf("results: got %d, want none", len(resp.Results))
	}
}

func TestReindexAllWithoutBackendsIsNoOp(t *testing.T) {
	svc := NewService(nil, nil)

	if err := svc.ReindexAll(context.Background()); err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
}
