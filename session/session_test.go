package session

import (
	"context"
	"testing"
)

func TestInMemoryStoreAppendAndHistory(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, "a", Turn{Question: "q1", Answer: "a1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "a", Turn{Question: "q2", Answer: "a2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "b", Turn{Question: "other", Answer: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := s.History(ctx, "a")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].Question != "q1" || history[1].Question != "q2" {
		t.Fatalf("unexpected history %v", history)
	}
	if history[0].CreatedAt.IsZero() {
		t.Fatal("Append should stamp CreatedAt")
	}

	// Sessions are isolated.
	other, _ := s.History(ctx, "b")
	if len(other) != 1 {
		t.Fatalf("expected 1 turn for session b, got %d", len(other))
	}
}

func TestInMemoryStoreHistoryIsACopy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	s.Append(ctx, "a", Turn{Question: "q", Answer: "a"})

	history, _ := s.History(ctx, "a")
	history[0].Answer = "mutated"

	fresh, _ := s.History(ctx, "a")
	if fresh[0].Answer != "a" {
		t.Fatal("History must return a copy, not the backing slice")
	}
}

func TestInMemoryStoreClear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	s.Append(ctx, "a", Turn{Question: "q", Answer: "a"})

	if err := s.Clear(ctx, "a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	history, _ := s.History(ctx, "a")
	if len(history) != 0 {
		t.Fatalf("expected empty history after Clear, got %v", history)
	}
}
