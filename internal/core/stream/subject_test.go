package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubject_ReplaysLatestToNewObserver(t *testing.T) {
	s := NewSubject(1)
	s.Publish(2)

	var got []int
	cancel := s.Observe(func(v int) { got = append(got, v) })
	defer cancel()

	s.Publish(3)

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected [2 3], got %v", got)
	}
}

func TestSubject_CancelStopsDelivery(t *testing.T) {
	s := NewSubject("a")

	var got []string
	cancel := s.Observe(func(v string) { got = append(got, v) })
	cancel()
	cancel()
	s.Publish("b")

	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected only the replayed value, got %v", got)
	}
}

func TestSubject_LatestReturnsImmediatelyWhenSettled(t *testing.T) {
	s := NewSubject(7)

	v, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
}

func TestSubject_LatestWaitsForPublishWhilePending(t *testing.T) {
	s := NewSubject(0)
	s.MarkPending()

	result := make(chan int, 1)
	go func() {
		v, err := s.Latest(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		result <- v
	}()

	select {
	case v := <-result:
		t.Fatalf("Latest returned %d before publication", v)
	case <-time.After(20 * time.Millisecond):
	}

	s.Publish(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Latest did not return after Publish")
	}
	if s.Pending() {
		t.Fatalf("expected pending to be cleared")
	}
}

func TestSubject_LatestHonoursContext(t *testing.T) {
	s := NewSubject(0)
	s.MarkPending()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := s.Latest(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestMap_ProjectsValues(t *testing.T) {
	s := NewSubject(2)
	doubled := Map[int, int](s, func(v int) int { return v * 2 })

	var got []int
	cancel := doubled.Observe(func(v int) { got = append(got, v) })
	defer cancel()
	s.Publish(5)

	if len(got) != 2 || got[0] != 4 || got[1] != 10 {
		t.Fatalf("expected [4 10], got %v", got)
	}

	v, err := doubled.Latest(context.Background())
	if err != nil || v != 10 {
		t.Fatalf("expected 10, got %d (%v)", v, err)
	}
}
