package room

import (
	"testing"
)

func ringRoom(ids ...string) *Room {
	r := newRoom("ring")
	for _, id := range ids {
		r.members[id] = &Player{ID: id, Name: id}
		r.order = append(r.order, id)
	}
	return r
}

func TestAdvanceModeratorFollowsJoinOrder(t *testing.T) {
	r := ringRoom("A", "B", "C")
	r.moderatorID = "A"

	r.advanceModeratorLocked()
	if r.moderatorID != "B" {
		t.Fatalf("Expected B after A, got %s", r.moderatorID)
	}

	r.advanceModeratorLocked()
	if r.moderatorID != "C" {
		t.Fatalf("Expected C after B, got %s", r.moderatorID)
	}

	r.advanceModeratorLocked()
	if r.moderatorID != "A" {
		t.Fatalf("Ring must wrap back to A, got %s", r.moderatorID)
	}
}

func TestAdvanceModeratorUsesCurrentRing(t *testing.T) {
	r := ringRoom("A", "B", "C")
	r.moderatorID = "A"

	// B left between rotations; the ring is recomputed, not cached
	delete(r.members, "B")
	r.removeFromOrderLocked("B")

	r.advanceModeratorLocked()
	if r.moderatorID != "C" {
		t.Errorf("Expected C as A's successor once B left, got %s", r.moderatorID)
	}
}

func TestAdvanceModeratorFallsBackWhenModeratorGone(t *testing.T) {
	r := ringRoom("A", "B", "C")
	r.moderatorID = "Z" // already removed

	r.advanceModeratorLocked()

	if _, exists := r.members[r.moderatorID]; !exists {
		t.Errorf("Fallback must pick a current member, got %q", r.moderatorID)
	}
}

func TestSelectRandomModeratorPicksMember(t *testing.T) {
	r := ringRoom("A", "B", "C")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.selectRandomModeratorLocked()
		if _, exists := r.members[id]; !exists {
			t.Fatalf("Random pick %q is not a member", id)
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Errorf("Uniform pick over 100 draws hit only %d members", len(seen))
	}
}
