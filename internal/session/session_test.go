package session

import "testing"

func TestRegistryOpenReplacesPriorSessionForSameEntity(t *testing.T) {
	r := NewRegistry()
	first := r.Open("P1_S1_E1", "token-1")
	second := r.Open("P1_S1_E1", "token-2")

	if _, ok := r.ByToken("token-1"); ok {
		t.Fatal("old token should have been dropped when the entity reconnected")
	}
	got, ok := r.ByEntity("P1_S1_E1")
	if !ok || got != second {
		t.Fatal("ByEntity should resolve to the newest session")
	}
	_ = first
}

func TestDispatchNonBlockingWhenQueueFull(t *testing.T) {
	s := newSession("P1_S1_E1", "token-1")
	for i := 0; i < placeholderQueueDepth; i++ {
		if !s.Dispatch(Command{Target: "P1_S1_E1", JSON: "{}"}) {
			t.Fatalf("dispatch %d should have succeeded", i)
		}
	}
	if s.Dispatch(Command{Target: "P1_S1_E1", JSON: "{}"}) {
		t.Fatal("dispatch into a full queue should report false, not block")
	}
}

func TestPromoteQueueCarriesOverPendingCommands(t *testing.T) {
	s := newSession("P1_S1_E1", "token-1")
	s.Dispatch(Command{Target: "P1_S1_E1", JSON: "first"})

	s.PromoteQueue()

	select {
	case cmd := <-s.Commands():
		if cmd.JSON != "first" {
			t.Fatalf("expected carried-over command, got %+v", cmd)
		}
	default:
		t.Fatal("expected the pending command to survive promotion")
	}

	for i := 0; i < realQueueDepth; i++ {
		if !s.Dispatch(Command{JSON: "x"}) {
			t.Fatalf("post-promotion dispatch %d should succeed at the larger depth", i)
		}
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Open("P1_S1_E1", "token-1")
	r.Remove("token-1")

	if _, ok := r.ByToken("token-1"); ok {
		t.Fatal("session should be gone after Remove")
	}
	if _, ok := r.ByEntity("P1_S1_E1"); ok {
		t.Fatal("entity index should be cleared after Remove")
	}
}
