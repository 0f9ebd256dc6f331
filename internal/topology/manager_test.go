package topology

import "testing"

func TestManagerAddAndLookupPlugin(t *testing.T) {
	m := NewManager(newConfig())

	if err := m.AddPlugin("P1", "secret"); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}
	key, ok := m.LookupPlugin("P1")
	if !ok || key != "secret" {
		t.Fatalf("LookupPlugin(P1) = %q, %v; want secret, true", key, ok)
	}
	if _, ok := m.LookupPlugin("nope"); ok {
		t.Fatal("LookupPlugin(nope) should miss")
	}
}

func TestManagerEntityHierarchy(t *testing.T) {
	m := NewManager(newConfig())

	if err := m.AddPlugin("P1", "p-key"); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}
	if err := m.AddSubsection("P1", "S1", "s-key"); err != nil {
		t.Fatalf("AddSubsection: %v", err)
	}
	if err := m.AddEntity("P1_S1", "E1", "e-key"); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	key, ok := m.LookupEntity("P1", "S1", "E1")
	if !ok || key != "e-key" {
		t.Fatalf("LookupEntity = %q, %v; want e-key, true", key, ok)
	}

	if err := m.AddEntity("P1_bad_extra", "E2", "k"); err == nil {
		t.Fatal("AddEntity with wrong arity should error")
	}
}

func TestManagerRemoveEntity(t *testing.T) {
	m := NewManager(newConfig())
	_ = m.AddPlugin("P1", "p-key")
	_ = m.AddSubsection("P1", "S1", "s-key")
	_ = m.AddEntity("P1_S1", "E1", "e-key")

	if err := m.RemoveEntity("P1_S1", "E1"); err != nil {
		t.Fatalf("RemoveEntity: %v", err)
	}
	if _, ok := m.LookupEntity("P1", "S1", "E1"); ok {
		t.Fatal("entity should be gone after removal")
	}
}

func TestManagerAddPluginIsIdempotent(t *testing.T) {
	m := NewManager(newConfig())
	_ = m.AddPlugin("P1", "first")
	_ = m.AddPlugin("P1", "second")

	key, _ := m.LookupPlugin("P1")
	if key != "first" {
		t.Fatalf("re-adding an existing plugin should not overwrite it: got %q", key)
	}
}
