package dictionary

import "testing"

func TestAddAndRemoveStatusCode(t *testing.T) {
	m := NewManager(newDictionary())

	if err := m.AddStatusCode("P1", "Degraded"); err != nil {
		t.Fatalf("AddStatusCode: %v", err)
	}
	pd, ok := m.Lookup("P1")
	if !ok || len(pd.StatusCodes) != 1 || pd.StatusCodes[0] != "Degraded" {
		t.Fatalf("unexpected dictionary state: %+v, ok=%v", pd, ok)
	}

	if err := m.RemoveStatusCode("P1", "Degraded"); err != nil {
		t.Fatalf("RemoveStatusCode: %v", err)
	}
	pd, _ = m.Lookup("P1")
	if len(pd.StatusCodes) != 0 {
		t.Fatalf("expected status code to be removed, got %+v", pd.StatusCodes)
	}
}

func TestAddCommandTemplate(t *testing.T) {
	m := NewManager(newDictionary())
	tmpl := CommandTemplate{Name: "Restart", Priority: PriorityHigh, HasLevel: true, Level: 2}

	if err := m.AddCommandTemplate("P1", "restart", tmpl); err != nil {
		t.Fatalf("AddCommandTemplate: %v", err)
	}
	pd, ok := m.Lookup("P1")
	if !ok {
		t.Fatal("expected plugin bucket to exist")
	}
	got, ok := pd.CommandTemplates["restart"]
	if !ok || got != tmpl {
		t.Fatalf("CommandTemplates[restart] = %+v, %v; want %+v, true", got, ok, tmpl)
	}
}
