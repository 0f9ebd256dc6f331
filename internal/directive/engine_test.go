package directive

import "testing"

func TestEngineAddRuleCreatesArityBuckets(t *testing.T) {
	e := NewEngine(newConfig())

	plugRule := Rule{IfStatusIs: "Degraded", ThenCommandTarget: "P1", ThenCommandJSON: `{"cmd":"restart"}`}
	if err := e.AddRule("P1", plugRule); err != nil {
		t.Fatalf("AddRule(plugin): %v", err)
	}

	subRule := Rule{IfStatusIs: "Warn", ThenCommandTarget: "P1_S1", ThenCommandJSON: `{"cmd":"noop"}`}
	if err := e.AddRule("P1_S1", subRule); err != nil {
		t.Fatalf("AddRule(subsection): %v", err)
	}

	entRule := Rule{IfStatusIs: "Critical", ThenCommandTarget: "P1_S1_E1", ThenCommandJSON: `{"cmd":"shutdown"}`}
	if err := e.AddRule("P1_S1_E1", entRule); err != nil {
		t.Fatalf("AddRule(entity): %v", err)
	}

	snap := e.Snapshot()
	p := snap.Plugins["P1"]
	if len(p.Directives) != 1 {
		t.Fatalf("expected 1 plugin-level directive, got %d", len(p.Directives))
	}
	if len(p.Subsections["S1"].Directives) != 1 {
		t.Fatalf("expected 1 subsection-level directive, got %d", len(p.Subsections["S1"].Directives))
	}
	if len(p.Subsections["S1"].Entities["E1"].Directives) != 1 {
		t.Fatalf("expected 1 entity-level directive, got %d", len(p.Subsections["S1"].Entities["E1"].Directives))
	}
}

func TestEngineProcessReportHierarchicalPrecedence(t *testing.T) {
	e := NewEngine(newConfig())

	// A plugin-level catch-all and a more specific entity-level rule for
	// the same status; the entity-level rule must win.
	_ = e.AddRule("P1", Rule{IfStatusIs: "Error", ThenCommandTarget: "P1", ThenCommandJSON: `{"cmd":"plugin-level"}`})
	_ = e.AddRule("P1_S1_E1", Rule{IfStatusIs: "Error", ThenCommandTarget: "P1_S1_E1", ThenCommandJSON: `{"cmd":"entity-level"}`})

	target, cmdJSON, ok := e.ProcessReport("P1_S1_E1", "Error")
	if !ok {
		t.Fatal("expected a match")
	}
	if target != "P1_S1_E1" || cmdJSON != `{"cmd":"entity-level"}` {
		t.Fatalf("entity-level rule should take precedence, got target=%q json=%q", target, cmdJSON)
	}
}

func TestEngineProcessReportRejectsNonEntityID(t *testing.T) {
	e := NewEngine(newConfig())
	_ = e.AddRule("P1", Rule{IfStatusIs: "Error", ThenCommandTarget: "P1", ThenCommandJSON: "{}"})

	if _, _, ok := e.ProcessReport("P1", "Error"); ok {
		t.Fatal("ProcessReport should require a strict P_S_E entity ID")
	}
}

func TestEngineRemoveRuleOnlyDropsExactMatch(t *testing.T) {
	e := NewEngine(newConfig())
	r1 := Rule{IfStatusIs: "Error", ThenCommandTarget: "P1", ThenCommandJSON: `{"a":1}`}
	r2 := Rule{IfStatusIs: "Error", ThenCommandTarget: "P1", ThenCommandJSON: `{"a":2}`}
	_ = e.AddRule("P1", r1)
	_ = e.AddRule("P1", r2)

	if err := e.RemoveRule("P1", r1); err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}

	snap := e.Snapshot()
	rules := snap.Plugins["P1"].Directives
	if len(rules) != 1 || rules[0] != r2 {
		t.Fatalf("expected only r2 to remain, got %+v", rules)
	}
}
