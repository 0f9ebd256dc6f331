package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jLSumner/apollo/internal/dictionary"
	"github.com/jLSumner/apollo/internal/directive"
	"github.com/jLSumner/apollo/internal/topology"
)

func writeCodesFile(t *testing.T) *SecurityCodes {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codes.txt")
	content := "PluginDeletion >> open-sesame\nDirectiveDeletion >> rule-be-gone\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write codes file: %v", err)
	}
	codes, err := LoadSecurityCodes(path)
	if err != nil {
		t.Fatalf("LoadSecurityCodes: %v", err)
	}
	return codes
}

func TestLoadSecurityCodesStripsKeyWhitespace(t *testing.T) {
	codes := writeCodesFile(t)
	code, ok := codes.Code(string(KindPluginDeletion))
	if !ok || code != "open-sesame" {
		t.Fatalf("Code(%s) = %q, %v; want open-sesame, true", KindPluginDeletion, code, ok)
	}
}

func TestGateRejectsWrongCode(t *testing.T) {
	codes := writeCodesFile(t)
	topo := topology.NewManager(&topology.Config{Plugins: map[string]topology.Plugin{}})
	_ = topo.AddPlugin("P1", "k")
	dict, _ := dictionary.Load()
	eng := directive.NewEngine(&directive.Config{Plugins: map[string]directive.PluginDirectives{}})
	g := New(codes, topo, dict, eng)

	g.Stage(WipAction{Kind: KindPluginDeletion, PluginID: "P1"})
	if err := g.Confirm("wrong-code"); err == nil {
		t.Fatal("Confirm with the wrong code should error")
	}
	if _, ok := topo.LookupPlugin("P1"); !ok {
		t.Fatal("plugin should not be deleted after a rejected confirmation")
	}
}

func TestGateAppliesOnCorrectCode(t *testing.T) {
	codes := writeCodesFile(t)
	topo := topology.NewManager(&topology.Config{Plugins: map[string]topology.Plugin{}})
	_ = topo.AddPlugin("P1", "k")
	dict, _ := dictionary.Load()
	eng := directive.NewEngine(&directive.Config{Plugins: map[string]directive.PluginDirectives{}})
	g := New(codes, topo, dict, eng)

	g.Stage(WipAction{Kind: KindPluginDeletion, PluginID: "P1"})
	if err := g.Confirm("open-sesame"); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, ok := topo.LookupPlugin("P1"); ok {
		t.Fatal("plugin should be deleted after a correct confirmation")
	}
}

func TestGateConfirmWithNothingStaged(t *testing.T) {
	codes := writeCodesFile(t)
	topo := topology.NewManager(&topology.Config{Plugins: map[string]topology.Plugin{}})
	dict, _ := dictionary.Load()
	eng := directive.NewEngine(&directive.Config{Plugins: map[string]directive.PluginDirectives{}})
	g := New(codes, topo, dict, eng)

	if err := g.Confirm("anything"); err == nil {
		t.Fatal("Confirm with nothing staged should error")
	}
}
