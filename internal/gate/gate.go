package gate

import (
	"github.com/pkg/errors"

	"github.com/jLSumner/apollo/internal/dictionary"
	"github.com/jLSumner/apollo/internal/directive"
	"github.com/jLSumner/apollo/internal/logring"
	"github.com/jLSumner/apollo/internal/topology"
)

// Kind identifies which code-key a staged action must be confirmed
// against and which manager eventually executes it.
type Kind string

const (
	KindDirectiveDeletion   Kind = "DirectiveDeletion"
	KindPluginDeletion      Kind = "PluginDeletion"
	KindSubsectionDeletion  Kind = "SubsectionDeletion"
	KindEntityDeletion      Kind = "EntityDeletion"
	KindStatusCodeDeletion  Kind = "StatusCodeDeletion"
	KindCommandCodeDeletion Kind = "CommandCodeDeletion"
)

// WipAction is the tagged union of destructive operations awaiting
// confirmation. Exactly the fields its Kind needs are populated.
type WipAction struct {
	Kind Kind

	// DirectiveDeletion
	TargetID string
	Rule     directive.Rule

	// Plugin/Subsection/Entity deletion
	PluginID     string
	SubsectionID string
	EntityID     string

	// Status/command code deletion
	Code string
	Key  string
}

// Gate sequences stage-then-confirm for destructive actions: Stage records
// the pending action; Confirm looks up the code for that action's Kind,
// checks the supplied code against it and, only on a match, dispatches to
// the manager that actually performs the deletion.
type Gate struct {
	codes  *SecurityCodes
	topo   *topology.Manager
	dict   *dictionary.Manager
	engine *directive.Engine

	pending *WipAction
}

// New builds a Gate wired to the managers it can act on.
func New(codes *SecurityCodes, topo *topology.Manager, dict *dictionary.Manager, engine *directive.Engine) *Gate {
	return &Gate{codes: codes, topo: topo, dict: dict, engine: engine}
}

// Stage records action as pending, replacing whatever was previously
// staged (only one confirmation can be in flight at a time).
func (g *Gate) Stage(action WipAction) {
	g.pending = &action
	logring.Infof("[GATE] staged %s action awaiting confirmation", action.Kind)
}

// Pending returns the currently staged action, if any.
func (g *Gate) Pending() (WipAction, bool) {
	if g.pending == nil {
		return WipAction{}, false
	}
	return *g.pending, true
}

// Cancel discards the staged action without applying it.
func (g *Gate) Cancel() {
	g.pending = nil
}

// Confirm checks code against the pending action's required confirmation
// code and, on a match, applies it and clears the stage.
func (g *Gate) Confirm(code string) error {
	if g.pending == nil {
		return errors.New("no action staged for confirmation")
	}
	action := *g.pending

	required, ok := g.codes.Code(string(action.Kind))
	if !ok || code != required {
		logring.Warningf("[GATE] rejected confirmation for %s action", action.Kind)
		return errors.New("incorrect confirmation code")
	}

	g.pending = nil
	return g.apply(action)
}

func (g *Gate) apply(action WipAction) error {
	switch action.Kind {
	case KindDirectiveDeletion:
		return g.engine.RemoveRule(action.TargetID, action.Rule)
	case KindPluginDeletion:
		return g.topo.RemovePlugin(action.PluginID)
	case KindSubsectionDeletion:
		return g.topo.RemoveSubsection(action.PluginID, action.SubsectionID)
	case KindEntityDeletion:
		return g.topo.RemoveEntity(action.PluginID+"_"+action.SubsectionID, action.EntityID)
	case KindStatusCodeDeletion:
		return g.dict.RemoveStatusCode(action.PluginID, action.Code)
	case KindCommandCodeDeletion:
		return g.dict.RemoveCommandTemplate(action.PluginID, action.Key)
	default:
		return errors.Errorf("unknown action kind %s", action.Kind)
	}
}
