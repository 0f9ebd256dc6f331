package directive

import (
	"strings"
	"sync"

	"github.com/jLSumner/apollo/internal/jsp"
	"github.com/jLSumner/apollo/internal/logring"
)

const directivesPath = "directives.json"

// Engine guards the live directive tree, resolves reports against it, and
// persists every authoring mutation to disk.
type Engine struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewEngine wraps an already-loaded Config.
func NewEngine(cfg *Config) *Engine {
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginDirectives{}
	}
	return &Engine{cfg: cfg}
}

// Load reads directives.json, defaulting to an empty tree.
func Load() (*Engine, error) {
	cfg := newConfig()
	if jsp.Exists(directivesPath) {
		if err := jsp.Load(directivesPath, cfg); err != nil {
			return nil, err
		}
	}
	return NewEngine(cfg), nil
}

// Snapshot returns the current directive tree for read-only use.
func (e *Engine) Snapshot() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.cfg
}

// AddRule splits targetID on '_' and appends rule to the bucket at that
// level, creating any missing intermediate buckets.
func (e *Engine) AddRule(targetID string, rule Rule) error {
	parts := strings.Split(targetID, "_")
	pluginID := ""
	if len(parts) > 0 {
		pluginID = parts[0]
	}
	if pluginID == "" {
		logring.Errorf("[CORE] cannot add directive for empty target ID")
		return nil
	}

	e.mu.Lock()
	plugin := e.cfg.Plugins[pluginID]
	if plugin.Subsections == nil {
		plugin.Subsections = map[string]SubsectionDirectives{}
	}

	switch len(parts) {
	case 3:
		sub := plugin.Subsections[parts[1]]
		if sub.Entities == nil {
			sub.Entities = map[string]EntityDirectives{}
		}
		ent := sub.Entities[parts[2]]
		ent.Directives = append(ent.Directives, rule)
		sub.Entities[parts[2]] = ent
		plugin.Subsections[parts[1]] = sub
	case 2:
		sub := plugin.Subsections[parts[1]]
		sub.Directives = append(sub.Directives, rule)
		plugin.Subsections[parts[1]] = sub
	default:
		plugin.Directives = append(plugin.Directives, rule)
	}
	e.cfg.Plugins[pluginID] = plugin
	e.mu.Unlock()

	return e.save()
}

// RemoveRule drops every rule structurally equal to rule from the bucket
// named by targetID, persisting only if something was actually removed.
func (e *Engine) RemoveRule(targetID string, rule Rule) error {
	parts := strings.Split(targetID, "_")
	pluginID := ""
	if len(parts) > 0 {
		pluginID = parts[0]
	}

	e.mu.Lock()
	plugin, ok := e.cfg.Plugins[pluginID]
	removed := false
	if ok {
		switch len(parts) {
		case 3:
			if sub, ok := plugin.Subsections[parts[1]]; ok {
				if ent, ok := sub.Entities[parts[2]]; ok {
					ent.Directives, removed = retain(ent.Directives, rule)
					sub.Entities[parts[2]] = ent
					plugin.Subsections[parts[1]] = sub
				}
			}
		case 2:
			if sub, ok := plugin.Subsections[parts[1]]; ok {
				sub.Directives, removed = retain(sub.Directives, rule)
				plugin.Subsections[parts[1]] = sub
			}
		default:
			plugin.Directives, removed = retain(plugin.Directives, rule)
		}
		e.cfg.Plugins[pluginID] = plugin
	}
	e.mu.Unlock()

	if !removed {
		logring.Warningf("[CORE] could not find directive to remove for target %q", targetID)
		return nil
	}
	logring.Infof("[CORE] removing directive for target %q", targetID)
	return e.save()
}

// ProcessReport resolves entityID (strict P_S_E) and status into the first
// matching rule, searched entity bucket, then subsection, then plugin.
func (e *Engine) ProcessReport(entityID, status string) (target, commandJSON string, ok bool) {
	parts := strings.Split(entityID, "_")
	if len(parts) != 3 {
		return "", "", false
	}
	pluginID, subID, entID := parts[0], parts[1], parts[2]

	e.mu.RLock()
	defer e.mu.RUnlock()

	plugin, ok := e.cfg.Plugins[pluginID]
	if !ok {
		return "", "", false
	}
	sub, hasSub := plugin.Subsections[subID]
	if hasSub {
		if ent, hasEnt := sub.Entities[entID]; hasEnt {
			if r := findRule(ent.Directives, status); r != nil {
				return r.ThenCommandTarget, r.ThenCommandJSON, true
			}
		}
		if r := findRule(sub.Directives, status); r != nil {
			return r.ThenCommandTarget, r.ThenCommandJSON, true
		}
	}
	if r := findRule(plugin.Directives, status); r != nil {
		return r.ThenCommandTarget, r.ThenCommandJSON, true
	}
	return "", "", false
}

func findRule(rules []Rule, status string) *Rule {
	for i := range rules {
		if rules[i].IfStatusIs == status {
			return &rules[i]
		}
	}
	return nil
}

// retain returns rules with every entry structurally equal to rule
// dropped, plus whether anything was dropped.
func retain(rules []Rule, rule Rule) ([]Rule, bool) {
	out := rules[:0]
	removed := false
	for _, r := range rules {
		if r == rule {
			removed = true
			continue
		}
		out = append(out, r)
	}
	return out, removed
}

func (e *Engine) save() error {
	e.mu.RLock()
	cfg := *e.cfg
	e.mu.RUnlock()
	if err := jsp.Save(directivesPath, &cfg); err != nil {
		logring.Errorf("[CORE] failed to save directives to disk: %v", err)
		return err
	}
	logring.Infof("[CORE] successfully saved updated directives to %s", directivesPath)
	return nil
}
