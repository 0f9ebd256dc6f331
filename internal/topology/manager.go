package topology

import (
	"errors"
	"strings"
	"sync"

	"github.com/jLSumner/apollo/internal/jsp"
	"github.com/jLSumner/apollo/internal/logring"
)

var errInvalidArity = errors.New("invalid ID arity")

const configPath = "config.json"

// Manager guards the live Config and persists every mutation to disk.
type Manager struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewManager wraps an already-loaded Config.
func NewManager(cfg *Config) *Manager {
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]Plugin{}
	}
	return &Manager{cfg: cfg}
}

// Load reads config.json, defaulting to an empty tree if it is missing.
func Load() (*Manager, error) {
	cfg := newConfig()
	if jsp.Exists(configPath) {
		if err := jsp.Load(configPath, cfg); err != nil {
			return nil, err
		}
	}
	return NewManager(cfg), nil
}

// Snapshot returns a deep-enough copy of the config tree for read-only use
// (callers must not mutate the returned maps).
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.cfg
}

// LookupEntity resolves P_S_E to its auth key. ok is false if any segment
// of the path is absent.
func (m *Manager) LookupEntity(plugin, subsection, entity string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		return "", false
	}
	s, ok := p.Subsections[subsection]
	if !ok {
		return "", false
	}
	e, ok := s.Entities[entity]
	if !ok {
		return "", false
	}
	return e.AuthKey, true
}

// LookupPlugin resolves P to its auth key.
func (m *Manager) LookupPlugin(plugin string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		return "", false
	}
	return p.AuthKey, true
}

// AddPlugin inserts a new plugin group; a no-op (warn) if it already exists.
func (m *Manager) AddPlugin(id, authKey string) error {
	m.mu.Lock()
	if _, exists := m.cfg.Plugins[id]; exists {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] plugin %q already exists, no changes made", id)
		return nil
	}
	m.cfg.Plugins[id] = newPlugin(authKey)
	m.mu.Unlock()
	logring.Infof("[CONFIG] added new plugin %q", id)
	return m.save()
}

// AddSubsection inserts S under P.
func (m *Manager) AddSubsection(plugin, subsection, authKey string) error {
	m.mu.Lock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		m.mu.Unlock()
		logring.Errorf("[CONFIG] could not find parent plugin %q to add subsection to", plugin)
		return nil
	}
	if _, exists := p.Subsections[subsection]; exists {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] subsection %q already exists in plugin %q, no changes made", subsection, plugin)
		return nil
	}
	p.Subsections[subsection] = newSubsection(authKey)
	m.cfg.Plugins[plugin] = p
	m.mu.Unlock()
	logring.Infof("[CONFIG] added new subsection %q to plugin %q", subsection, plugin)
	return m.save()
}

// AddEntity inserts E under parentID (P_S, strict arity 2).
func (m *Manager) AddEntity(parentID, entity, authKey string) error {
	plugin, subsection, err := splitArity2(parentID)
	if err != nil {
		logring.Errorf("[CONFIG] invalid parent ID format %q for new entity", parentID)
		return err
	}
	m.mu.Lock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		m.mu.Unlock()
		logring.Errorf("[CONFIG] could not find parent plugin %q to add entity to", plugin)
		return nil
	}
	s, ok := p.Subsections[subsection]
	if !ok {
		m.mu.Unlock()
		logring.Errorf("[CONFIG] could not find parent subsection %q to add entity to", parentID)
		return nil
	}
	if _, exists := s.Entities[entity]; exists {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] entity %q already exists in %q, no changes made", entity, parentID)
		return nil
	}
	s.Entities[entity] = Entity{AuthKey: authKey}
	p.Subsections[subsection] = s
	m.cfg.Plugins[plugin] = p
	m.mu.Unlock()
	logring.Infof("[CONFIG] added new entity %q to %q", entity, parentID)
	return m.save()
}

// RemovePlugin deletes P and everything it owns.
func (m *Manager) RemovePlugin(id string) error {
	m.mu.Lock()
	if _, ok := m.cfg.Plugins[id]; !ok {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] could not find plugin %q to remove", id)
		return nil
	}
	delete(m.cfg.Plugins, id)
	m.mu.Unlock()
	logring.Infof("[CONFIG] removed plugin %q", id)
	return m.save()
}

// RemoveSubsection deletes P_S and everything it owns.
func (m *Manager) RemoveSubsection(plugin, subsection string) error {
	m.mu.Lock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] could not find parent plugin %q for removal", plugin)
		return nil
	}
	if _, ok := p.Subsections[subsection]; !ok {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] could not find subsection %q to remove", subsection)
		return nil
	}
	delete(p.Subsections, subsection)
	m.cfg.Plugins[plugin] = p
	m.mu.Unlock()
	logring.Infof("[CONFIG] removed subsection %q from plugin %q", subsection, plugin)
	return m.save()
}

// RemoveEntity deletes E from parentID (P_S).
func (m *Manager) RemoveEntity(parentID, entity string) error {
	plugin, subsection, err := splitArity2(parentID)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	p, ok := m.cfg.Plugins[plugin]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	s, ok := p.Subsections[subsection]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if _, ok := s.Entities[entity]; !ok {
		m.mu.Unlock()
		logring.Warningf("[CONFIG] could not find entity %q to remove", entity)
		return nil
	}
	delete(s.Entities, entity)
	p.Subsections[subsection] = s
	m.cfg.Plugins[plugin] = p
	m.mu.Unlock()
	logring.Infof("[CONFIG] removed entity %q from %q", entity, parentID)
	return m.save()
}

func (m *Manager) save() error {
	m.mu.RLock()
	cfg := *m.cfg
	m.mu.RUnlock()
	if err := jsp.Save(configPath, &cfg); err != nil {
		logring.Errorf("[CONFIG] failed to save config to disk: %v", err)
		return err
	}
	logring.Infof("[CONFIG] successfully saved updated plugin config to %s", configPath)
	return nil
}

func splitArity2(id string) (string, string, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		return "", "", errInvalidArity
	}
	return parts[0], parts[1], nil
}
