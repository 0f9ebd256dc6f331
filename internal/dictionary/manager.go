package dictionary

import (
	"sync"

	"github.com/jLSumner/apollo/internal/jsp"
	"github.com/jLSumner/apollo/internal/logring"
)

const dictionaryPath = "directive_dictionary.json"

// Manager guards the live Dictionary and persists every mutation to disk.
type Manager struct {
	mu   sync.RWMutex
	dict *Dictionary
}

// NewManager wraps an already-loaded Dictionary.
func NewManager(dict *Dictionary) *Manager {
	if dict.PluginDictionaries == nil {
		dict.PluginDictionaries = map[string]PluginDictionary{}
	}
	return &Manager{dict: dict}
}

// Load reads directive_dictionary.json, defaulting to an empty one.
func Load() (*Manager, error) {
	dict := newDictionary()
	if jsp.Exists(dictionaryPath) {
		if err := jsp.Load(dictionaryPath, dict); err != nil {
			return nil, err
		}
	}
	return NewManager(dict), nil
}

// Snapshot returns the current dictionary tree for read-only use.
func (m *Manager) Snapshot() Dictionary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.dict
}

// Lookup returns the named bucket's templates/codes, or the generic
// bucket's if the plugin bucket doesn't exist. The two buckets are not
// merged: a plugin that has its own bucket gets only that bucket.
func (m *Manager) Lookup(pluginID string) (PluginDictionary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dict.PluginDictionaries[pluginID]
	if !ok {
		d, ok = m.dict.PluginDictionaries[Generic]
	}
	return d, ok
}

func (m *Manager) bucket(pluginID string) PluginDictionary {
	d, ok := m.dict.PluginDictionaries[pluginID]
	if !ok {
		d = newPluginDictionary()
	}
	return d
}

// AddStatusCode appends code to the plugin group's ordered status list.
func (m *Manager) AddStatusCode(pluginID, code string) error {
	m.mu.Lock()
	d := m.bucket(pluginID)
	for _, c := range d.StatusCodes {
		if c == code {
			m.mu.Unlock()
			logring.Warningf("[DICT] status code already exists for %q, no changes made", pluginID)
			return nil
		}
	}
	d.StatusCodes = append(d.StatusCodes, code)
	m.dict.PluginDictionaries[pluginID] = d
	m.mu.Unlock()
	logring.Infof("[DICT] added status code to %q", pluginID)
	return m.save()
}

// AddCommandTemplate inserts a template at key if absent.
func (m *Manager) AddCommandTemplate(pluginID, key string, tmpl CommandTemplate) error {
	m.mu.Lock()
	d := m.bucket(pluginID)
	if _, exists := d.CommandTemplates[key]; exists {
		m.mu.Unlock()
		logring.Warningf("[DICT] command template key %q already exists for %q, no changes made", key, pluginID)
		return nil
	}
	d.CommandTemplates[key] = tmpl
	m.dict.PluginDictionaries[pluginID] = d
	m.mu.Unlock()
	logring.Infof("[DICT] added command template %q to %q", key, pluginID)
	return m.save()
}

// RemoveStatusCode removes code if present.
func (m *Manager) RemoveStatusCode(pluginID, code string) error {
	m.mu.Lock()
	d, ok := m.dict.PluginDictionaries[pluginID]
	if !ok {
		m.mu.Unlock()
		logring.Warningf("[DICT] plugin group %q not found for status code removal", pluginID)
		return nil
	}
	out := d.StatusCodes[:0]
	removed := false
	for _, c := range d.StatusCodes {
		if c == code {
			removed = true
			continue
		}
		out = append(out, c)
	}
	if !removed {
		m.mu.Unlock()
		logring.Warningf("[DICT] status code %q not found for %q, no changes made", code, pluginID)
		return nil
	}
	d.StatusCodes = out
	m.dict.PluginDictionaries[pluginID] = d
	m.mu.Unlock()
	logring.Infof("[DICT] removed status code %q from %q", code, pluginID)
	return m.save()
}

// RemoveCommandTemplate removes key if present.
func (m *Manager) RemoveCommandTemplate(pluginID, key string) error {
	m.mu.Lock()
	d, ok := m.dict.PluginDictionaries[pluginID]
	if !ok {
		m.mu.Unlock()
		logring.Warningf("[DICT] plugin group %q not found for command removal", pluginID)
		return nil
	}
	if _, exists := d.CommandTemplates[key]; !exists {
		m.mu.Unlock()
		logring.Warningf("[DICT] command template key %q not found for %q, no changes made", key, pluginID)
		return nil
	}
	delete(d.CommandTemplates, key)
	m.dict.PluginDictionaries[pluginID] = d
	m.mu.Unlock()
	logring.Infof("[DICT] removed command template %q from %q", key, pluginID)
	return m.save()
}

func (m *Manager) save() error {
	m.mu.RLock()
	dict := *m.dict
	m.mu.RUnlock()
	if err := jsp.Save(dictionaryPath, &dict); err != nil {
		logring.Errorf("[DICT] failed to save dictionary to disk: %v", err)
		return err
	}
	logring.Infof("[CORE] successfully saved updated directive dictionary to disk")
	return nil
}
