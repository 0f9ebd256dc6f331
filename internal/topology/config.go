// Package topology holds the hierarchical plugin/subsection/entity tree
// and its per-node auth keys, persisted to config.json.
package topology

// Entity is the leaf of the hierarchy: a single connecting client.
type Entity struct {
	AuthKey string `json:"auth_key"`
}

// Subsection groups entities under a plugin group.
type Subsection struct {
	AuthKey  string            `json:"auth_key"`
	Entities map[string]Entity `json:"entities"`
}

// Plugin is the top-level category for a group of subsections.
type Plugin struct {
	AuthKey      string                `json:"auth_key"`
	Subsections map[string]Subsection `json:"subsections"`
}

// Config is the root of config.json.
type Config struct {
	Plugins map[string]Plugin `json:"plugins"`
}

func newConfig() *Config {
	return &Config{Plugins: map[string]Plugin{}}
}

func newPlugin(authKey string) Plugin {
	return Plugin{AuthKey: authKey, Subsections: map[string]Subsection{}}
}

func newSubsection(authKey string) Subsection {
	return Subsection{AuthKey: authKey, Entities: map[string]Entity{}}
}
