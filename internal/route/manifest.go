package route

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Manifest lists which built-in routes to install, and in what order.
// Chain order is semantically significant (spec §4.2), so operators need
// a way to declare it without recompiling: a TOML file read once at
// startup.
//
// Example:
//
//	[[route]]
//	name = "blocklist"
//
//	[[route]]
//	name = "direct"
type Manifest struct {
	Route []ManifestEntry `toml:"route"`
}

// ManifestEntry names one built-in route to install.
type ManifestEntry struct {
	Name string `toml:"name"`
}

// LoadManifest reads a routes manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("route: load manifest %s: %w", path, err)
	}
	return &m, nil
}

// Names returns the ordered list of route names the manifest declares.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.Route))
	for i, e := range m.Route {
		names[i] = e.Name
	}
	return names
}
