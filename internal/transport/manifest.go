package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"codehint/internal/filecache"
)

// ManifestFile is the conventional environment manifest name.
const ManifestFile = "environment.toml"

// Manifest describes the environment of an in-process engine:
//
//	name = "browser"
//	definitions = ["defs/ecma5.json", "https://example.com/defs/jquery.json"]
//
//	[plugins.requirejs]
//	baseURL = "js"
type Manifest struct {
	Name        string                            `toml:"name"`
	Definitions []string                          `toml:"definitions"`
	Plugins     map[string]map[string]interface{} `toml:"plugins"`
}

// LoadManifest reads a manifest. Relative definition paths are resolved
// against the manifest's directory; unknown keys are rejected.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown manifest keys: %s", strings.Join(keys, ", "))
	}

	dir := filepath.Dir(path)
	for i, d := range m.Definitions {
		if filecache.IsNetworkName(d) || filepath.IsAbs(d) {
			continue
		}
		m.Definitions[i] = filepath.Join(dir, d)
	}
	return &m, nil
}

// Options returns the local transport options the manifest describes.
func (m *Manifest) Options() LocalOptions {
	return LocalOptions{
		Definitions: m.Definitions,
		Plugins:     m.Plugins,
	}
}

// SaveManifest writes m to path.
func SaveManifest(path string, m *Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}
