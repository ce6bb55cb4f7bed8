// Package manifest handles tickflow.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/tickflow/extract"
	"github.com/chazu/tickflow/tempo"
)

// FileName is the name of the project file.
const FileName = "tickflow.toml"

// Manifest represents a tickflow.toml project configuration.
type Manifest struct {
	Image  ImageConfig  `toml:"image"`
	Output OutputConfig `toml:"output"`
	Tempo  TempoConfig  `toml:"tempo"`

	// Names maps unit names ("002", "100_practice") to output file stems.
	Names map[string]string `toml:"names"`

	// Dir is the directory containing the tickflow.toml file (set at load time).
	Dir string `toml:"-"`
}

// ImageConfig describes the patched image read by extract.
type ImageConfig struct {
	Variant string `toml:"variant"`
	Base    uint32 `toml:"base"`
	Legacy  bool   `toml:"legacy"`
}

// OutputConfig configures where artifacts are written.
type OutputConfig struct {
	Dir     string `toml:"dir"`
	Bin     bool   `toml:"bin"`     // also write linked .bin files
	Report  string `toml:"report"`  // CBOR extraction report
	Catalog string `toml:"catalog"` // sqlite artifact index
}

// TempoConfig lists text tempo files added to every container.
type TempoConfig struct {
	Files []string `toml:"files"`
}

// Load parses a tickflow.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Image.Variant == "" {
		m.Image.Variant = extract.RHMPatch.String()
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "out"
	}
	if _, err := extract.ParseVariant(m.Image.Variant); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a tickflow.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ExtractOptions returns the image options configured in [image].
func (m *Manifest) ExtractOptions() (extract.Options, error) {
	v, err := extract.ParseVariant(m.Image.Variant)
	if err != nil {
		return extract.Options{}, err
	}
	return extract.Options{Variant: v, Base: m.Image.Base, Legacy: m.Image.Legacy}, nil
}

// UnitName returns the output file stem for u. A practice unit without its
// own entry borrows its gate's name.
func (m *Manifest) UnitName(u *extract.Unit) string {
	if name, ok := m.Names[u.Name()]; ok {
		return name
	}
	if u.Practice {
		gate := extract.Unit{Index: u.Index}
		if name, ok := m.Names[gate.Name()]; ok {
			return name + "_practice"
		}
	}
	return u.Name()
}

// OutputDir returns the absolute output directory.
func (m *Manifest) OutputDir() string {
	return m.path(m.Output.Dir)
}

// ReportPath returns the report path, or "" when no report is configured.
func (m *Manifest) ReportPath() string {
	if m.Output.Report == "" {
		return ""
	}
	return m.path(m.Output.Report)
}

// CatalogPath returns the catalog database path, or "" when disabled.
func (m *Manifest) CatalogPath() string {
	if m.Output.Catalog == "" {
		return ""
	}
	return m.path(m.Output.Catalog)
}

// LoadTempos parses every file listed in [tempo].
func (m *Manifest) LoadTempos() ([]*tempo.Tempo, error) {
	var out []*tempo.Tempo
	for _, f := range m.Tempo.Files {
		path := m.path(f)
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		tp, err := tempo.ParseText(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, tp)
	}
	return out, nil
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
