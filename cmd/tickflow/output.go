package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/tickflow/btks"
	"github.com/chazu/tickflow/catalog"
	"github.com/chazu/tickflow/tempo"
)

// writeFile writes data to a temp file next to path and renames it into
// place, so a failed run never leaves a partial output.
func writeFile(path string, data []byte) error {
	return writeWith(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// writeContainer serializes c straight into a temp file; the header is
// back-patched on the file itself.
func writeContainer(path string, c *btks.Container) ([]byte, error) {
	if err := writeWith(path, func(f *os.File) error { return btks.Write(f, c) }); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func writeWith(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// stem returns the file name without directory or extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// outputDir picks the -o flag, then the manifest, then def.
func (e *env) outputDir(flagValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if e.manifest != nil {
		return e.manifest.OutputDir()
	}
	return def
}

// tempos loads the manifest's tempo files followed by the extra paths.
func (e *env) tempos(extra []string) ([]*tempo.Tempo, error) {
	var out []*tempo.Tempo
	if e.manifest != nil {
		ts, err := e.manifest.LoadTempos()
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	for _, path := range extra {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		tp, err := tempo.ParseText(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, tp)
	}
	return out, nil
}

// openCatalog opens the configured catalog, or returns nil when none is
// configured.
func (e *env) openCatalog(flagValue string) (*catalog.Catalog, error) {
	path := flagValue
	if path == "" && e.manifest != nil {
		path = e.manifest.CatalogPath()
	}
	if path == "" {
		return nil, nil
	}
	return catalog.Open(path)
}

func record(cat *catalog.Catalog, kind catalog.Kind, source string, index int64, name string, data []byte) error {
	if cat == nil {
		return nil
	}
	_, err := cat.Record(kind, source, index, name, data)
	return err
}

// stringList is a repeatable flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }
