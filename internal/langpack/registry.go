package langpack

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds all loaded language packs, keyed by language code.
// It is populated once at startup and read-only afterwards, so it is safe
// for concurrent use without locking.
type Registry struct {
	packs map[string]*Pack
}

// NewRegistry returns an empty registry. Resolve on an empty registry always
// reports not found, which callers map to the generic prompt.
func NewRegistry() *Registry {
	return &Registry{packs: make(map[string]*Pack)}
}

// LoadDir reads every .yaml/.yml file in dir as a language pack and returns
// a registry over them. Files that fail to parse or validate abort the load;
// a broken pack at startup is a deployment error, not something to limp past.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("langpack: read pack directory %q: %w", dir, err)
	}

	reg := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		pack, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.packs[pack.Language]; dup {
			return nil, fmt.Errorf("langpack: duplicate pack for language %q in %q", pack.Language, path)
		}
		reg.packs[pack.Language] = pack
		logger.Info("loaded language pack",
			"language", pack.Language,
			"confusion_pairs", len(pack.ConfusionPairs),
			"file", entry.Name())
	}
	return reg, nil
}

// Resolve returns the pack for the given language code. Lookup tries the
// exact code first, then the bare primary subtag ("fr-CA" falls back to
// "fr"). Absence is reported via ok, never via an error.
func (r *Registry) Resolve(language string) (*Pack, bool) {
	if pack, ok := r.packs[language]; ok {
		return pack, true
	}
	if base, _, found := strings.Cut(language, "-"); found {
		if pack, ok := r.packs[base]; ok {
			return pack, true
		}
	}
	return nil, false
}

// Languages returns the codes of all loaded packs, for diagnostics.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.packs))
	for code := range r.packs {
		langs = append(langs, code)
	}
	return langs
}

func loadFile(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("langpack: open pack file %q: %w", path, err)
	}
	defer f.Close()

	pack, err := loadReader(f)
	if err != nil {
		return nil, fmt.Errorf("langpack: pack file %q: %w", path, err)
	}
	return pack, nil
}

// loadReader parses a single pack from YAML. The reader is consumed
// entirely; the caller is responsible for closing it.
func loadReader(r io.Reader) (*Pack, error) {
	var pack Pack
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&pack); err != nil {
		return nil, fmt.Errorf("decode pack yaml: %w", err)
	}
	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pack: %w", err)
	}
	pack.buildIndex()
	return &pack, nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
