// Package runtime holds the editor's language list and keeps each language's
// Piston runtime version current.
package runtime

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sakif/codecraft/internal/executor/piston"
)

//go:embed languages.yaml
var defaultLanguages []byte

// PistonRuntime names the runtime a language executes on.
type PistonRuntime struct {
	Language string `yaml:"language" json:"language"`
	Version  string `yaml:"version" json:"version"`
}

type Language struct {
	ID     string        `yaml:"id" json:"id"`
	Label  string        `yaml:"label" json:"label"`
	Piston PistonRuntime `yaml:"piston" json:"pistonRuntime"`
	Monaco string        `yaml:"monaco" json:"monacoLanguage"`
}

type document struct {
	Languages []Language `yaml:"languages"`
}

// RuntimeLister is the part of the Piston client that Sync needs.
type RuntimeLister interface {
	Runtimes(ctx context.Context) ([]piston.Runtime, error)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	languages []Language
	byID      map[string]int
	logger    *slog.Logger
}

// NewRegistry loads the embedded language list.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	return Parse(defaultLanguages, logger)
}

// Parse builds a registry from a YAML language document.
func Parse(data []byte, logger *slog.Logger) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("runtime: parsing languages: %w", err)
	}

	r := &Registry{byID: make(map[string]int, len(doc.Languages)), logger: logger}
	for _, l := range doc.Languages {
		if l.ID == "" || l.Piston.Language == "" {
			return nil, fmt.Errorf("runtime: language %q has no id or piston language", l.Label)
		}
		if _, dup := r.byID[l.ID]; dup {
			return nil, fmt.Errorf("runtime: duplicate language %q", l.ID)
		}
		r.byID[l.ID] = len(r.languages)
		r.languages = append(r.languages, l)
	}
	return r, nil
}

func (r *Registry) Get(id string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[id]
	if !ok {
		return Language{}, false
	}
	return r.languages[i], true
}

// List returns a copy of every language in file order.
func (r *Registry) List() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.languages)
}

// Sync moves every language to the newest version Piston reports for it.
// On error the registry is left unchanged.
func (r *Registry) Sync(ctx context.Context, src RuntimeLister) error {
	runtimes, err := src.Runtimes(ctx)
	if err != nil {
		return fmt.Errorf("runtime: listing piston runtimes: %w", err)
	}

	latest := make(map[string]string)
	for _, rt := range runtimes {
		if cur, ok := latest[rt.Language]; !ok || CompareVersions(rt.Version, cur) > 0 {
			latest[rt.Language] = rt.Version
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for i := range r.languages {
		l := &r.languages[i]
		v, ok := latest[l.Piston.Language]
		if !ok || v == l.Piston.Version {
			continue
		}
		r.logger.Info("language runtime updated",
			slog.String("language", l.ID),
			slog.String("from", l.Piston.Version),
			slog.String("to", v),
		)
		l.Piston.Version = v
		updated++
	}
	r.logger.Debug("runtime sync finished", slog.Int("updated", updated))
	return nil
}

// CompareVersions compares dotted numeric versions. Missing or non-numeric
// parts count as zero, so "1.2" equals "1.2.0".
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := range max(len(pa), len(pb)) {
		if c := versionPart(pa, i) - versionPart(pb, i); c != 0 {
			if c > 0 {
				return 1
			}
			return -1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
