// Package catalog loads and serves the pre-authored refinement problems.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/passplay/internal/model"
)

//go:embed data/problems.yaml
var defaultCatalogYAML []byte

// Catalog is an ordered, read-only set of problems.
type Catalog struct {
	keys     []string
	problems map[string]model.Problem
}

type fileDocument struct {
	Problems []fileProblem `yaml:"problems"`
}

type fileProblem struct {
	Key         string     `yaml:"key"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Passes      []filePass `yaml:"passes"`
}

type filePass struct {
	Output      string `yaml:"output"`
	Critique    string `yaml:"critique"`
	Clarity     int    `yaml:"clarity"`
	Correctness int    `yaml:"correctness"`
	Structure   int    `yaml:"structure"`
	Errors      int    `yaml:"errors"`
}

// Empty returns a catalog with no problems.
func Empty() *Catalog {
	return &Catalog{problems: map[string]model.Problem{}}
}

// New builds a catalog from problems, validating each one and keeping their order.
func New(problems []model.Problem) (*Catalog, error) {
	c := Empty()
	for i, p := range problems {
		if err := validateProblem(p); err != nil {
			return nil, fmt.Errorf("problem %d: %w", i, err)
		}
		if _, ok := c.problems[p.Key]; ok {
			return nil, fmt.Errorf("duplicate problem key %q", p.Key)
		}
		c.keys = append(c.keys, p.Key)
		c.problems[p.Key] = cloneProblem(p)
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic("catalog: embedded problems are invalid: " + err.Error())
	}
	return c
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("catalog document is empty")
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	problems := make([]model.Problem, 0, len(doc.Problems))
	for _, fp := range doc.Problems {
		p := model.Problem{
			Key:         strings.TrimSpace(fp.Key),
			Title:       fp.Title,
			Description: fp.Description,
			Passes:      make([]model.Pass, 0, len(fp.Passes)),
		}
		for _, pass := range fp.Passes {
			p.Passes = append(p.Passes, model.Pass{
				Output:   pass.Output,
				Critique: pass.Critique,
				Scores: model.Scores{
					Clarity:     pass.Clarity,
					Correctness: pass.Correctness,
					Structure:   pass.Structure,
				},
				Errors: pass.Errors,
			})
		}
		problems = append(problems, p)
	}
	return New(problems)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadOrEmpty loads a catalog file and falls back to an empty catalog on failure.
// An empty path selects the built-in catalog.
func LoadOrEmpty(path string, logger *slog.Logger) *Catalog {
	if path == "" {
		return Default()
	}
	c, err := LoadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("catalog unavailable, continuing with no problems", "path", path, "error", err)
		}
		return Empty()
	}
	return c
}

// Marshal encodes the catalog back into its YAML document form.
func Marshal(c *Catalog) ([]byte, error) {
	doc := fileDocument{Problems: make([]fileProblem, 0, c.Len())}
	for _, p := range c.Problems() {
		fp := fileProblem{Key: p.Key, Title: p.Title, Description: p.Description}
		for _, pass := range p.Passes {
			fp.Passes = append(fp.Passes, filePass{
				Output:      pass.Output,
				Critique:    pass.Critique,
				Clarity:     pass.Scores.Clarity,
				Correctness: pass.Scores.Correctness,
				Structure:   pass.Scores.Structure,
				Errors:      pass.Errors,
			})
		}
		doc.Problems = append(doc.Problems, fp)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// Problem returns the problem stored under key.
func (c *Catalog) Problem(key string) (model.Problem, bool) {
	if c == nil {
		return model.Problem{}, false
	}
	p, ok := c.problems[key]
	return p, ok
}

// Keys returns problem keys in catalog order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Problems returns all problems in catalog order.
func (c *Catalog) Problems() []model.Problem {
	if c == nil {
		return nil
	}
	out := make([]model.Problem, 0, len(c.keys))
	for _, key := range c.keys {
		out = append(out, c.problems[key])
	}
	return out
}

// Len returns the number of problems.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// NextKey returns the key following key in catalog order, wrapping around.
func (c *Catalog) NextKey(key string) string {
	if c.Len() == 0 {
		return ""
	}
	for i, k := range c.keys {
		if k == key {
			return c.keys[(i+1)%len(c.keys)]
		}
	}
	return c.keys[0]
}

func validateProblem(p model.Problem) error {
	if p.Key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if len(p.Passes) == 0 {
		return fmt.Errorf("%s: at least one pass is required", p.Key)
	}
	for i, pass := range p.Passes {
		for _, score := range []struct {
			name  string
			value int
		}{
			{"clarity", pass.Scores.Clarity},
			{"correctness", pass.Scores.Correctness},
			{"structure", pass.Scores.Structure},
		} {
			if score.value < 0 || score.value > 100 {
				return fmt.Errorf("%s pass %d: %s must be between 0 and 100", p.Key, i+1, score.name)
			}
		}
		if pass.Errors < 0 {
			return fmt.Errorf("%s pass %d: errors must be >= 0", p.Key, i+1)
		}
	}
	return nil
}

func cloneProblem(p model.Problem) model.Problem {
	p.Passes = append([]model.Pass(nil), p.Passes...)
	return p
}
