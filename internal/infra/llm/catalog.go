package llm

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ModelSpec is one entry of the model catalog.
type ModelSpec struct {
	ID                string   `yaml:"id" json:"id"`
	Aliases           []string `yaml:"aliases" json:"aliases,omitempty"`
	Provider          string   `yaml:"provider" json:"provider"`
	Mode              Mode     `yaml:"mode" json:"mode"`
	MaxTokens         int      `yaml:"max_tokens" json:"maxTokens,omitempty"`
	InlineAttachments bool     `yaml:"inline_attachments" json:"inlineAttachments,omitempty"`
}

// Catalog is the fixed set of selectable models.
type Catalog struct {
	Default string      `yaml:"default"`
	Models  []ModelSpec `yaml:"models"`

	byName map[string]ModelSpec
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file; an empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm catalog: read %q: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("llm catalog: parse: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("llm catalog: no models")
	}
	c.byName = make(map[string]ModelSpec, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" || m.Provider == "" {
			return fmt.Errorf("llm catalog: entry %d needs id and provider", i)
		}
		if m.Mode == "" {
			m.Mode = ModeOneShot
			c.Models[i] = m
		}
		if m.Mode != ModeOneShot && m.Mode != ModeSession {
			return fmt.Errorf("llm catalog: model %q has unknown mode %q", m.ID, m.Mode)
		}
		for _, name := range append([]string{m.ID}, m.Aliases...) {
			key := strings.ToLower(name)
			if _, dup := c.byName[key]; dup {
				return fmt.Errorf("llm catalog: duplicate model name %q", name)
			}
			c.byName[key] = m
		}
	}
	if c.Default == "" {
		c.Default = c.Models[0].ID
	}
	if _, ok := c.Lookup(c.Default); !ok {
		return fmt.Errorf("llm catalog: default model %q is not listed", c.Default)
	}
	return nil
}

// Lookup resolves a model id or alias, case-insensitively.
func (c *Catalog) Lookup(name string) (ModelSpec, bool) {
	m, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// DefaultModel returns the spec of the catalog default.
func (c *Catalog) DefaultModel() ModelSpec {
	m, _ := c.Lookup(c.Default)
	return m
}

// Providers returns the distinct provider ids referenced by the catalog.
func (c *Catalog) Providers() []string {
	return lo.Uniq(lo.Map(c.Models, func(m ModelSpec, _ int) string { return m.Provider }))
}
