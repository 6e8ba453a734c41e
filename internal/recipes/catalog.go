// Package recipes provides the immutable catalog of persona templates used to
// seed new agent workspaces.
//
// The shipped recipes are embedded from recipes.yaml and parsed once. A
// Catalog has no mutation path, so it is safe for any number of concurrent
// readers.
package recipes

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Hazard-House/openclaw/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed recipes.yaml
var embedded []byte

// Catalog is a read-only set of recipes keyed by id.
type Catalog struct {
	ordered []models.Recipe
	byID    map[string]int
}

type document struct {
	Recipes []models.Recipe `yaml:"recipes"`
}

// Load parses a YAML recipe document. Ids must be present and unique, and
// every recipe needs persona and behavior text.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse recipes: %w", err)
	}
	if len(doc.Recipes) == 0 {
		return nil, errors.New("parse recipes: no recipes defined")
	}

	c := &Catalog{
		ordered: make([]models.Recipe, 0, len(doc.Recipes)),
		byID:    make(map[string]int, len(doc.Recipes)),
	}
	for i, r := range doc.Recipes {
		r.ID = strings.TrimSpace(r.ID)
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("recipe %d: missing id", i)
		case strings.TrimSpace(r.Soul) == "":
			return nil, fmt.Errorf("recipe %q: missing soul", r.ID)
		case strings.TrimSpace(r.Agents) == "":
			return nil, fmt.Errorf("recipe %q: missing agents", r.ID)
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("recipe %q: duplicate id", r.ID)
		}
		c.byID[r.ID] = len(c.ordered)
		c.ordered = append(c.ordered, r)
	}
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Load(embedded)
	if err != nil {
		panic("recipes: embedded catalog is invalid: " + err.Error())
	}
	return c
})

// Default returns the catalog built from the embedded recipes.
func Default() *Catalog {
	return defaultCatalog()
}

// List returns every recipe in declaration order.
func (c *Catalog) List() []models.Recipe {
	out := make([]models.Recipe, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Summaries returns the public listing of every recipe.
func (c *Catalog) Summaries() []models.RecipeSummary {
	out := make([]models.RecipeSummary, len(c.ordered))
	for i, r := range c.ordered {
		out[i] = r.Summary()
	}
	return out
}

// Get looks up a recipe by id.
func (c *Catalog) Get(id string) (models.Recipe, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Recipe{}, false
	}
	return c.ordered[i], true
}

// IDs returns every recipe id in declaration order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.ordered))
	for i, r := range c.ordered {
		ids[i] = r.ID
	}
	return ids
}
