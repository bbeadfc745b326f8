// Package stagetypes loads and seeds the stage type catalog.
package stagetypes

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one stage type of a model.
type Entry struct {
	Model string `yaml:"-"`
	Value string `yaml:"value"`
	Order int    `yaml:"order"`
}

type document struct {
	Models map[string][]Entry `yaml:"models"`
}

// Default returns the embedded catalog.
func Default() ([]Entry, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a catalog and checks that every model has unique values and
// orders starting at 1. Entries come back sorted by model, then order.
func Parse(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("stagetypes: catalog is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("stagetypes: decode catalog: %w", err)
	}

	var out []Entry
	for model, entries := range doc.Models {
		model = strings.TrimSpace(model)
		values := make(map[string]struct{}, len(entries))
		orders := make(map[int]struct{}, len(entries))
		hasFirst := false
		for _, e := range entries {
			e.Model = model
			e.Value = strings.TrimSpace(e.Value)
			if e.Value == "" {
				return nil, fmt.Errorf("stagetypes: %s: empty value", model)
			}
			if e.Order < 1 {
				return nil, fmt.Errorf("stagetypes: %s/%s: order must be positive", model, e.Value)
			}
			if _, dup := values[e.Value]; dup {
				return nil, fmt.Errorf("stagetypes: %s: duplicate value %q", model, e.Value)
			}
			if _, dup := orders[e.Order]; dup {
				return nil, fmt.Errorf("stagetypes: %s: duplicate order %d", model, e.Order)
			}
			values[e.Value] = struct{}{}
			orders[e.Order] = struct{}{}
			hasFirst = hasFirst || e.Order == 1
			out = append(out, e)
		}
		if len(entries) > 0 && !hasFirst {
			return nil, fmt.Errorf("stagetypes: %s: no entry with order 1", model)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}
