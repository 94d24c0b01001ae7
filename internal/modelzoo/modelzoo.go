// internal/modelzoo/modelzoo.go
// Package modelzoo holds the catalog of pretrained transformer models the
// harness knows how to benchmark.
package modelzoo

import "sort"

// Model describes one pretrained model: the ordered candidate input names,
// the export opset version, and the optimization family tag the graph
// optimizer needs.
type Model struct {
	Name         string   `json:"name"`
	InputNames   []string `json:"inputNames"`
	OpsetVersion int      `json:"opsetVersion"`
	Family       string   `json:"family"`
	NumHeads     int      `json:"numHeads,omitempty"`
	HiddenSize   int      `json:"hiddenSize,omitempty"`
}

// DefaultModels is benchmarked when the user selects no models explicitly.
var DefaultModels = []string{"bert-base-cased", "distilbert-base-uncased", "roberta-base", "gpt2"}

var builtin = map[string]Model{
	"bert-base-cased": {
		Name:         "bert-base-cased",
		InputNames:   []string{"input_ids", "attention_mask", "token_type_ids"},
		OpsetVersion: 11,
		Family:       "bert",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"distilbert-base-uncased": {
		Name:         "distilbert-base-uncased",
		InputNames:   []string{"input_ids", "attention_mask"},
		OpsetVersion: 11,
		Family:       "bert",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"roberta-base": {
		Name:         "roberta-base",
		InputNames:   []string{"input_ids", "attention_mask"},
		OpsetVersion: 11,
		Family:       "bert",
		NumHeads:     12,
		HiddenSize:   768,
	},
	// GPT-family models take token ids only (no past state).
	"gpt2": {
		Name:         "gpt2",
		InputNames:   []string{"input_ids"},
		OpsetVersion: 11,
		Family:       "gpt2",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"distilgpt2": {
		Name:         "distilgpt2",
		InputNames:   []string{"input_ids"},
		OpsetVersion: 11,
		Family:       "gpt2",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"openai-gpt": {
		Name:         "openai-gpt",
		InputNames:   []string{"input_ids"},
		OpsetVersion: 11,
		Family:       "gpt2",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"albert-base-v2": {
		Name:         "albert-base-v2",
		InputNames:   []string{"input_ids"},
		OpsetVersion: 12,
		Family:       "bert",
		NumHeads:     12,
		HiddenSize:   768,
	},
	"xlnet-base-cased": {
		Name:         "xlnet-base-cased",
		InputNames:   []string{"input_ids"},
		OpsetVersion: 12,
		Family:       "bert",
		NumHeads:     12,
		HiddenSize:   768,
	},
}

// Catalog is the active model set: the builtin catalog plus any registry
// entries merged in via LoadRegistry.
type Catalog struct {
	models map[string]Model
}

// NewCatalog returns a catalog seeded with the builtin models.
func NewCatalog() *Catalog {
	models := make(map[string]Model, len(builtin))
	for name, model := range builtin {
		models[name] = model
	}
	return &Catalog{models: models}
}

// Lookup returns the model description for name.
func (c *Catalog) Lookup(name string) (Model, bool) {
	model, ok := c.models[name]
	return model, ok
}

// Names returns the catalog's model names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// add merges a model into the catalog, replacing a builtin of the same name.
func (c *Catalog) add(model Model) {
	c.models[model.Name] = model
}
