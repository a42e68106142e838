package service

import (
	"fmt"

	"github.com/isntboxs/b3s-chat/internal/config"
	"github.com/isntboxs/b3s-chat/internal/domain"
)

// providerLogos maps a provider key to its logo asset. Unknown keys are a
// configuration error, caught at construction instead of at render time.
var providerLogos = map[string]string{
	"alibaba":  "https://models.dev/logos/alibaba.svg",
	"deepseek": "https://models.dev/logos/deepseek.svg",
	"google":   "https://models.dev/logos/google.svg",
	"mistral":  "https://models.dev/logos/mistral.svg",
	"moonshot": "https://models.dev/logos/moonshot.svg",
	"nvidia":   "https://models.dev/logos/nvidia.svg",
	"ollama":   "https://models.dev/logos/ollama.svg",
	"openai":   "https://models.dev/logos/openai.svg",
}

// ModelCatalog is the static list of selectable models. The selected model
// id is forwarded to the inference endpoint as an opaque string.
type ModelCatalog struct {
	models    []domain.Model
	byID      map[string]domain.Model
	defaultID string
}

// NewModelCatalog builds and validates the catalog from configuration.
func NewModelCatalog(entries []config.ModelConfig, defaultID string) (*ModelCatalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	catalog := &ModelCatalog{
		byID:      make(map[string]domain.Model, len(entries)),
		defaultID: defaultID,
	}
	for _, e := range entries {
		logo, ok := providerLogos[e.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q for model %q", e.Provider, e.ID)
		}
		if _, exists := catalog.byID[e.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", e.ID)
		}
		m := domain.Model{
			ID:          e.ID,
			DisplayName: e.DisplayName,
			Provider:    e.Provider,
			LogoURL:     logo,
		}
		catalog.models = append(catalog.models, m)
		catalog.byID[m.ID] = m
	}

	if _, ok := catalog.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q not in catalog", defaultID)
	}

	return catalog, nil
}

// List returns all models in configuration order.
func (c *ModelCatalog) List() []domain.Model {
	out := make([]domain.Model, len(c.models))
	copy(out, c.models)
	return out
}

// Get looks up a model by id.
func (c *ModelCatalog) Get(id string) (domain.Model, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Default returns the configured default model.
func (c *ModelCatalog) Default() domain.Model {
	return c.byID[c.defaultID]
}
