package llm

import (
	"github.com/m4xw311/aide/errors"
	"github.com/m4xw311/aide/task"
)

// Capabilities are read-only facts about one model.
type Capabilities struct {
	ContextWindow     int  `json:"context_window"`
	SupportsTools     bool `json:"supports_tools"`
	SupportsVision    bool `json:"supports_vision"`
	SupportsStreaming bool `json:"supports_streaming"`
	MaxOutputTokens   int  `json:"max_output_tokens"`
}

// ModelInfo describes one discovered model. Discovery itself happens
// outside this core; the catalog only consumes its output.
type ModelInfo struct {
	ID           string       `json:"id"` // "provider:name"
	Provider     string       `json:"provider"`
	IsLocal      bool         `json:"is_local"`
	Capabilities Capabilities `json:"capabilities"`
	IsAvailable  bool         `json:"is_available"`
}

// Catalog is a read-only set of discovered models with a selection policy:
// work tasks prefer cloud models, personal tasks prefer local ones so
// their content stays on the machine.
type Catalog struct {
	models []ModelInfo
}

func NewCatalog(models []ModelInfo) *Catalog {
	return &Catalog{models: models}
}

// Models returns a copy of the catalog entries.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// SelectModel picks a model id for a task type. Preference order falls
// back to the other locality before failing, so a missing local model does
// not strand personal tasks.
func (c *Catalog) SelectModel(typ task.Type) (string, error) {
	preferLocal := typ == task.TypePersonal

	if id := c.pick(preferLocal); id != "" {
		return id, nil
	}
	if id := c.pick(!preferLocal); id != "" {
		return id, nil
	}
	return "", errors.Newk(errors.KindConfiguration, "no available tool-capable model for %s tasks", typ)
}

func (c *Catalog) pick(local bool) string {
	for _, m := range c.models {
		if m.IsAvailable && m.IsLocal == local && m.Capabilities.SupportsTools {
			return m.ID
		}
	}
	return ""
}
