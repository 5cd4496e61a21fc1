package settings

import (
	"fmt"

	"github.com/OCharnyshevich/abyss/internal/server/entities"
	"github.com/OCharnyshevich/abyss/internal/server/structures"
)

// Bundle is the read-only resource provider handed to every pipeline
// component at construction.
type Bundle struct {
	Settings   *WorldGenSettings
	Templates  structures.Catalog
	Entities   []*entities.Definition
	EntityGate entities.GateConfig
}

// NewBundle derives templates and entity definitions from the authoring data
// and pairs them with resolved settings.
func NewBundle(a *Authoring, s *WorldGenSettings) (*Bundle, error) {
	if a.ChunkSize != s.ChunkSize {
		return nil, fmt.Errorf("resolved chunk size %d does not match definitions %d", s.ChunkSize, a.ChunkSize)
	}
	templates, err := Templates(a)
	if err != nil {
		return nil, fmt.Errorf("build templates: %w", err)
	}
	for _, f := range s.Features {
		if _, ok := templates[f.TemplateID]; !ok {
			return nil, fmt.Errorf("feature references unknown template %q", f.TemplateID)
		}
	}
	defs, gate := EntityDefinitions(a, s.Seed)
	return &Bundle{
		Settings:   s,
		Templates:  templates,
		Entities:   defs,
		EntityGate: gate,
	}, nil
}

// Template implements structures.Source.
func (b *Bundle) Template(id string) (*structures.Template, bool) {
	return b.Templates.Template(id)
}
