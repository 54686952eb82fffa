package scene

import (
	"sort"

	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// Spawner is a named entity template. ParentName refers to another spawner by
// name; a parent that does not exist is tolerated and simply contributes
// nothing.
type Spawner struct {
	Name        string
	ParentName  string
	MapName     string
	GUICategory string
	AddToScene  bool

	// component type -> properties applied on spawn
	Components map[ids.StringID]property.Map
}

func NewSpawner(name, mapName string) *Spawner {
	return &Spawner{
		Name:       name,
		MapName:    mapName,
		Components: make(map[ids.StringID]property.Map),
	}
}

// SetComponentProperties replaces the template for componentType.
func (s *Spawner) SetComponentProperties(componentType ids.StringID, props property.Map) {
	if s.Components == nil {
		s.Components = make(map[ids.StringID]property.Map)
	}
	s.Components[componentType] = props.Clone()
}

// ComponentTypes lists template types sorted by name.
func (s *Spawner) ComponentTypes() []ids.StringID {
	out := make([]ids.StringID, 0, len(s.Components))
	for t := range s.Components {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
