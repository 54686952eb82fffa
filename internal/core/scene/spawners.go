package scene

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/property"
)

// AddSpawner registers sp under its name, replacing any spawner of that name.
func (s *MapSystem) AddSpawner(sp *Spawner) error {
	if sp == nil || sp.Name == "" {
		return ErrInvalidSpawner
	}
	s.spawners[sp.Name] = sp
	s.emit(messages.SpawnerAddedMessage{
		Name:       sp.Name,
		ParentName: sp.ParentName,
		MapName:    sp.MapName,
		Category:   sp.GUICategory,
	})
	return nil
}

// DeleteSpawner erases one spawner. Entities it spawned lose their spawner
// name; child spawners keep their now dangling parent name.
func (s *MapSystem) DeleteSpawner(name string) error {
	sp, ok := s.spawners[name]
	if !ok {
		return errors.Wrapf(ErrSpawnerNotFound, "%q", name)
	}
	s.Each(func(_ ids.EntityID, c *MapComponent) {
		if c.spawnerName == name {
			c.spawnerName = ""
		}
	})
	delete(s.spawners, name)
	s.emitSpawnerRemoved(sp)
	return nil
}

func (s *MapSystem) emitSpawnerRemoved(sp *Spawner) {
	s.emit(messages.SpawnerRemovedMessage{
		Name:       sp.Name,
		ParentName: sp.ParentName,
		MapName:    sp.MapName,
		Category:   sp.GUICategory,
	})
}

func (s *MapSystem) Spawner(name string) (*Spawner, bool) {
	sp, ok := s.spawners[name]
	return sp, ok
}

// Spawners returns every spawner sorted by name.
func (s *MapSystem) Spawners() []*Spawner {
	out := make([]*Spawner, 0, len(s.spawners))
	for _, name := range s.SpawnerNames() {
		out = append(out, s.spawners[name])
	}
	return out
}

func (s *MapSystem) SpawnerNames() []string {
	out := make([]string, 0, len(s.spawners))
	for name := range s.spawners {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Children lists the spawners whose declared parent is parentName, sorted by
// name. The empty name selects the roots. Children of a parent that does not
// exist are still grouped under its name.
func (s *MapSystem) Children(parentName string) []*Spawner {
	var out []*Spawner
	for _, name := range s.SpawnerNames() {
		if sp := s.spawners[name]; sp.ParentName == parentName {
			out = append(out, sp)
		}
	}
	return out
}

// SpawnerCreatedEntities lists entities spawned from name, ascending.
func (s *MapSystem) SpawnerCreatedEntities(name string) []ids.EntityID {
	var out []ids.EntityID
	s.Each(func(id ids.EntityID, c *MapComponent) {
		if c.spawnerName == name {
			out = append(out, id)
		}
	})
	return out
}

// deleteSpawnersOfMap sends one SpawnerRemovedMessage per spawner of mapPath,
// walking the forest depth-first from the roots so children are announced
// before their parents, then erases them. Spawners unreachable from a root
// (dangling parent or a cycle) are announced afterwards the same way.
func (s *MapSystem) deleteSpawnersOfMap(mapPath string) {
	visited := make(map[string]bool)
	var visit func(sp *Spawner)
	visit = func(sp *Spawner) {
		visited[sp.Name] = true
		for _, child := range s.Children(sp.Name) {
			if !visited[child.Name] {
				visit(child)
			}
		}
		if sp.MapName == mapPath {
			s.emitSpawnerRemoved(sp)
		}
	}

	for _, root := range s.Children("") {
		if !visited[root.Name] {
			visit(root)
		}
	}
	for _, name := range s.SpawnerNames() {
		sp, ok := s.spawners[name]
		if ok && !visited[name] && sp.MapName == mapPath {
			visit(sp)
		}
	}

	for name, sp := range s.spawners {
		if sp.MapName == mapPath {
			delete(s.spawners, name)
		}
	}
}

// Spawn applies the named spawner to an existing entity. Templates of the
// parent chain are applied first, root to leaf; a leaf property overrides the
// same property of an ancestor.
func (s *MapSystem) Spawn(name string, e entity.Entity) error {
	sp, ok := s.spawners[name]
	if !ok {
		return errors.Wrapf(ErrSpawnerNotFound, "%q", name)
	}

	// collect the chain leaf to root, stopping at a missing parent or a cycle
	chain := []*Spawner{sp}
	seen := map[string]bool{sp.Name: true}
	for cur := sp; cur.ParentName != ""; {
		parent, ok := s.spawners[cur.ParentName]
		if !ok || seen[parent.Name] {
			break
		}
		seen[parent.Name] = true
		chain = append(chain, parent)
		cur = parent
	}

	merged := make(map[ids.StringID]property.Map)
	var order []ids.StringID
	for i := len(chain) - 1; i >= 0; i-- {
		for _, t := range chain[i].ComponentTypes() {
			props, ok := merged[t]
			if !ok {
				props = property.Map{}
				merged[t] = props
				order = append(order, t)
			}
			for k, v := range chain[i].Components[t] {
				props[k] = v
			}
		}
	}
	// spawned entities get their own unique id
	if props, ok := merged[TypeMap]; ok {
		delete(props, PropUniqueID)
	}

	for _, t := range order {
		c, err := s.manager.GetComponent(e.ID(), t)
		if err != nil {
			if c, err = s.manager.CreateComponent(e.ID(), t); err != nil {
				return errors.Wrapf(err, "spawner %q", name)
			}
		}
		if err = entity.SetProperties(c, merged[t]); err != nil {
			return errors.Wrapf(err, "spawner %q", name)
		}
	}

	if mc, ok := s.Get(e.ID()); ok {
		mc.spawnerName = name
	}
	s.logger.Debug("entity spawned", log.String("spawner", name), log.Uint64("entity", uint64(e.ID())))
	return nil
}
