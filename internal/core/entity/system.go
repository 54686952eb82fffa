package entity

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/ids"
)

// EntitySystem owns every component of one type. It is the only place that
// creates or destroys components of that type.
type EntitySystem interface {
	ComponentType() ids.StringID

	// CreateComponent fails with ErrComponentExists, leaving the store
	// untouched, if e already has a component of this type.
	CreateComponent(e Entity) (Component, error)
	GetComponent(id ids.EntityID) (Component, bool)
	HasComponent(id ids.EntityID) bool
	DeleteComponent(id ids.EntityID) error
	Entities() []ids.EntityID

	OnAddedToEntityManager(m *Manager) error
	OnRemovedFromEntityManager(m *Manager)
}

// DefaultSystem is a map-backed EntitySystem for components built by a
// constructor. Concrete systems embed it and override what they need.
type DefaultSystem[C Component] struct {
	componentType ids.StringID
	newComponent  func() C
	components    map[ids.EntityID]C
	manager       *Manager
}

func NewDefaultSystem[C Component](componentType ids.StringID, newComponent func() C) *DefaultSystem[C] {
	return &DefaultSystem[C]{
		componentType: componentType,
		newComponent:  newComponent,
		components:    make(map[ids.EntityID]C),
	}
}

func (s *DefaultSystem[C]) ComponentType() ids.StringID {
	return s.componentType
}

// Manager returns the manager the system is registered with, or nil.
func (s *DefaultSystem[C]) Manager() *Manager {
	return s.manager
}

func (s *DefaultSystem[C]) CreateComponent(e Entity) (Component, error) {
	c, err := s.Create(e)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create is the typed form of CreateComponent.
func (s *DefaultSystem[C]) Create(e Entity) (C, error) {
	if _, ok := s.components[e.ID()]; ok {
		var zero C
		return zero, errors.Wrapf(ErrComponentExists, "%s on entity %s", s.componentType, e.ID())
	}
	c := s.newComponent()
	s.components[e.ID()] = c
	c.OnAddedToEntity(e)
	return c, nil
}

func (s *DefaultSystem[C]) GetComponent(id ids.EntityID) (Component, bool) {
	c, ok := s.components[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Get is the typed form of GetComponent.
func (s *DefaultSystem[C]) Get(id ids.EntityID) (C, bool) {
	c, ok := s.components[id]
	return c, ok
}

func (s *DefaultSystem[C]) HasComponent(id ids.EntityID) bool {
	_, ok := s.components[id]
	return ok
}

func (s *DefaultSystem[C]) DeleteComponent(id ids.EntityID) error {
	if _, ok := s.components[id]; !ok {
		return errors.Wrapf(ErrComponentNotFound, "%s on entity %s", s.componentType, id)
	}
	delete(s.components, id)
	return nil
}

// Entities returns the ids holding a component, ascending.
func (s *DefaultSystem[C]) Entities() []ids.EntityID {
	out := make([]ids.EntityID, 0, len(s.components))
	for id := range s.components {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each calls fn for every component in ascending entity order.
func (s *DefaultSystem[C]) Each(fn func(id ids.EntityID, c C)) {
	for _, id := range s.Entities() {
		fn(id, s.components[id])
	}
}

func (s *DefaultSystem[C]) Len() int {
	return len(s.components)
}

func (s *DefaultSystem[C]) OnAddedToEntityManager(m *Manager) error {
	s.manager = m
	return nil
}

func (s *DefaultSystem[C]) OnRemovedFromEntityManager(*Manager) {
	s.manager = nil
}
