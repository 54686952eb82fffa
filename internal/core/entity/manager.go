// Package entity holds the entity registry and the component-system contracts.
package entity

import (
	stderrors "errors"
	"sort"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
)

// Manager owns every entity and one EntitySystem per component type. It is
// not safe for concurrent use; it lives on the tick thread with the bus.
type Manager struct {
	bus    *bus.Bus
	base   log.Log
	logger log.Log

	systems     map[ids.StringID]EntitySystem
	systemOrder []ids.StringID

	entities map[ids.EntityID]struct{}
	inScene  map[ids.EntityID]struct{}
	lastID   ids.EntityID
}

func NewManager(b *bus.Bus, logger log.Log) *Manager {
	return &Manager{
		bus:      b,
		base:     logger,
		logger:   logger.With(log.String("system", "entity")),
		systems:  make(map[ids.StringID]EntitySystem),
		entities: make(map[ids.EntityID]struct{}),
		inScene:  make(map[ids.EntityID]struct{}),
	}
}

func (m *Manager) Bus() *bus.Bus {
	return m.bus
}

// Logger returns the logger the manager was built with, unscoped, so systems
// can add their own fields.
func (m *Manager) Logger() log.Log {
	return m.base
}

// CreateEntity allocates a fresh id. Ids are never reused within a manager.
func (m *Manager) CreateEntity() Entity {
	m.lastID++
	m.entities[m.lastID] = struct{}{}
	return Entity{id: m.lastID, manager: m}
}

func (m *Manager) EntityExists(id ids.EntityID) bool {
	_, ok := m.entities[id]
	return ok
}

// Entity returns the handle for a live id.
func (m *Manager) Entity(id ids.EntityID) (Entity, error) {
	if !m.EntityExists(id) {
		return Entity{}, errors.Wrapf(ErrEntityNotFound, "entity %s", id)
	}
	return Entity{id: id, manager: m}, nil
}

func (m *Manager) EntityCount() int {
	return len(m.entities)
}

// Entities lists live ids, ascending.
func (m *Manager) Entities() []ids.EntityID {
	return sortedIDs(m.entities)
}

// KillEntity deletes the entity's component from every system, then
// invalidates the id and emits EntityKilledMessage. Callers remove the entity
// from the scene first; a kill of an in-scene entity is logged and the entity
// is removed from the scene before its components go.
func (m *Manager) KillEntity(id ids.EntityID) error {
	if !m.EntityExists(id) {
		return errors.Wrapf(ErrEntityNotFound, "kill entity %s", id)
	}

	var all error
	if m.IsInScene(id) {
		m.logger.Warn("killing entity still in scene", log.Uint64("entity", uint64(id)))
		all = stderrors.Join(all, m.RemoveFromScene(id))
	}

	for _, t := range m.systemOrder {
		sys := m.systems[t]
		if !sys.HasComponent(id) {
			continue
		}
		if err := sys.DeleteComponent(id); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	delete(m.entities, id)

	if err := m.bus.EmitMessage(messages.EntityKilledMessage{AboutEntity: id}); err != nil {
		all = stderrors.Join(all, err)
	}
	return all
}

// AddToScene marks the entity as taking part in update traversal. Adding an
// entity already in the scene is a no-op.
func (m *Manager) AddToScene(id ids.EntityID) error {
	if !m.EntityExists(id) {
		return errors.Wrapf(ErrEntityNotFound, "add entity %s to scene", id)
	}
	if _, ok := m.inScene[id]; ok {
		return nil
	}
	m.inScene[id] = struct{}{}
	return m.bus.EmitMessage(messages.EntityAddedToSceneMessage{AboutEntity: id})
}

func (m *Manager) RemoveFromScene(id ids.EntityID) error {
	if !m.EntityExists(id) {
		return errors.Wrapf(ErrEntityNotFound, "remove entity %s from scene", id)
	}
	if _, ok := m.inScene[id]; !ok {
		return nil
	}
	delete(m.inScene, id)
	return m.bus.EmitMessage(messages.EntityRemovedFromSceneMessage{AboutEntity: id})
}

func (m *Manager) IsInScene(id ids.EntityID) bool {
	_, ok := m.inScene[id]
	return ok
}

// SceneEntities lists in-scene ids, ascending.
func (m *Manager) SceneEntities() []ids.EntityID {
	return sortedIDs(m.inScene)
}

// AddEntitySystem registers sys for its component type.
func (m *Manager) AddEntitySystem(sys EntitySystem) error {
	t := sys.ComponentType()
	if _, ok := m.systems[t]; ok {
		return errors.Wrapf(ErrSystemExists, "%s", t)
	}
	if err := sys.OnAddedToEntityManager(m); err != nil {
		return errors.Wrapf(err, "add entity system %s", t)
	}
	m.systems[t] = sys
	m.systemOrder = append(m.systemOrder, t)
	m.logger.Debug("entity system added", log.String("type", t.String()))
	return m.bus.EmitMessage(messages.EntitySystemAddedMessage{ComponentType: t})
}

// RemoveEntitySystem unregisters the system for componentType. Its components
// go with it.
func (m *Manager) RemoveEntitySystem(componentType ids.StringID) error {
	sys, ok := m.systems[componentType]
	if !ok {
		return errors.Wrapf(ErrNoSystem, "%s", componentType)
	}
	sys.OnRemovedFromEntityManager(m)
	delete(m.systems, componentType)
	for i, t := range m.systemOrder {
		if t == componentType {
			m.systemOrder = append(m.systemOrder[:i:i], m.systemOrder[i+1:]...)
			break
		}
	}
	m.logger.Debug("entity system removed", log.String("type", componentType.String()))
	return m.bus.EmitMessage(messages.EntitySystemRemovedMessage{ComponentType: componentType})
}

func (m *Manager) HasEntitySystem(componentType ids.StringID) bool {
	_, ok := m.systems[componentType]
	return ok
}

func (m *Manager) GetEntitySystem(componentType ids.StringID) (EntitySystem, error) {
	sys, ok := m.systems[componentType]
	if !ok {
		return nil, errors.Wrapf(ErrNoSystem, "%s", componentType)
	}
	return sys, nil
}

// EntitySystems lists systems in registration order.
func (m *Manager) EntitySystems() []EntitySystem {
	out := make([]EntitySystem, 0, len(m.systemOrder))
	for _, t := range m.systemOrder {
		out = append(out, m.systems[t])
	}
	return out
}

// CreateComponent delegates to the system registered for componentType.
func (m *Manager) CreateComponent(id ids.EntityID, componentType ids.StringID) (Component, error) {
	e, err := m.Entity(id)
	if err != nil {
		return nil, err
	}
	sys, err := m.GetEntitySystem(componentType)
	if err != nil {
		return nil, err
	}
	return sys.CreateComponent(e)
}

func (m *Manager) GetComponent(id ids.EntityID, componentType ids.StringID) (Component, error) {
	sys, err := m.GetEntitySystem(componentType)
	if err != nil {
		return nil, err
	}
	c, ok := sys.GetComponent(id)
	if !ok {
		return nil, errors.Wrapf(ErrComponentNotFound, "%s on entity %s", componentType, id)
	}
	return c, nil
}

func (m *Manager) HasComponent(id ids.EntityID, componentType ids.StringID) bool {
	sys, ok := m.systems[componentType]
	return ok && sys.HasComponent(id)
}

func (m *Manager) DeleteComponent(id ids.EntityID, componentType ids.StringID) error {
	sys, err := m.GetEntitySystem(componentType)
	if err != nil {
		return err
	}
	return sys.DeleteComponent(id)
}

// Components returns every component the entity holds, in system
// registration order.
func (m *Manager) Components(id ids.EntityID) []Component {
	var out []Component
	for _, t := range m.systemOrder {
		if c, ok := m.systems[t].GetComponent(id); ok {
			out = append(out, c)
		}
	}
	return out
}

func (m *Manager) RegisterForMessages(msgType ids.StringID, f *bus.Functor, order bus.Order, debugName string) error {
	return m.bus.RegisterForMessages(msgType, f, order, debugName)
}

func (m *Manager) UnregisterForMessages(msgType ids.StringID, f *bus.Functor) bool {
	return m.bus.UnregisterForMessages(msgType, f)
}

func (m *Manager) EmitMessage(msg bus.Message) error {
	return m.bus.EmitMessage(msg)
}

// GetComponentAs fetches a component and asserts its concrete type. A failed
// assertion is a programmer error and reported as ErrWrongType.
func GetComponentAs[C Component](m *Manager, id ids.EntityID, componentType ids.StringID) (C, error) {
	var zero C
	c, err := m.GetComponent(id, componentType)
	if err != nil {
		return zero, err
	}
	typed, ok := c.(C)
	if !ok {
		return zero, errors.Wrapf(ErrWrongType, "%s on entity %s is %T", componentType, id, c)
	}
	return typed, nil
}

// SystemAs fetches a system and asserts its concrete type.
func SystemAs[S EntitySystem](m *Manager, componentType ids.StringID) (S, error) {
	var zero S
	sys, err := m.GetEntitySystem(componentType)
	if err != nil {
		return zero, err
	}
	typed, ok := sys.(S)
	if !ok {
		return zero, errors.Wrapf(ErrWrongType, "system %s is %T", componentType, sys)
	}
	return typed, nil
}

func sortedIDs(set map[ids.EntityID]struct{}) []ids.EntityID {
	out := make([]ids.EntityID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
