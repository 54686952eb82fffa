// Package scene tracks which entities belong to which loaded map, keeps the
// unique-id index and owns the spawner (prefab) registry.
package scene

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/plugin"
)

// MapState is the lifecycle state of one map path.
type MapState uint8

const (
	MapNotLoaded MapState = iota
	MapLoading
	MapLoaded
	MapUnloading
)

func (s MapState) String() string {
	switch s {
	case MapLoading:
		return "loading"
	case MapLoaded:
		return "loaded"
	case MapUnloading:
		return "unloading"
	default:
		return "not-loaded"
	}
}

type Config struct {
	DataPaths  []string
	NewEncoder EncoderFunc
	// NewUniqueID generates the unique id of a fresh MapComponent. Defaults to
	// a random UUID.
	NewUniqueID func() string
}

// NewFactory returns the built-in factory for the map system.
func NewFactory(cfg Config) plugin.Factory {
	return &plugin.FuncFactory{
		FactoryName:        "MapSystem",
		ComponentType:      TypeMap,
		FactoryDescription: "map membership, unique ids and spawners",
		FactoryVersion:     "1.0.0",
		New: func(m *entity.Manager) (entity.EntitySystem, error) {
			return NewMapSystem(m, cfg), nil
		},
	}
}

// MapSystem is the EntitySystem for MapComponent. All state is owned by the
// tick thread.
type MapSystem struct {
	*entity.DefaultSystem[*MapComponent]

	manager    *entity.Manager
	logger     log.Log
	dataPaths  DataPaths
	newEncoder EncoderFunc
	encoder    MapEncoder
	newUID     func() string

	maps         map[string]MapState
	byUniqueID   map[string]ids.EntityID
	spawners     map[string]*Spawner
	currentScene string

	spawnFunctor  *bus.Functor
	deleteFunctor *bus.Functor
}

func NewMapSystem(m *entity.Manager, cfg Config) *MapSystem {
	s := &MapSystem{
		manager:    m,
		logger:     m.Logger().With(log.String("system", "map")),
		dataPaths:  DataPaths(cfg.DataPaths),
		newEncoder: cfg.NewEncoder,
		encoder:    noEncoder{},
		newUID:     cfg.NewUniqueID,
		maps:       make(map[string]MapState),
		byUniqueID: make(map[string]ids.EntityID),
		spawners:   make(map[string]*Spawner),
	}
	if s.newUID == nil {
		s.newUID = uuid.NewString
	}
	s.DefaultSystem = entity.NewDefaultSystem(TypeMap, func() *MapComponent { return newMapComponent(s) })
	s.spawnFunctor = bus.NewFunctor(s.onSpawnEntity)
	s.deleteFunctor = bus.NewFunctor(s.onDeleteEntity)
	return s
}

func (s *MapSystem) OnAddedToEntityManager(m *entity.Manager) error {
	if err := s.DefaultSystem.OnAddedToEntityManager(m); err != nil {
		return err
	}
	if s.newEncoder != nil {
		s.encoder = s.newEncoder(m, s)
	}
	if err := m.RegisterForMessages(messages.TypeSpawnEntity, s.spawnFunctor, bus.OrderDefault, "MapSystem.onSpawnEntity"); err != nil {
		return err
	}
	return m.RegisterForMessages(messages.TypeDeleteEntity, s.deleteFunctor, bus.OrderDefault, "MapSystem.onDeleteEntity")
}

func (s *MapSystem) OnRemovedFromEntityManager(m *entity.Manager) {
	m.UnregisterForMessages(messages.TypeSpawnEntity, s.spawnFunctor)
	m.UnregisterForMessages(messages.TypeDeleteEntity, s.deleteFunctor)
	s.DefaultSystem.OnRemovedFromEntityManager(m)
}

// SetEncoder replaces the map encoder.
func (s *MapSystem) SetEncoder(enc MapEncoder) {
	s.encoder = enc
}

func (s *MapSystem) Encoder() MapEncoder {
	return s.encoder
}

func (s *MapSystem) DataPaths() DataPaths {
	return s.dataPaths
}

func (s *MapSystem) CreateComponent(e entity.Entity) (entity.Component, error) {
	c, err := s.Create(e)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create builds the component, then validates its unique id. A duplicate
// unique id undoes the creation and leaves no trace in the index or store.
func (s *MapSystem) Create(e entity.Entity) (*MapComponent, error) {
	c, err := s.DefaultSystem.Create(e)
	if err != nil {
		return nil, err
	}
	uid := c.uniqueID
	if uid == "" {
		return c, nil
	}
	if _, taken := s.byUniqueID[uid]; taken {
		s.logger.Error("entity with this unique id already exists",
			log.String("unique_id", uid), log.Uint64("entity", uint64(e.ID())))
		c.system = nil
		_ = s.DefaultSystem.DeleteComponent(e.ID())
		return nil, errors.Wrapf(ErrDuplicateUniqueID, "%q", uid)
	}
	s.byUniqueID[uid] = e.ID()
	return c, nil
}

// DeleteComponent drops the index entry only if it still points at id.
func (s *MapSystem) DeleteComponent(id ids.EntityID) error {
	if c, ok := s.Get(id); ok {
		if owner, ok := s.byUniqueID[c.uniqueID]; ok && owner == id {
			delete(s.byUniqueID, c.uniqueID)
		}
		c.system = nil
	}
	return s.DefaultSystem.DeleteComponent(id)
}

func (s *MapSystem) changeUniqueID(id ids.EntityID, oldID, newID string) error {
	owner, indexed := s.byUniqueID[oldID]
	if indexed && owner == id {
		if oldID == newID {
			return nil
		}
		delete(s.byUniqueID, oldID)
	}
	if newID == "" {
		return nil
	}
	if other, taken := s.byUniqueID[newID]; taken && other != id {
		s.logger.Error("an entity with this unique id already exists",
			log.String("unique_id", newID),
			log.Uint64("entity", uint64(id)),
			log.Uint64("owner", uint64(other)))
		return errors.Wrapf(ErrDuplicateUniqueID, "%q", newID)
	}
	s.byUniqueID[newID] = id
	return nil
}

// EntityIDByUniqueID resolves a unique id. ids.NoEntity and false when unknown.
func (s *MapSystem) EntityIDByUniqueID(uid string) (ids.EntityID, bool) {
	id, ok := s.byUniqueID[uid]
	return id, ok
}

func (s *MapSystem) EntityByUniqueID(uid string) (entity.Entity, bool) {
	id, ok := s.byUniqueID[uid]
	if !ok {
		return entity.Entity{}, false
	}
	e, err := s.manager.Entity(id)
	return e, err == nil
}

func (s *MapSystem) onSpawnEntity(msg bus.Message) error {
	m, ok := msg.(messages.SpawnEntityMessage)
	if !ok {
		return errors.Wrapf(entity.ErrWrongType, "spawn entity handler got %T", msg)
	}

	e := s.manager.CreateEntity()
	if err := s.Spawn(m.SpawnerName, e); err != nil {
		s.logger.Error("could not spawn entity", log.String("spawner", m.SpawnerName), log.Error(err))
		_ = s.manager.KillEntity(e.ID())
		return err
	}

	c, ok := s.Get(e.ID())
	if !ok {
		var err error
		if c, err = s.Create(e); err != nil {
			_ = s.manager.KillEntity(e.ID())
			return err
		}
	}
	c.SetSpawnerName(m.SpawnerName)
	c.SetEntityName(m.EntityName)
	if m.UniqueID != "" {
		if err := c.SetUniqueID(m.UniqueID); err != nil {
			return err
		}
	}
	if m.AddToScene {
		return s.manager.AddToScene(e.ID())
	}
	return nil
}

func (s *MapSystem) onDeleteEntity(msg bus.Message) error {
	m, ok := msg.(messages.DeleteEntityMessage)
	if !ok {
		return errors.Wrapf(entity.ErrWrongType, "delete entity handler got %T", msg)
	}
	id, found := s.byUniqueID[m.UniqueID]
	if !found {
		s.logger.Error("cannot delete: no entity with unique id", log.String("unique_id", m.UniqueID))
		return errors.Wrapf(ErrUniqueIDNotFound, "%q", m.UniqueID)
	}
	if err := s.manager.RemoveFromScene(id); err != nil {
		return err
	}
	return s.manager.KillEntity(id)
}

// emit delivers msg and logs handler failures.
func (s *MapSystem) emit(msg bus.Message) {
	if err := s.manager.EmitMessage(msg); err != nil {
		s.logger.Warn("message handler failed", log.String("message", msg.Type().String()), log.Error(err))
	}
}
