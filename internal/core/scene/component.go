package scene

import (
	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// TypeMap is the component type of MapComponent and MapSystem.
var TypeMap = ids.SID("Map")

var (
	PropEntityName          = ids.SID("EntityName")
	PropMapName             = ids.SID("MapName")
	PropSpawnerName         = ids.SID("SpawnerName")
	PropUniqueID            = ids.SID("UniqueId")
	PropSaveWithMap         = ids.SID("SaveWithMap")
	PropVisibleInEntityList = ids.SID("VisibleInEntityList")
)

// MapComponent tags an entity with the map it belongs to, the spawner that
// built it and a unique id that survives save and load.
type MapComponent struct {
	entity.BaseComponent

	// nil once the component is deleted from its system
	system *MapSystem

	entityName          string
	mapName             string
	spawnerName         string
	uniqueID            string
	saveWithMap         bool
	visibleInEntityList bool
}

func newMapComponent(s *MapSystem) *MapComponent {
	return &MapComponent{
		system:              s,
		uniqueID:            s.newUID(),
		saveWithMap:         true,
		visibleInEntityList: true,
	}
}

func (c *MapComponent) Type() ids.StringID {
	return TypeMap
}

func (c *MapComponent) Properties() property.Map {
	return property.Map{
		PropEntityName:          property.String(c.entityName),
		PropMapName:             property.String(c.mapName),
		PropSpawnerName:         property.String(c.spawnerName),
		PropUniqueID:            property.String(c.uniqueID),
		PropSaveWithMap:         property.Bool(c.saveWithMap),
		PropVisibleInEntityList: property.Bool(c.visibleInEntityList),
	}
}

func (c *MapComponent) SetProperty(name ids.StringID, v property.Value) error {
	switch name {
	case PropEntityName, PropMapName, PropSpawnerName, PropUniqueID:
		s, ok := v.Str()
		if !ok {
			return entity.PropertyError(TypeMap, name, v, property.KindString)
		}
		switch name {
		case PropEntityName:
			c.entityName = s
		case PropMapName:
			c.mapName = s
		case PropSpawnerName:
			c.spawnerName = s
		default:
			return c.SetUniqueID(s)
		}
	case PropSaveWithMap, PropVisibleInEntityList:
		b, ok := v.Bool()
		if !ok {
			return entity.PropertyError(TypeMap, name, v, property.KindBool)
		}
		if name == PropSaveWithMap {
			c.saveWithMap = b
		} else {
			c.visibleInEntityList = b
		}
	default:
		return entity.PropertyError(TypeMap, name, v, property.KindInvalid)
	}
	return nil
}

func (c *MapComponent) EntityName() string        { return c.entityName }
func (c *MapComponent) MapName() string           { return c.mapName }
func (c *MapComponent) SpawnerName() string       { return c.spawnerName }
func (c *MapComponent) UniqueID() string          { return c.uniqueID }
func (c *MapComponent) SaveWithMap() bool         { return c.saveWithMap }
func (c *MapComponent) VisibleInEntityList() bool { return c.visibleInEntityList }

func (c *MapComponent) SetEntityName(v string)        { c.entityName = v }
func (c *MapComponent) SetMapName(v string)           { c.mapName = v }
func (c *MapComponent) SetSpawnerName(v string)       { c.spawnerName = v }
func (c *MapComponent) SetSaveWithMap(v bool)         { c.saveWithMap = v }
func (c *MapComponent) SetVisibleInEntityList(v bool) { c.visibleInEntityList = v }

// SetUniqueID changes the unique id and updates the system's index. If v is
// already taken by another entity the component keeps v, the index keeps the
// other entity, and this entity is left out of the index.
func (c *MapComponent) SetUniqueID(v string) error {
	old := c.uniqueID
	c.uniqueID = v
	if c.system == nil {
		return nil
	}
	return c.system.changeUniqueID(c.Entity().ID(), old, v)
}
