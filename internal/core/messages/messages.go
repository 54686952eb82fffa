// Package messages is the bus-level message catalog. Every message is an
// immutable struct; Factory rebuilds any of them from a type and a property map.
package messages

import (
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// Message type tags.
var (
	TypeTick                   = ids.SID("TickMessage")
	TypeSpawnEntity            = ids.SID("SpawnEntityMessage")
	TypeDeleteEntity           = ids.SID("DeleteEntityMessage")
	TypeMapBeginLoad           = ids.SID("MapBeginLoadMessage")
	TypeMapLoaded              = ids.SID("MapLoadedMessage")
	TypeMapBeginUnload         = ids.SID("MapBeginUnloadMessage")
	TypeMapUnloaded            = ids.SID("MapUnloadedMessage")
	TypeSceneLoaded            = ids.SID("SceneLoadedMessage")
	TypeSceneUnloaded          = ids.SID("SceneUnloadedMessage")
	TypeSpawnerAdded           = ids.SID("SpawnerAddedMessage")
	TypeSpawnerRemoved         = ids.SID("SpawnerRemovedMessage")
	TypeEntityAddedToScene     = ids.SID("EntityAddedToSceneMessage")
	TypeEntityRemovedFromScene = ids.SID("EntityRemovedFromSceneMessage")
	TypeEntityKilled           = ids.SID("EntityKilledMessage")
	TypeEntitySystemAdded      = ids.SID("EntitySystemAddedMessage")
	TypeEntitySystemRemoved    = ids.SID("EntitySystemRemovedMessage")
	TypePeerConnected          = ids.SID("PeerConnectedMessage")
	TypePeerDisconnected       = ids.SID("PeerDisconnectedMessage")
)

// Property names used by catalog messages.
var (
	PropDeltaSeconds   = ids.SID("DeltaSeconds")
	PropSimulationTime = ids.SID("SimulationTime")
	PropFrame          = ids.SID("Frame")
	PropSpawnerName    = ids.SID("SpawnerName")
	PropUniqueID       = ids.SID("UniqueId")
	PropEntityName     = ids.SID("EntityName")
	PropAddToScene     = ids.SID("AddToScene")
	PropMapPath        = ids.SID("MapPath")
	PropSceneName      = ids.SID("SceneName")
	PropName           = ids.SID("Name")
	PropParentName     = ids.SID("ParentName")
	PropMapName        = ids.SID("MapName")
	PropCategory       = ids.SID("Category")
	PropAboutEntity    = ids.SID("AboutEntity")
	PropComponentType  = ids.SID("ComponentType")
	PropPeerID         = ids.SID("PeerId")
	PropAddress        = ids.SID("Address")
)

// TickMessage is emitted once per frame by the host.
type TickMessage struct {
	DeltaSeconds   float64
	SimulationTime float64
	Frame          uint64
}

func (TickMessage) Type() ids.StringID { return TypeTick }

func (m TickMessage) Properties() property.Map {
	return property.Map{
		PropDeltaSeconds:   property.Float(m.DeltaSeconds),
		PropSimulationTime: property.Float(m.SimulationTime),
		PropFrame:          property.Uint(m.Frame),
	}
}

// SpawnEntityMessage asks the map system to create an entity from a spawner.
type SpawnEntityMessage struct {
	SpawnerName string
	UniqueID    string
	EntityName  string
	AddToScene  bool
}

func (SpawnEntityMessage) Type() ids.StringID { return TypeSpawnEntity }

func (m SpawnEntityMessage) Properties() property.Map {
	return property.Map{
		PropSpawnerName: property.String(m.SpawnerName),
		PropUniqueID:    property.String(m.UniqueID),
		PropEntityName:  property.String(m.EntityName),
		PropAddToScene:  property.Bool(m.AddToScene),
	}
}

// DeleteEntityMessage asks the map system to remove and kill the entity with
// the given unique id.
type DeleteEntityMessage struct {
	UniqueID string
}

func (DeleteEntityMessage) Type() ids.StringID { return TypeDeleteEntity }

func (m DeleteEntityMessage) Properties() property.Map {
	return property.Map{PropUniqueID: property.String(m.UniqueID)}
}

type MapBeginLoadMessage struct {
	MapPath string
}

func (MapBeginLoadMessage) Type() ids.StringID { return TypeMapBeginLoad }

func (m MapBeginLoadMessage) Properties() property.Map {
	return property.Map{PropMapPath: property.String(m.MapPath)}
}

type MapLoadedMessage struct {
	MapPath string
}

func (MapLoadedMessage) Type() ids.StringID { return TypeMapLoaded }

func (m MapLoadedMessage) Properties() property.Map {
	return property.Map{PropMapPath: property.String(m.MapPath)}
}

type MapBeginUnloadMessage struct {
	MapPath string
}

func (MapBeginUnloadMessage) Type() ids.StringID { return TypeMapBeginUnload }

func (m MapBeginUnloadMessage) Properties() property.Map {
	return property.Map{PropMapPath: property.String(m.MapPath)}
}

type MapUnloadedMessage struct {
	MapPath string
}

func (MapUnloadedMessage) Type() ids.StringID { return TypeMapUnloaded }

func (m MapUnloadedMessage) Properties() property.Map {
	return property.Map{PropMapPath: property.String(m.MapPath)}
}

type SceneLoadedMessage struct {
	SceneName string
}

func (SceneLoadedMessage) Type() ids.StringID { return TypeSceneLoaded }

func (m SceneLoadedMessage) Properties() property.Map {
	return property.Map{PropSceneName: property.String(m.SceneName)}
}

type SceneUnloadedMessage struct {
	SceneName string
}

func (SceneUnloadedMessage) Type() ids.StringID { return TypeSceneUnloaded }

func (m SceneUnloadedMessage) Properties() property.Map {
	return property.Map{PropSceneName: property.String(m.SceneName)}
}

// SpawnerAddedMessage announces a new spawner. ParentName is empty for roots.
type SpawnerAddedMessage struct {
	Name       string
	ParentName string
	MapName    string
	Category   string
}

func (SpawnerAddedMessage) Type() ids.StringID { return TypeSpawnerAdded }

func (m SpawnerAddedMessage) Properties() property.Map {
	return spawnerProps(m.Name, m.ParentName, m.MapName, m.Category)
}

// SpawnerRemovedMessage is emitted before the spawner is erased.
type SpawnerRemovedMessage struct {
	Name       string
	ParentName string
	MapName    string
	Category   string
}

func (SpawnerRemovedMessage) Type() ids.StringID { return TypeSpawnerRemoved }

func (m SpawnerRemovedMessage) Properties() property.Map {
	return spawnerProps(m.Name, m.ParentName, m.MapName, m.Category)
}

func spawnerProps(name, parent, mapName, category string) property.Map {
	return property.Map{
		PropName:       property.String(name),
		PropParentName: property.String(parent),
		PropMapName:    property.String(mapName),
		PropCategory:   property.String(category),
	}
}

type EntityAddedToSceneMessage struct {
	AboutEntity ids.EntityID
}

func (EntityAddedToSceneMessage) Type() ids.StringID { return TypeEntityAddedToScene }

func (m EntityAddedToSceneMessage) Properties() property.Map {
	return property.Map{PropAboutEntity: property.Uint(uint64(m.AboutEntity))}
}

type EntityRemovedFromSceneMessage struct {
	AboutEntity ids.EntityID
}

func (EntityRemovedFromSceneMessage) Type() ids.StringID { return TypeEntityRemovedFromScene }

func (m EntityRemovedFromSceneMessage) Properties() property.Map {
	return property.Map{PropAboutEntity: property.Uint(uint64(m.AboutEntity))}
}

// EntityKilledMessage is emitted after every component of the entity is gone.
type EntityKilledMessage struct {
	AboutEntity ids.EntityID
}

func (EntityKilledMessage) Type() ids.StringID { return TypeEntityKilled }

func (m EntityKilledMessage) Properties() property.Map {
	return property.Map{PropAboutEntity: property.Uint(uint64(m.AboutEntity))}
}

type EntitySystemAddedMessage struct {
	ComponentType ids.StringID
}

func (EntitySystemAddedMessage) Type() ids.StringID { return TypeEntitySystemAdded }

func (m EntitySystemAddedMessage) Properties() property.Map {
	return property.Map{PropComponentType: property.StringIDValue(m.ComponentType)}
}

type EntitySystemRemovedMessage struct {
	ComponentType ids.StringID
}

func (EntitySystemRemovedMessage) Type() ids.StringID { return TypeEntitySystemRemoved }

func (m EntitySystemRemovedMessage) Properties() property.Map {
	return property.Map{PropComponentType: property.StringIDValue(m.ComponentType)}
}

// PeerConnectedMessage is emitted by the network bridge when a transport peer appears.
type PeerConnectedMessage struct {
	PeerID  string
	Address string
}

func (PeerConnectedMessage) Type() ids.StringID { return TypePeerConnected }

func (m PeerConnectedMessage) Properties() property.Map {
	return property.Map{
		PropPeerID:  property.String(m.PeerID),
		PropAddress: property.String(m.Address),
	}
}

type PeerDisconnectedMessage struct {
	PeerID  string
	Address string
}

func (PeerDisconnectedMessage) Type() ids.StringID { return TypePeerDisconnected }

func (m PeerDisconnectedMessage) Properties() property.Map {
	return property.Map{
		PropPeerID:  property.String(m.PeerID),
		PropAddress: property.String(m.Address),
	}
}
