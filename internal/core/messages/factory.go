package messages

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

var (
	ErrUnknownMessageType = errors.New("messages: unknown message type")
	ErrBadProperty        = errors.New("messages: property has wrong kind")
)

// Constructor rebuilds a message from its properties.
type Constructor func(props property.Map) (bus.Message, error)

// Factory maps message types to constructors. Plugins may register their own
// message types next to the catalog; the factory is safe for concurrent use.
type Factory struct {
	mu    sync.RWMutex
	ctors map[ids.StringID]Constructor
}

// NewFactory returns a factory preloaded with the catalog.
func NewFactory() *Factory {
	f := &Factory{ctors: make(map[ids.StringID]Constructor)}
	registerCatalog(f)
	return f
}

// Register adds or replaces the constructor for msgType.
func (f *Factory) Register(msgType ids.StringID, ctor Constructor) {
	f.mu.Lock()
	f.ctors[msgType] = ctor
	f.mu.Unlock()
}

// Known reports whether msgType has a constructor.
func (f *Factory) Known(msgType ids.StringID) bool {
	f.mu.RLock()
	_, ok := f.ctors[msgType]
	f.mu.RUnlock()
	return ok
}

// Types lists registered message types sorted by name.
func (f *Factory) Types() []ids.StringID {
	f.mu.RLock()
	out := make([]ids.StringID, 0, len(f.ctors))
	for t := range f.ctors {
		out = append(out, t)
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// New builds a message of msgType from props. Missing properties take their
// zero value; a property of the wrong kind is an error.
func (f *Factory) New(msgType ids.StringID, props property.Map) (bus.Message, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[msgType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msgType)
	}
	return ctor(props)
}

type reader struct {
	props property.Map
	err   error
}

func (r *reader) check(name ids.StringID, v property.Value, ok bool, want property.Kind) bool {
	if ok {
		return true
	}
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s is %s, want %s", ErrBadProperty, name, v.Kind(), want)
	}
	return false
}

func (r *reader) str(name ids.StringID) string {
	v, present := r.props[name]
	if !present {
		return ""
	}
	s, ok := v.Str()
	if !r.check(name, v, ok, property.KindString) {
		return ""
	}
	return s
}

func (r *reader) boolean(name ids.StringID) bool {
	v, present := r.props[name]
	if !present {
		return false
	}
	b, ok := v.Bool()
	r.check(name, v, ok, property.KindBool)
	return b && ok
}

func (r *reader) unsigned(name ids.StringID) uint64 {
	v, present := r.props[name]
	if !present {
		return 0
	}
	n, ok := v.Uint()
	if !r.check(name, v, ok, property.KindUint) {
		return 0
	}
	return n
}

func (r *reader) float(name ids.StringID) float64 {
	v, present := r.props[name]
	if !present {
		return 0
	}
	n, ok := v.Float()
	if !r.check(name, v, ok, property.KindFloat) {
		return 0
	}
	return n
}

func (r *reader) stringID(name ids.StringID) ids.StringID {
	v, present := r.props[name]
	if !present {
		return 0
	}
	s, ok := v.StringID()
	if !r.check(name, v, ok, property.KindStringID) {
		return 0
	}
	return s
}

func registerCatalog(f *Factory) {
	f.ctors[TypeTick] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := TickMessage{
			DeltaSeconds:   r.float(PropDeltaSeconds),
			SimulationTime: r.float(PropSimulationTime),
			Frame:          r.unsigned(PropFrame),
		}
		return m, r.err
	}
	f.ctors[TypeSpawnEntity] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := SpawnEntityMessage{
			SpawnerName: r.str(PropSpawnerName),
			UniqueID:    r.str(PropUniqueID),
			EntityName:  r.str(PropEntityName),
			AddToScene:  r.boolean(PropAddToScene),
		}
		return m, r.err
	}
	f.ctors[TypeDeleteEntity] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := DeleteEntityMessage{UniqueID: r.str(PropUniqueID)}
		return m, r.err
	}

	mapPath := func(build func(string) bus.Message) Constructor {
		return func(p property.Map) (bus.Message, error) {
			r := reader{props: p}
			m := build(r.str(PropMapPath))
			return m, r.err
		}
	}
	f.ctors[TypeMapBeginLoad] = mapPath(func(s string) bus.Message { return MapBeginLoadMessage{MapPath: s} })
	f.ctors[TypeMapLoaded] = mapPath(func(s string) bus.Message { return MapLoadedMessage{MapPath: s} })
	f.ctors[TypeMapBeginUnload] = mapPath(func(s string) bus.Message { return MapBeginUnloadMessage{MapPath: s} })
	f.ctors[TypeMapUnloaded] = mapPath(func(s string) bus.Message { return MapUnloadedMessage{MapPath: s} })

	f.ctors[TypeSceneLoaded] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := SceneLoadedMessage{SceneName: r.str(PropSceneName)}
		return m, r.err
	}
	f.ctors[TypeSceneUnloaded] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := SceneUnloadedMessage{SceneName: r.str(PropSceneName)}
		return m, r.err
	}

	f.ctors[TypeSpawnerAdded] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := SpawnerAddedMessage{
			Name:       r.str(PropName),
			ParentName: r.str(PropParentName),
			MapName:    r.str(PropMapName),
			Category:   r.str(PropCategory),
		}
		return m, r.err
	}
	f.ctors[TypeSpawnerRemoved] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := SpawnerRemovedMessage{
			Name:       r.str(PropName),
			ParentName: r.str(PropParentName),
			MapName:    r.str(PropMapName),
			Category:   r.str(PropCategory),
		}
		return m, r.err
	}

	about := func(build func(ids.EntityID) bus.Message) Constructor {
		return func(p property.Map) (bus.Message, error) {
			r := reader{props: p}
			m := build(ids.EntityID(r.unsigned(PropAboutEntity)))
			return m, r.err
		}
	}
	f.ctors[TypeEntityAddedToScene] = about(func(id ids.EntityID) bus.Message { return EntityAddedToSceneMessage{AboutEntity: id} })
	f.ctors[TypeEntityRemovedFromScene] = about(func(id ids.EntityID) bus.Message { return EntityRemovedFromSceneMessage{AboutEntity: id} })
	f.ctors[TypeEntityKilled] = about(func(id ids.EntityID) bus.Message { return EntityKilledMessage{AboutEntity: id} })

	f.ctors[TypeEntitySystemAdded] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := EntitySystemAddedMessage{ComponentType: r.stringID(PropComponentType)}
		return m, r.err
	}
	f.ctors[TypeEntitySystemRemoved] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := EntitySystemRemovedMessage{ComponentType: r.stringID(PropComponentType)}
		return m, r.err
	}

	f.ctors[TypePeerConnected] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := PeerConnectedMessage{PeerID: r.str(PropPeerID), Address: r.str(PropAddress)}
		return m, r.err
	}
	f.ctors[TypePeerDisconnected] = func(p property.Map) (bus.Message, error) {
		r := reader{props: p}
		m := PeerDisconnectedMessage{PeerID: r.str(PropPeerID), Address: r.str(PropAddress)}
		return m, r.err
	}
}

// Catalog returns one sample of every catalog message, with non-zero fields.
// Codec tests iterate over it.
func Catalog() []bus.Message {
	return []bus.Message{
		TickMessage{DeltaSeconds: 0.016, SimulationTime: 12.5, Frame: 781},
		SpawnEntityMessage{SpawnerName: "tree", UniqueID: "tree-1", EntityName: "Oak", AddToScene: true},
		DeleteEntityMessage{UniqueID: "tree-1"},
		MapBeginLoadMessage{MapPath: "maps/level1.yaml"},
		MapLoadedMessage{MapPath: "maps/level1.yaml"},
		MapBeginUnloadMessage{MapPath: "maps/level1.yaml"},
		MapUnloadedMessage{MapPath: "maps/level1.yaml"},
		SceneLoadedMessage{SceneName: "scenes/main.yaml"},
		SceneUnloadedMessage{SceneName: "scenes/main.yaml"},
		SpawnerAddedMessage{Name: "pine", ParentName: "tree", MapName: "level1", Category: "flora"},
		SpawnerRemovedMessage{Name: "pine", ParentName: "tree", MapName: "level1", Category: "flora"},
		EntityAddedToSceneMessage{AboutEntity: 7},
		EntityRemovedFromSceneMessage{AboutEntity: 7},
		EntityKilledMessage{AboutEntity: 7},
		EntitySystemAddedMessage{ComponentType: ids.SID("Map")},
		EntitySystemRemovedMessage{ComponentType: ids.SID("Map")},
		PeerConnectedMessage{PeerID: "b5a1", Address: "127.0.0.1:5000"},
		PeerDisconnectedMessage{PeerID: "b5a1", Address: "127.0.0.1:5000"},
	}
}
