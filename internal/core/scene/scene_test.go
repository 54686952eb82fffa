package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/plugin"
	"github.com/zeusync/simcore/internal/core/property"
)

var (
	healthType = ids.SID("Health")
	propHP     = ids.SID("HP")
	propArmor  = ids.SID("Armor")
)

type healthComponent struct {
	entity.BaseComponent
	props property.Map
}

func (*healthComponent) Type() ids.StringID { return healthType }

func (c *healthComponent) Properties() property.Map { return c.props.Clone() }

func (c *healthComponent) SetProperty(name ids.StringID, v property.Value) error {
	c.props[name] = v
	return nil
}

type fakeEncoder struct {
	manager *entity.Manager
	system  *MapSystem

	entitiesPerMap int
	sceneMaps      []string

	loadErr      error
	saveMapErr   error
	saveSceneErr error

	savedMaps   [][2]string
	savedScenes []string
}

func (f *fakeEncoder) LoadMapFromFile(path string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	for i := 0; i < f.entitiesPerMap; i++ {
		e := f.manager.CreateEntity()
		c, err := f.system.Create(e)
		if err != nil {
			return err
		}
		c.SetMapName(path)
		if err = f.manager.AddToScene(e.ID()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeEncoder) SaveMapToFile(path, absPath string) error {
	if f.saveMapErr != nil {
		return f.saveMapErr
	}
	f.savedMaps = append(f.savedMaps, [2]string{path, absPath})
	return nil
}

func (f *fakeEncoder) LoadSceneFromFile(string) error {
	for _, m := range f.sceneMaps {
		if err := f.system.LoadMap(m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeEncoder) SaveSceneToFile(path string) error {
	if f.saveSceneErr != nil {
		return f.saveSceneErr
	}
	f.savedScenes = append(f.savedScenes, path)
	return nil
}

type fixture struct {
	bus     *bus.Bus
	manager *entity.Manager
	system  *MapSystem
	encoder *fakeEncoder
	dir     string
	log     []bus.Message
}

func newFixture(t *testing.T, cfg Config, files ...string) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), encoder: &fakeEncoder{entitiesPerMap: 3}}
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte("{}"), 0o644))
	}

	f.bus = bus.New()
	f.manager = entity.NewManager(f.bus, log.NewNop())
	require.NoError(t, f.manager.AddEntitySystem(entity.NewDefaultSystem(healthType, func() *healthComponent {
		return &healthComponent{props: property.Map{}}
	})))

	cfg.DataPaths = append(cfg.DataPaths, f.dir)
	cfg.NewEncoder = func(m *entity.Manager, s *MapSystem) MapEncoder {
		f.encoder.manager = m
		f.encoder.system = s
		return f.encoder
	}
	loader := plugin.NewLoader(f.manager, log.NewNop())
	loader.AddFactory(NewFactory(cfg))
	require.NoError(t, loader.StartEntitySystem(TypeMap))

	sys, err := entity.SystemAs[*MapSystem](f.manager, TypeMap)
	require.NoError(t, err)
	f.system = sys

	for _, typ := range []ids.StringID{
		messages.TypeMapBeginLoad, messages.TypeMapLoaded,
		messages.TypeMapBeginUnload, messages.TypeMapUnloaded,
		messages.TypeSpawnerAdded, messages.TypeSpawnerRemoved,
		messages.TypeSceneLoaded, messages.TypeSceneUnloaded,
	} {
		require.NoError(t, f.bus.RegisterForMessages(typ, bus.NewFunctor(func(m bus.Message) error {
			f.log = append(f.log, m)
			return nil
		}), bus.OrderLate, "fixture"))
	}
	return f
}

func (f *fixture) count(typ ids.StringID) int {
	n := 0
	for _, m := range f.log {
		if m.Type() == typ {
			n++
		}
	}
	return n
}

func (f *fixture) newMapEntity(t *testing.T, mapName string) (entity.Entity, *MapComponent) {
	t.Helper()
	e := f.manager.CreateEntity()
	c, err := f.system.Create(e)
	require.NoError(t, err)
	c.SetMapName(mapName)
	return e, c
}

func TestUniqueIDIndexIsBijection(t *testing.T) {
	f := newFixture(t, Config{})
	e, c := f.newMapEntity(t, "m")

	require.NoError(t, c.SetUniqueID("A"))
	require.NoError(t, c.SetUniqueID("B"))

	_, ok := f.system.EntityIDByUniqueID("A")
	assert.False(t, ok)
	id, ok := f.system.EntityIDByUniqueID("B")
	require.True(t, ok)
	assert.Equal(t, e.ID(), id)

	require.NoError(t, c.SetUniqueID("B"))
	id, _ = f.system.EntityIDByUniqueID("B")
	assert.Equal(t, e.ID(), id)
}

func TestUniqueIDSetThroughProperty(t *testing.T) {
	f := newFixture(t, Config{})
	e, c := f.newMapEntity(t, "m")

	require.NoError(t, entity.SetProperties(c, property.Map{PropUniqueID: property.String("crate-7")}))
	got, ok := f.system.EntityByUniqueID("crate-7")
	require.True(t, ok)
	assert.Equal(t, e.ID(), got.ID())
}

func TestDuplicateUniqueIDOnCreateRollsBack(t *testing.T) {
	f := newFixture(t, Config{NewUniqueID: func() string { return "same" }})
	first, _ := f.newMapEntity(t, "m")

	second := f.manager.CreateEntity()
	c, err := f.manager.CreateComponent(second.ID(), TypeMap)
	assert.ErrorIs(t, err, ErrDuplicateUniqueID)
	assert.Nil(t, c)
	assert.False(t, f.system.HasComponent(second.ID()))

	id, ok := f.system.EntityIDByUniqueID("same")
	require.True(t, ok)
	assert.Equal(t, first.ID(), id)
}

func TestDuplicateUniqueIDOnChangeDropsIndexEntry(t *testing.T) {
	f := newFixture(t, Config{})
	first, c1 := f.newMapEntity(t, "m")
	second, c2 := f.newMapEntity(t, "m")
	require.NoError(t, c1.SetUniqueID("A"))
	require.NoError(t, c2.SetUniqueID("B"))

	err := c2.SetUniqueID("A")
	assert.ErrorIs(t, err, ErrDuplicateUniqueID)

	// the old entry is gone and the new one is not installed
	_, ok := f.system.EntityIDByUniqueID("B")
	assert.False(t, ok)
	id, _ := f.system.EntityIDByUniqueID("A")
	assert.Equal(t, first.ID(), id)
	assert.Equal(t, "A", c2.UniqueID())

	// deleting the orphan must not erase the other entity's entry
	require.NoError(t, f.manager.DeleteComponent(second.ID(), TypeMap))
	id, ok = f.system.EntityIDByUniqueID("A")
	require.True(t, ok)
	assert.Equal(t, first.ID(), id)
}

func TestKillEntityClearsIndex(t *testing.T) {
	f := newFixture(t, Config{})
	e, c := f.newMapEntity(t, "m")
	require.NoError(t, c.SetUniqueID("gone"))

	require.NoError(t, f.manager.KillEntity(e.ID()))
	_, ok := f.system.EntityIDByUniqueID("gone")
	assert.False(t, ok)
	assert.NoError(t, c.SetUniqueID("after"), "a detached component no longer touches the index")
	_, ok = f.system.EntityIDByUniqueID("after")
	assert.False(t, ok)
}

func TestLoadMapTwice(t *testing.T) {
	f := newFixture(t, Config{}, "level1.yaml")

	require.NoError(t, f.system.LoadMap("level1.yaml"))
	err := f.system.LoadMap("level1.yaml")
	assert.ErrorIs(t, err, ErrMapAlreadyLoaded)

	assert.Equal(t, []string{"level1.yaml"}, f.system.LoadedMaps())
	assert.Equal(t, 1, f.count(messages.TypeMapLoaded))
	assert.Len(t, f.system.EntitiesInMap("level1.yaml"), 3)
}

func TestLoadMapMissingResource(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.system.LoadMap("nowhere.yaml"), ErrMapNotFound)
	assert.Equal(t, 0, f.count(messages.TypeMapBeginLoad))
}

func TestLoadMapEncoderFailure(t *testing.T) {
	f := newFixture(t, Config{}, "broken.yaml")
	boom := errors.New("bad file")
	f.encoder.loadErr = boom

	err := f.system.LoadMap("broken.yaml")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.count(messages.TypeMapBeginLoad))
	assert.Equal(t, 0, f.count(messages.TypeMapLoaded))
	assert.False(t, f.system.IsMapLoaded("broken.yaml"))
	assert.Equal(t, MapNotLoaded, f.system.MapState("broken.yaml"))
}

func TestUnloadMapRemovesAllThenKills(t *testing.T) {
	f := newFixture(t, Config{}, "level1.yaml")
	f.encoder.entitiesPerMap = 4
	require.NoError(t, f.system.LoadMap("level1.yaml"))
	inMap := f.system.EntitiesInMap("level1.yaml")
	require.Len(t, inMap, 4)

	// every removal happens while all entities of the map are still alive
	var aliveAtRemoval []int
	require.NoError(t, f.bus.RegisterForMessages(messages.TypeEntityRemovedFromScene, bus.NewFunctor(func(bus.Message) error {
		alive := 0
		for _, id := range inMap {
			if f.manager.EntityExists(id) {
				alive++
			}
		}
		aliveAtRemoval = append(aliveAtRemoval, alive)
		return nil
	}), bus.OrderDefault, "probe"))

	require.NoError(t, f.system.UnloadMap("level1.yaml"))
	assert.Equal(t, []int{4, 4, 4, 4}, aliveAtRemoval)
	assert.Empty(t, f.system.EntitiesInMap("level1.yaml"))
	assert.Empty(t, f.manager.Entities())
	assert.Equal(t, 1, f.count(messages.TypeMapUnloaded))
	assert.False(t, f.system.IsMapLoaded("level1.yaml"))

	assert.ErrorIs(t, f.system.UnloadMap("level1.yaml"), ErrMapNotLoaded)
}

func TestUnloadMapCascadesSpawnerTree(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.system.AddEmptyMap("forest"))
	require.NoError(t, f.system.AddEmptyMap("quarry"))

	add := func(name, parent, mapName string) {
		sp := NewSpawner(name, mapName)
		sp.ParentName = parent
		require.NoError(t, f.system.AddSpawner(sp))
	}
	add("tree", "", "forest")
	add("pine", "tree", "forest")
	add("oak", "tree", "forest")
	add("bonsai", "pine", "forest")
	add("orphan", "ghost", "forest")
	add("rock", "", "quarry")
	add("boulder", "rock", "quarry")

	f.log = nil
	require.NoError(t, f.system.UnloadMap("forest"))

	var removed []string
	for _, m := range f.log {
		if r, ok := m.(messages.SpawnerRemovedMessage); ok {
			removed = append(removed, r.Name)
		}
	}
	assert.ElementsMatch(t, []string{"tree", "pine", "oak", "bonsai", "orphan"}, removed)

	pos := make(map[string]int)
	for i, n := range removed {
		pos[n] = i
	}
	assert.Less(t, pos["bonsai"], pos["pine"])
	assert.Less(t, pos["pine"], pos["tree"])
	assert.Less(t, pos["oak"], pos["tree"])

	assert.Equal(t, []string{"boulder", "rock"}, f.system.SpawnerNames())
	assert.Equal(t, 1, f.count(messages.TypeMapUnloaded))
}

func TestChildrenGroupsDanglingParents(t *testing.T) {
	f := newFixture(t, Config{})
	root := NewSpawner("root", "m")
	child := NewSpawner("child", "m")
	child.ParentName = "root"
	lost := NewSpawner("lost", "m")
	lost.ParentName = "missing"
	for _, sp := range []*Spawner{root, child, lost} {
		require.NoError(t, f.system.AddSpawner(sp))
	}

	assert.Equal(t, []*Spawner{root}, f.system.Children(""))
	assert.Equal(t, []*Spawner{child}, f.system.Children("root"))
	assert.Equal(t, []*Spawner{lost}, f.system.Children("missing"))
}

func TestSpawnUnknownSpawnerLeavesEntityUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.system.AddEmptyMap("level1"))

	e := f.manager.CreateEntity()
	err := f.system.Spawn("tree", e)
	assert.ErrorIs(t, err, ErrSpawnerNotFound)
	assert.True(t, f.manager.EntityExists(e.ID()))
	assert.False(t, f.system.HasComponent(e.ID()))
	assert.Empty(t, f.manager.Components(e.ID()))
}

func TestSpawnAppliesParentTemplatesFirst(t *testing.T) {
	f := newFixture(t, Config{})
	base := NewSpawner("unit", "m")
	base.SetComponentProperties(healthType, property.Map{propHP: property.Int(10), propArmor: property.Int(2)})
	base.SetComponentProperties(TypeMap, property.Map{
		PropEntityName: property.String("Unit"),
		PropUniqueID:   property.String("never-copied"),
	})
	tank := NewSpawner("tank", "m")
	tank.ParentName = "unit"
	tank.SetComponentProperties(healthType, property.Map{propHP: property.Int(50)})
	require.NoError(t, f.system.AddSpawner(base))
	require.NoError(t, f.system.AddSpawner(tank))

	e := f.manager.CreateEntity()
	require.NoError(t, f.system.Spawn("tank", e))

	h, err := entity.GetComponentAs[*healthComponent](f.manager, e.ID(), healthType)
	require.NoError(t, err)
	hp, _ := h.props.GetInt(propHP)
	armor, _ := h.props.GetInt(propArmor)
	assert.Equal(t, int64(50), hp)
	assert.Equal(t, int64(2), armor)

	mc, ok := f.system.Get(e.ID())
	require.True(t, ok)
	assert.Equal(t, "Unit", mc.EntityName())
	assert.Equal(t, "tank", mc.SpawnerName())
	assert.NotEqual(t, "never-copied", mc.UniqueID())
	assert.Equal(t, []ids.EntityID{e.ID()}, f.system.SpawnerCreatedEntities("tank"))
}

func TestSpawnSurvivesParentCycle(t *testing.T) {
	f := newFixture(t, Config{})
	a := NewSpawner("a", "m")
	a.ParentName = "b"
	a.SetComponentProperties(healthType, property.Map{propHP: property.Int(1)})
	b := NewSpawner("b", "m")
	b.ParentName = "a"
	require.NoError(t, f.system.AddSpawner(a))
	require.NoError(t, f.system.AddSpawner(b))

	e := f.manager.CreateEntity()
	require.NoError(t, f.system.Spawn("a", e))
	assert.True(t, f.manager.HasComponent(e.ID(), healthType))

	require.NoError(t, f.system.AddEmptyMap("m"))
	f.log = nil
	require.NoError(t, f.system.UnloadMap("m"))
	assert.Equal(t, 2, f.count(messages.TypeSpawnerRemoved))
}

func TestSpawnAndDeleteEntityMessages(t *testing.T) {
	f := newFixture(t, Config{})
	tree := NewSpawner("tree", "forest")
	tree.SetComponentProperties(healthType, property.Map{propHP: property.Int(3)})
	require.NoError(t, f.system.AddSpawner(tree))

	require.NoError(t, f.bus.EmitMessage(messages.SpawnEntityMessage{
		SpawnerName: "tree",
		UniqueID:    "tree-1",
		EntityName:  "Oak",
		AddToScene:  true,
	}))

	e, ok := f.system.EntityByUniqueID("tree-1")
	require.True(t, ok)
	assert.True(t, f.manager.IsInScene(e.ID()))
	mc, _ := f.system.Get(e.ID())
	assert.Equal(t, "Oak", mc.EntityName())
	assert.Equal(t, "tree", mc.SpawnerName())

	require.NoError(t, f.bus.EmitMessage(messages.DeleteEntityMessage{UniqueID: "tree-1"}))
	assert.False(t, f.manager.EntityExists(e.ID()))
	_, ok = f.system.EntityIDByUniqueID("tree-1")
	assert.False(t, ok)

	err := f.bus.EmitMessage(messages.DeleteEntityMessage{UniqueID: "tree-1"})
	assert.ErrorIs(t, err, ErrUniqueIDNotFound)
}

func TestSpawnEntityMessageFailureKillsFreshEntity(t *testing.T) {
	f := newFixture(t, Config{})
	err := f.bus.EmitMessage(messages.SpawnEntityMessage{SpawnerName: "nope", UniqueID: "x"})
	assert.ErrorIs(t, err, ErrSpawnerNotFound)
	assert.Empty(t, f.manager.Entities())
}

func TestDeleteSpawnerClearsSpawnerNames(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.system.AddSpawner(NewSpawner("tree", "forest")))
	e := f.manager.CreateEntity()
	require.NoError(t, f.system.Spawn("tree", e))
	_, err := f.system.Create(e)
	require.NoError(t, err)
	require.NoError(t, f.system.Spawn("tree", e))

	require.NoError(t, f.system.DeleteSpawner("tree"))
	mc, _ := f.system.Get(e.ID())
	assert.Equal(t, "", mc.SpawnerName())
	assert.Equal(t, 1, f.count(messages.TypeSpawnerRemoved))
	assert.ErrorIs(t, f.system.DeleteSpawner("tree"), ErrSpawnerNotFound)
	assert.ErrorIs(t, f.system.AddSpawner(&Spawner{}), ErrInvalidSpawner)
}

func TestAddEmptyMap(t *testing.T) {
	f := newFixture(t, Config{}, "on-disk.yaml")

	require.NoError(t, f.system.AddEmptyMap("fresh"))
	assert.True(t, f.system.IsMapLoaded("fresh"))
	assert.Equal(t, 1, f.count(messages.TypeMapBeginLoad))
	assert.Equal(t, 1, f.count(messages.TypeMapLoaded))

	assert.ErrorIs(t, f.system.AddEmptyMap("fresh"), ErrMapExists)

	assert.ErrorIs(t, f.system.AddEmptyMap("on-disk.yaml"), ErrMapExists)
	assert.True(t, f.system.IsMapLoaded("on-disk.yaml"))
	assert.Equal(t, 1, f.count(messages.TypeMapLoaded), "an existing resource is recorded without notifications")
}

func TestSaveMapResolvesPath(t *testing.T) {
	f := newFixture(t, Config{}, "level1.yaml")
	require.NoError(t, f.system.LoadMap("level1.yaml"))
	require.NoError(t, f.system.AddEmptyMap("new.yaml"))

	require.NoError(t, f.system.SaveMap("level1.yaml"))
	require.NoError(t, f.system.SaveMap("new.yaml"))
	require.NoError(t, f.system.SaveMapAs("level1.yaml", "/tmp/copy.yaml"))
	assert.Equal(t, [][2]string{
		{"level1.yaml", filepath.Join(f.dir, "level1.yaml")},
		{"new.yaml", filepath.Join(f.dir, "new.yaml")},
		{"level1.yaml", "/tmp/copy.yaml"},
	}, f.encoder.savedMaps)

	assert.ErrorIs(t, f.system.SaveMap("unknown"), ErrMapNotLoaded)
	assert.ErrorIs(t, f.system.SaveMapAs("unknown", "x"), ErrMapNotLoaded)
}

func TestSaveSceneReportsSceneResultOnly(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.system.AddEmptyMap("a"))
	require.NoError(t, f.system.AddEmptyMap("b"))

	f.encoder.saveMapErr = errors.New("disk full")
	require.NoError(t, f.system.SaveScene("main.scene", true))
	assert.Equal(t, []string{"main.scene"}, f.encoder.savedScenes)

	f.encoder.saveMapErr = nil
	f.encoder.saveSceneErr = errors.New("read only")
	assert.Error(t, f.system.SaveScene("main.scene", true))
	assert.Empty(t, f.encoder.savedMaps, "maps are not saved when the scene save fails")

	f.encoder.saveSceneErr = nil
	require.NoError(t, f.system.SaveScene("main.scene", true))
	assert.Len(t, f.encoder.savedMaps, 2)
}

func TestLoadAndUnloadScene(t *testing.T) {
	f := newFixture(t, Config{}, "a.yaml", "b.yaml")
	f.encoder.sceneMaps = []string{"a.yaml", "b.yaml"}

	require.NoError(t, f.system.LoadScene("main.scene"))
	assert.Equal(t, "main.scene", f.system.CurrentScene())
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, f.system.LoadedMaps())
	assert.Equal(t, 1, f.count(messages.TypeSceneLoaded))

	require.NoError(t, f.system.UnloadScene())
	assert.Empty(t, f.system.LoadedMaps())
	assert.Empty(t, f.manager.Entities())
	assert.Equal(t, "", f.system.CurrentScene())
	assert.Equal(t, 2, f.count(messages.TypeMapUnloaded))
}

func TestDeleteEntitiesByMapKeepsMapLoaded(t *testing.T) {
	f := newFixture(t, Config{}, "a.yaml")
	require.NoError(t, f.system.LoadMap("a.yaml"))

	require.NoError(t, f.system.DeleteEntitiesByMap("a.yaml"))
	assert.Empty(t, f.system.EntitiesInMap("a.yaml"))
	assert.True(t, f.system.IsMapLoaded("a.yaml"))
	assert.ErrorIs(t, f.system.DeleteEntitiesByMap("b.yaml"), ErrMapNotLoaded)
}

func TestDataPaths(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "m.yaml"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(first, "dir.yaml"), 0o755))
	paths := DataPaths{first, second}

	got, ok := paths.Find("m.yaml")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "m.yaml"), got)

	_, ok = paths.Find("dir.yaml")
	assert.False(t, ok, "directories are not data files")
	_, ok = paths.Find("")
	assert.False(t, ok)

	assert.Equal(t, filepath.Join(second, "m.yaml"), paths.SavePath("m.yaml"))
	assert.Equal(t, filepath.Join(first, "new.yaml"), paths.SavePath("new.yaml"))
	assert.Equal(t, "rel.yaml", DataPaths{}.SavePath("rel.yaml"))
}

func TestMapComponentDefaults(t *testing.T) {
	f := newFixture(t, Config{})
	_, c := f.newMapEntity(t, "m")
	assert.True(t, c.SaveWithMap())
	assert.True(t, c.VisibleInEntityList())
	assert.NotEmpty(t, c.UniqueID())

	err := c.SetProperty(PropSaveWithMap, property.String("yes"))
	assert.ErrorIs(t, err, entity.ErrPropertyKind)
	err = c.SetProperty(ids.SID("Colour"), property.String("red"))
	assert.ErrorIs(t, err, entity.ErrUnknownProperty)
}
