// Package yamlenc stores maps and scenes as YAML documents.
package yamlenc

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/property"
	"github.com/zeusync/simcore/internal/core/scene"
)

type valueDoc struct {
	Kind  string `yaml:"kind"`
	Value any    `yaml:"value"`
}

// component type -> property name -> value
type componentsDoc map[string]map[string]valueDoc

type spawnerDoc struct {
	Name       string        `yaml:"name"`
	Parent     string        `yaml:"parent,omitempty"`
	Category   string        `yaml:"category,omitempty"`
	AddToScene bool          `yaml:"add_to_scene,omitempty"`
	Components componentsDoc `yaml:"components,omitempty"`
}

type entityDoc struct {
	Components componentsDoc `yaml:"components"`
}

type mapDoc struct {
	Spawners []spawnerDoc `yaml:"spawners,omitempty"`
	Entities []entityDoc  `yaml:"entities,omitempty"`
}

type sceneDoc struct {
	Maps []string `yaml:"maps"`
}

// Encoder implements scene.MapEncoder on YAML files.
type Encoder struct {
	manager *entity.Manager
	system  *scene.MapSystem
	logger  log.Log
}

// NewEncoder matches scene.EncoderFunc.
func NewEncoder(m *entity.Manager, s *scene.MapSystem) scene.MapEncoder {
	return &Encoder{
		manager: m,
		system:  s,
		logger:  m.Logger().With(log.String("system", "yamlenc")),
	}
}

// LoadMapFromFile creates the map's spawners, then its entities, and adds the
// entities to the scene. A component whose type has no system is skipped
// with a warning. A unique id repeated within the file or already held by a
// live entity fails the load before anything is created.
func (enc *Encoder) LoadMapFromFile(path string) error {
	var doc mapDoc
	if err := enc.read(path, &doc); err != nil {
		return err
	}

	spawners := make([]*scene.Spawner, 0, len(doc.Spawners))
	for _, sd := range doc.Spawners {
		sp := scene.NewSpawner(sd.Name, path)
		sp.ParentName = sd.Parent
		sp.GUICategory = sd.Category
		sp.AddToScene = sd.AddToScene
		comps, err := decodeComponents(sd.Components)
		if err != nil {
			return errors.Wrapf(err, "%s: spawner %q", path, sd.Name)
		}
		sp.Components = comps
		spawners = append(spawners, sp)
	}

	entities := make([]map[ids.StringID]property.Map, 0, len(doc.Entities))
	seen := make(map[string]int, len(doc.Entities))
	for i, ed := range doc.Entities {
		comps, err := decodeComponents(ed.Components)
		if err != nil {
			return errors.Wrapf(err, "%s: entity %d", path, i)
		}
		if uid, ok := comps[scene.TypeMap].GetString(scene.PropUniqueID); ok && uid != "" {
			if first, dup := seen[uid]; dup {
				return errors.Wrapf(scene.ErrDuplicateUniqueID, "%s: entities %d and %d share %q", path, first, i, uid)
			}
			if _, taken := enc.system.EntityIDByUniqueID(uid); taken {
				return errors.Wrapf(scene.ErrDuplicateUniqueID, "%s: entity %d: %q", path, i, uid)
			}
			seen[uid] = i
		}
		entities = append(entities, comps)
	}

	for _, sp := range spawners {
		if err := enc.system.AddSpawner(sp); err != nil {
			return errors.Wrapf(err, "%s", path)
		}
	}
	for _, comps := range entities {
		enc.createEntity(path, comps)
	}
	return nil
}

func (enc *Encoder) createEntity(mapPath string, comps map[ids.StringID]property.Map) {
	e := enc.manager.CreateEntity()

	mapProps := comps[scene.TypeMap].Clone()
	mapProps[scene.PropMapName] = property.String(mapPath)
	mc, err := enc.system.Create(e)
	if err != nil {
		enc.logger.Error("cannot create map component", log.String("map", mapPath), log.Error(err))
		_ = enc.manager.KillEntity(e.ID())
		return
	}
	if err = entity.SetProperties(mc, mapProps); err != nil {
		enc.logger.Error("map component properties", log.String("map", mapPath), log.Error(err))
		_ = enc.manager.KillEntity(e.ID())
		return
	}

	types := make([]ids.StringID, 0, len(comps))
	for t := range comps {
		if t != scene.TypeMap {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	for _, t := range types {
		c, err := enc.manager.CreateComponent(e.ID(), t)
		if err != nil {
			enc.logger.Warn("cannot add component", log.String("type", t.String()), log.Error(err))
			continue
		}
		if err = entity.SetProperties(c, comps[t]); err != nil {
			enc.logger.Warn("component properties", log.String("type", t.String()), log.Error(err))
		}
	}

	if err = enc.manager.AddToScene(e.ID()); err != nil {
		enc.logger.Warn("add to scene", log.Uint64("entity", uint64(e.ID())), log.Error(err))
	}
}

// SaveMapToFile writes the map's spawners and every entity of the map that
// has SaveWithMap set.
func (enc *Encoder) SaveMapToFile(path, absPath string) error {
	var doc mapDoc
	for _, sp := range enc.system.Spawners() {
		if sp.MapName != path {
			continue
		}
		doc.Spawners = append(doc.Spawners, spawnerDoc{
			Name:       sp.Name,
			Parent:     sp.ParentName,
			Category:   sp.GUICategory,
			AddToScene: sp.AddToScene,
			Components: encodeComponents(sp.Components),
		})
	}

	for _, id := range enc.system.EntitiesInMap(path) {
		mc, ok := enc.system.Get(id)
		if !ok || !mc.SaveWithMap() {
			continue
		}
		comps := make(map[ids.StringID]property.Map)
		for _, c := range enc.manager.Components(id) {
			comps[c.Type()] = c.Properties()
		}
		doc.Entities = append(doc.Entities, entityDoc{Components: encodeComponents(comps)})
	}

	return write(absPath, doc)
}

// LoadSceneFromFile loads every map the scene lists. A map that fails to load
// does not stop the others.
func (enc *Encoder) LoadSceneFromFile(path string) error {
	var doc sceneDoc
	if err := enc.read(path, &doc); err != nil {
		return err
	}
	var all error
	for _, m := range doc.Maps {
		if err := enc.system.LoadMap(m); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	return all
}

func (enc *Encoder) SaveSceneToFile(path string) error {
	return write(enc.system.DataPaths().SavePath(path), sceneDoc{Maps: enc.system.LoadedMaps()})
}

func (enc *Encoder) read(path string, out any) error {
	abs, ok := enc.system.FindDataFile(path)
	if !ok {
		return errors.Wrapf(scene.ErrMapNotFound, "%s", path)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errors.Wrapf(err, "read %s", abs)
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "parse %s", abs)
	}
	return nil
}

func write(absPath string, doc any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	if dir := filepath.Dir(absPath); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err = os.WriteFile(absPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", absPath)
	}
	return nil
}

func decodeComponents(doc componentsDoc) (map[ids.StringID]property.Map, error) {
	out := make(map[ids.StringID]property.Map, len(doc))
	for typeName, props := range doc {
		m := make(property.Map, len(props))
		for name, vd := range props {
			kind, err := property.ParseKind(vd.Kind)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", typeName, name)
			}
			v, err := property.FromInterface(kind, vd.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", typeName, name)
			}
			m[ids.SID(name)] = v
		}
		out[ids.SID(typeName)] = m
	}
	return out, nil
}

func encodeComponents(comps map[ids.StringID]property.Map) componentsDoc {
	if len(comps) == 0 {
		return nil
	}
	out := make(componentsDoc, len(comps))
	for t, props := range comps {
		m := make(map[string]valueDoc, len(props))
		for name, v := range props {
			m[name.String()] = valueDoc{Kind: v.Kind().String(), Value: v.Interface()}
		}
		out[t.String()] = m
	}
	return out
}
