package scene

import (
	stderrors "errors"
	"sort"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
)

func (s *MapSystem) MapState(path string) MapState {
	return s.maps[path]
}

func (s *MapSystem) IsMapLoaded(path string) bool {
	return s.maps[path] == MapLoaded
}

// LoadedMaps lists loaded map paths, sorted.
func (s *MapSystem) LoadedMaps() []string {
	out := make([]string, 0, len(s.maps))
	for path, state := range s.maps {
		if state == MapLoaded {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// MapExists reports whether path resolves to a file through the data paths.
func (s *MapSystem) MapExists(path string) bool {
	_, ok := s.dataPaths.Find(path)
	return ok
}

func (s *MapSystem) FindDataFile(path string) (string, bool) {
	return s.dataPaths.Find(path)
}

func (s *MapSystem) CurrentScene() string {
	return s.currentScene
}

// LoadMap runs the encoder for path between MapBeginLoadMessage and
// MapLoadedMessage. When the encoder fails the map stays unloaded and no
// MapLoadedMessage is sent; the begin message is not taken back.
func (s *MapSystem) LoadMap(path string) error {
	switch s.maps[path] {
	case MapLoaded:
		s.logger.Error("map already loaded", log.String("map", path))
		return errors.Wrapf(ErrMapAlreadyLoaded, "%s", path)
	case MapLoading, MapUnloading:
		return errors.Wrapf(ErrMapBusy, "%s", path)
	}
	if !s.MapExists(path) {
		s.logger.Error("map not found", log.String("map", path))
		return errors.Wrapf(ErrMapNotFound, "%s", path)
	}

	s.maps[path] = MapLoading
	s.emit(messages.MapBeginLoadMessage{MapPath: path})

	if err := s.encoder.LoadMapFromFile(path); err != nil {
		delete(s.maps, path)
		s.logger.Error("map encoder failed", log.String("map", path), log.Error(err))
		return errors.Wrapf(err, "load map %s", path)
	}

	s.maps[path] = MapLoaded
	s.emit(messages.MapLoadedMessage{MapPath: path})
	s.logger.Info("map loaded", log.String("map", path))
	return nil
}

// UnloadMap removes every entity of the map from the scene, then kills them,
// then deletes the map's spawners, children before parents.
func (s *MapSystem) UnloadMap(path string) error {
	if s.maps[path] != MapLoaded {
		s.logger.Error("cannot unload map: not loaded", log.String("map", path))
		return errors.Wrapf(ErrMapNotLoaded, "%s", path)
	}

	s.maps[path] = MapUnloading
	s.emit(messages.MapBeginUnloadMessage{MapPath: path})

	s.removeAndKill(s.EntitiesInMap(path))
	s.deleteSpawnersOfMap(path)

	delete(s.maps, path)
	s.emit(messages.MapUnloadedMessage{MapPath: path})
	s.logger.Info("map unloaded", log.String("map", path))
	return nil
}

// DeleteEntitiesByMap removes and kills every entity of a loaded map without
// unloading it.
func (s *MapSystem) DeleteEntitiesByMap(mapName string) error {
	if s.maps[mapName] != MapLoaded {
		s.logger.Error("cannot delete entities: map not loaded", log.String("map", mapName))
		return errors.Wrapf(ErrMapNotLoaded, "%s", mapName)
	}
	s.removeAndKill(s.EntitiesInMap(mapName))
	return nil
}

// removeAndKill takes every entity out of the scene before killing any of
// them, so scene-removal handlers never see a half-killed map.
func (s *MapSystem) removeAndKill(entities []ids.EntityID) {
	for _, id := range entities {
		if !s.manager.EntityExists(id) {
			continue
		}
		if err := s.manager.RemoveFromScene(id); err != nil {
			s.logger.Warn("remove from scene failed", log.Uint64("entity", uint64(id)), log.Error(err))
		}
	}
	for _, id := range entities {
		if !s.manager.EntityExists(id) {
			continue
		}
		if err := s.manager.KillEntity(id); err != nil {
			s.logger.Warn("kill entity failed", log.Uint64("entity", uint64(id)), log.Error(err))
		}
	}
}

// AddEmptyMap registers a loaded map with no entities. It fails if the map is
// known or a resource with that name exists; in the latter case the name is
// still recorded as loaded so a later save writes back to that resource.
func (s *MapSystem) AddEmptyMap(name string) error {
	if s.maps[name] != MapNotLoaded {
		return errors.Wrapf(ErrMapExists, "%s", name)
	}
	if s.MapExists(name) {
		s.maps[name] = MapLoaded
		return errors.Wrapf(ErrMapExists, "%s is an existing resource", name)
	}

	s.maps[name] = MapLoading
	s.emit(messages.MapBeginLoadMessage{MapPath: name})
	s.maps[name] = MapLoaded
	s.emit(messages.MapLoadedMessage{MapPath: name})
	return nil
}

// SaveMap writes the map back to where it was found, or under the first data
// path if it has no file yet.
func (s *MapSystem) SaveMap(path string) error {
	if !s.IsMapLoaded(path) {
		s.logger.Error("cannot save map: not loaded", log.String("map", path))
		return errors.Wrapf(ErrMapNotLoaded, "%s", path)
	}
	if err := s.encoder.SaveMapToFile(path, s.dataPaths.SavePath(path)); err != nil {
		return errors.Wrapf(err, "save map %s", path)
	}
	return nil
}

func (s *MapSystem) SaveMapAs(path, copyPath string) error {
	if !s.IsMapLoaded(path) {
		s.logger.Error("cannot save map as: not loaded", log.String("map", path))
		return errors.Wrapf(ErrMapNotLoaded, "%s", path)
	}
	if err := s.encoder.SaveMapToFile(path, copyPath); err != nil {
		return errors.Wrapf(err, "save map %s as %s", path, copyPath)
	}
	return nil
}

// LoadScene hands path to the encoder, which loads the maps the scene lists.
func (s *MapSystem) LoadScene(path string) error {
	if err := s.encoder.LoadSceneFromFile(path); err != nil {
		s.logger.Error("scene load failed", log.String("scene", path), log.Error(err))
		return errors.Wrapf(err, "load scene %s", path)
	}
	s.currentScene = path
	s.emit(messages.SceneLoadedMessage{SceneName: path})
	return nil
}

// UnloadScene unloads every loaded map and forgets the current scene.
func (s *MapSystem) UnloadScene() error {
	s.emit(messages.SceneUnloadedMessage{SceneName: s.currentScene})

	var all error
	for _, path := range s.LoadedMaps() {
		if err := s.UnloadMap(path); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	s.currentScene = ""
	return all
}

// SaveScene writes the scene file. With saveAllMaps every loaded map is saved
// too; a failed map save is logged and does not change the result, which is
// the scene save's own.
func (s *MapSystem) SaveScene(path string, saveAllMaps bool) error {
	if err := s.encoder.SaveSceneToFile(path); err != nil {
		return errors.Wrapf(err, "save scene %s", path)
	}
	if !saveAllMaps {
		return nil
	}
	for _, m := range s.LoadedMaps() {
		if err := s.SaveMap(m); err != nil {
			s.logger.Error("could not save map", log.String("map", m), log.Error(err))
		}
	}
	return nil
}

// EntitiesInMap lists entities whose MapComponent names mapName, ascending.
func (s *MapSystem) EntitiesInMap(mapName string) []ids.EntityID {
	var out []ids.EntityID
	s.Each(func(id ids.EntityID, c *MapComponent) {
		if c.mapName == mapName {
			out = append(out, id)
		}
	})
	return out
}
