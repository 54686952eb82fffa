package scene

import "errors"

var (
	ErrMapAlreadyLoaded  = errors.New("map already loaded")
	ErrMapNotLoaded      = errors.New("map not loaded")
	ErrMapNotFound       = errors.New("map not found")
	ErrMapExists         = errors.New("map already exists")
	ErrMapBusy           = errors.New("map is loading or unloading")
	ErrDuplicateUniqueID = errors.New("an entity with this unique id already exists")
	ErrUniqueIDNotFound  = errors.New("no entity with this unique id")
	ErrSpawnerNotFound   = errors.New("spawner not found")
	ErrInvalidSpawner    = errors.New("spawner has no name")
	ErrNoEncoder         = errors.New("no map encoder configured")
)
