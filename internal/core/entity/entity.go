package entity

import (
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/ids"
)

// Entity is a lightweight handle: an id plus the manager that owns it. The zero
// Entity refers to nothing.
type Entity struct {
	id      ids.EntityID
	manager *Manager
}

func (e Entity) ID() ids.EntityID {
	return e.id
}

func (e Entity) Manager() *Manager {
	return e.manager
}

// IsValid reports whether the entity is still alive.
func (e Entity) IsValid() bool {
	return e.manager != nil && e.manager.EntityExists(e.id)
}

func (e Entity) GetComponent(componentType ids.StringID) (Component, error) {
	if e.manager == nil {
		return nil, errors.Wrapf(ErrEntityNotFound, "get component %s of detached entity %s", componentType, e.id)
	}
	return e.manager.GetComponent(e.id, componentType)
}

func (e Entity) HasComponent(componentType ids.StringID) bool {
	return e.manager != nil && e.manager.HasComponent(e.id, componentType)
}

func (e Entity) CreateComponent(componentType ids.StringID) (Component, error) {
	if e.manager == nil {
		return nil, errors.Wrapf(ErrEntityNotFound, "create component %s on detached entity %s", componentType, e.id)
	}
	return e.manager.CreateComponent(e.id, componentType)
}

func (e Entity) String() string {
	return e.id.String()
}
