package entity

import (
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// Component is a typed bag of properties attached to exactly one entity and
// owned by the EntitySystem of its type.
type Component interface {
	Type() ids.StringID
	Properties() property.Map
	SetProperty(name ids.StringID, v property.Value) error

	// OnAddedToEntity is called once, after the owning entity is known.
	OnAddedToEntity(e Entity)
	// OnFinishedSettingProperties is called after a bulk assignment.
	OnFinishedSettingProperties()
}

// PropertyObserver is implemented by components that react to single property
// assignments made through SetProperty.
type PropertyObserver interface {
	OnPropertyChanged(name ids.StringID, v property.Value)
}

// BaseComponent carries the owning entity. Embed it to get the lifecycle
// callbacks for free.
type BaseComponent struct {
	owner Entity
}

func (c *BaseComponent) OnAddedToEntity(e Entity) {
	c.owner = e
}

func (c *BaseComponent) OnFinishedSettingProperties() {}

// Entity returns the owning entity, or the zero Entity before OnAddedToEntity.
func (c *BaseComponent) Entity() Entity {
	return c.owner
}

// SetProperty assigns one property and notifies the component if it observes
// property changes.
func SetProperty(c Component, name ids.StringID, v property.Value) error {
	if err := c.SetProperty(name, v); err != nil {
		return err
	}
	if obs, ok := c.(PropertyObserver); ok {
		obs.OnPropertyChanged(name, v)
	}
	return nil
}

// SetProperties assigns props in name order, then calls
// OnFinishedSettingProperties. Assignment stops at the first error.
func SetProperties(c Component, props property.Map) error {
	for _, name := range props.Names() {
		if err := c.SetProperty(name, props[name]); err != nil {
			return errors.Wrapf(err, "set %s.%s", c.Type(), name)
		}
	}
	c.OnFinishedSettingProperties()
	return nil
}

// PropertyError builds the error a component returns for a bad assignment.
func PropertyError(componentType, name ids.StringID, v property.Value, want property.Kind) error {
	if want == property.KindInvalid {
		return errors.Wrapf(ErrUnknownProperty, "%s has no property %s", componentType, name)
	}
	return errors.Wrapf(ErrPropertyKind, "%s.%s is %s, got %s", componentType, name, want, v.Kind())
}
