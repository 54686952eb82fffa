// Package plugin brings entity systems into the registry, either from
// factories compiled into the host or from dynamic modules built with
// -buildmode=plugin.
//
// The package is internal, so a dynamic module has to be a main package
// inside the github.com/zeusync/simcore tree (for example under plugins/),
// built with the same toolchain and dependency versions as the host. Code
// outside the module cannot name Factory and cannot satisfy EntryFunc.
package plugin

import (
	"errors"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
)

// EntryPoint is the symbol every dynamic module exports. Its type is
// func(*[]plugin.Factory): the module appends its factories and the loader
// owns them from then on.
const EntryPoint = "CreatePluginFactories"

// EntryFunc is the type of EntryPoint.
type EntryFunc = func(*[]Factory)

// Factory describes and builds exactly one entity system type.
type Factory interface {
	Name() string
	Type() ids.StringID
	Description() string
	Version() string
	Create(m *entity.Manager) (entity.EntitySystem, error)
}

// State of a component type in the loader.
type State uint8

const (
	StateUnregistered State = iota
	StateFactoryRegistered
	StateActive
)

func (s State) String() string {
	switch s {
	case StateFactoryRegistered:
		return "factory-registered"
	case StateActive:
		return "active"
	default:
		return "unregistered"
	}
}

var (
	ErrFactoryNotFound = errors.New("plugin: no factory registered for component type")
	ErrNoEntryPoint    = errors.New("plugin: module does not export " + EntryPoint)
	ErrTypeMismatch    = errors.New("plugin: factory built a system of a different component type")
)

// FuncFactory adapts a constructor into a Factory. Built-in systems use it.
type FuncFactory struct {
	FactoryName        string
	ComponentType      ids.StringID
	FactoryDescription string
	FactoryVersion     string
	New                func(m *entity.Manager) (entity.EntitySystem, error)
}

func (f *FuncFactory) Name() string        { return f.FactoryName }
func (f *FuncFactory) Type() ids.StringID  { return f.ComponentType }
func (f *FuncFactory) Description() string { return f.FactoryDescription }
func (f *FuncFactory) Version() string     { return f.FactoryVersion }

func (f *FuncFactory) Create(m *entity.Manager) (entity.EntitySystem, error) {
	return f.New(m)
}
