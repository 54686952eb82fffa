package plugin

import (
	goplugin "plugin"
)

// Module is an opened dynamic module.
type Module interface {
	Lookup(symbol string) (any, error)
}

// Opener opens dynamic modules by path. Implementations must be safe for
// concurrent use.
type Opener interface {
	Open(path string) (Module, error)
}

// NativeOpener opens modules through the Go runtime's plugin support.
type NativeOpener struct{}

func (NativeOpener) Open(path string) (Module, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	return nativeModule{p: p}, nil
}

type nativeModule struct {
	p *goplugin.Plugin
}

func (m nativeModule) Lookup(symbol string) (any, error) {
	return m.p.Lookup(symbol)
}
