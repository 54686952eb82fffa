package entity

import "errors"

var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrNoSystem          = errors.New("no entity system registered for component type")
	ErrSystemExists      = errors.New("entity system already registered for component type")
	ErrComponentExists   = errors.New("entity already has a component of this type")
	ErrComponentNotFound = errors.New("component not found")
	ErrWrongType         = errors.New("wrong component or system type")
	ErrUnknownProperty   = errors.New("unknown property")
	ErrPropertyKind      = errors.New("property has wrong kind")
)
