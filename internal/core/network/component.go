package network

import (
	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// TypeNet is the component type of NetComponent and NetSystem.
var TypeNet = ids.SID("Net")

// NetComponent marks an entity as known to the network system. It carries
// no properties.
type NetComponent struct {
	entity.BaseComponent
}

func (*NetComponent) Type() ids.StringID { return TypeNet }

func (*NetComponent) Properties() property.Map { return property.Map{} }

func (*NetComponent) SetProperty(name ids.StringID, v property.Value) error {
	return entity.PropertyError(TypeNet, name, v, property.KindInvalid)
}
