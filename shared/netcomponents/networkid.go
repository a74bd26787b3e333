package netcomponents

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"

	"github.com/playsmith/netplay/shared/messages"
)

// NetworkIdData tags a world entity with its wire identity.
type NetworkIdData struct {
	Id messages.NetworkId
}

var NetworkId = donburi.NewComponentType[NetworkIdData]()

// NetworkEntityQuery iterates every replicated entity in a world.
var NetworkEntityQuery = donburi.NewQuery(filter.Contains(NetworkId))

// FindByNetworkId returns the entry tagged with id, or nil.
func FindByNetworkId(world donburi.World, id messages.NetworkId) *donburi.Entry {
	var found *donburi.Entry
	NetworkEntityQuery.Each(world, func(entry *donburi.Entry) {
		if found == nil && NetworkId.Get(entry).Id == id {
			found = entry
		}
	})
	return found
}
