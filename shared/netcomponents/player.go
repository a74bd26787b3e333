package netcomponents

import (
	"github.com/yohamta/donburi"

	"github.com/playsmith/netplay/shared/messages"
)

// PlayerData binds an entity to the client that controls it. The binding
// is immutable after spawn.
type PlayerData struct {
	Client messages.ClientId
}

var Player = donburi.NewComponentType[PlayerData]()
