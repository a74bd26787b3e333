package protocol

import (
	"github.com/playsmith/netplay/replication"
	"github.com/playsmith/netplay/shared/netcomponents"
)

// Component sync id constants - id 0 is reserved by the registry.
const (
	SyncIDTransform uint = 10
	SyncIDPlayer    uint = 11
)

// RegisterComponents builds the registry for the replicated component
// set. Server and every client must register identically or wire ids
// will not line up. The caller freezes the registry once the simulation
// is wired up.
func RegisterComponents() (*replication.Registry, error) {
	r := replication.NewRegistry()

	// Transform: authoritative on the server, predicted by the
	// controlling client, interpolated by everyone else.
	if err := replication.Register(r, SyncIDTransform, netcomponents.Transform,
		replication.WithDirection(replication.ServerToClient),
		replication.WithMode(replication.ModePredicted),
		replication.WithInterp(netcomponents.LerpTransform),
		replication.WithCorrection(netcomponents.LerpTransform),
	); err != nil {
		return nil, err
	}

	// Player: ownership marker, no smoothing (discrete, immutable).
	if err := replication.Register(r, SyncIDPlayer, netcomponents.Player,
		replication.WithDirection(replication.ClientToServer),
	); err != nil {
		return nil, err
	}

	return r, nil
}
