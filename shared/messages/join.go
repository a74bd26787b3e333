package messages

// JoinRequest initiates the handshake after a transport connects.
type JoinRequest struct {
	Version        string
	PlayerName     string
	ReconnectToken string
}

// JoinAccepted confirms the handshake and tells the client which entity
// it controls.
type JoinAccepted struct {
	ClientId       ClientId
	PlayerEntity   NetworkId
	Tick           uint64 // authoritative tick at acceptance
	TickRate       int
	ServerName     string
	ReconnectToken string
}

// JoinRejected terminates the handshake with a reason.
type JoinRejected struct {
	Reason string
}
