// Package protocol frames wire messages and binds the replicated
// component set into a registry. Both ends of every connection, local or
// remote, speak exactly these frames.
package protocol

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/klauspost/compress/zstd"

	"github.com/playsmith/netplay/shared/messages"
)

// Frame layout: [kind byte][flags byte][payload]. The payload is msgpack,
// zstd-compressed when the flag bit is set.
const (
	kindJoinRequest uint8 = iota + 1
	kindJoinAccepted
	kindJoinRejected
	kindInputIntent
	kindSnapshot
)

const flagZstd uint8 = 0x01

// CompressThreshold is the payload size in bytes above which frames are
// zstd-compressed. Snapshots with many entities cross it; input intents
// never do.
const CompressThreshold = 512

var msgpackHandle = &codec.MsgpackHandle{}

var (
	zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// Encode frames a wire message. Unregistered message types are an error.
func Encode(msg any) ([]byte, error) {
	var kind uint8
	switch msg.(type) {
	case messages.JoinRequest:
		kind = kindJoinRequest
	case messages.JoinAccepted:
		kind = kindJoinAccepted
	case messages.JoinRejected:
		kind = kindJoinRejected
	case messages.InputIntent:
		kind = kindInputIntent
	case messages.Snapshot:
		kind = kindSnapshot
	default:
		return nil, fmt.Errorf("protocol: cannot encode message type %T", msg)
	}

	var payload []byte
	if err := codec.NewEncoderBytes(&payload, msgpackHandle).Encode(msg); err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", msg, err)
	}

	var flags uint8
	if len(payload) > CompressThreshold {
		payload = zstdEnc.EncodeAll(payload, nil)
		flags |= flagZstd
	}

	out := make([]byte, 0, len(payload)+2)
	out = append(out, kind, flags)
	return append(out, payload...), nil
}

// Decode unpacks a framed wire message.
func Decode(frame []byte) (any, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("protocol: frame too short (%d bytes)", len(frame))
	}
	kind, flags, payload := frame[0], frame[1], frame[2:]

	if flags&flagZstd != 0 {
		var err error
		payload, err = zstdDec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("protocol: decompress frame kind %d: %w", kind, err)
		}
	}

	decode := func(v any) error {
		return codec.NewDecoderBytes(payload, msgpackHandle).Decode(v)
	}

	var (
		msg any
		err error
	)
	switch kind {
	case kindJoinRequest:
		var m messages.JoinRequest
		err = decode(&m)
		msg = m
	case kindJoinAccepted:
		var m messages.JoinAccepted
		err = decode(&m)
		msg = m
	case kindJoinRejected:
		var m messages.JoinRejected
		err = decode(&m)
		msg = m
	case kindInputIntent:
		var m messages.InputIntent
		err = decode(&m)
		msg = m
	case kindSnapshot:
		var m messages.Snapshot
		err = decode(&m)
		msg = m
	default:
		return nil, fmt.Errorf("protocol: unknown frame kind %d", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode frame kind %d: %w", kind, err)
	}
	return msg, nil
}
