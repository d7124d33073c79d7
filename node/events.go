package node

import (
	"github.com/mezonai/textchain/p2p"
	"github.com/mezonai/textchain/protocol"
)

// Event is one wake-up of the loop. Exactly one source produced it.
type Event interface {
	source() string
}

// NetworkEvent wraps a notification from the peer network layer.
type NetworkEvent struct {
	p2p.Event
}

// InputEvent is one console line.
type InputEvent struct {
	Line string
}

// ReplicationEvent is everything that was waiting in the outbox.
type ReplicationEvent struct {
	Letters []protocol.Letter
}

func (NetworkEvent) source() string     { return "network" }
func (InputEvent) source() string       { return "input" }
func (ReplicationEvent) source() string { return "replication" }
