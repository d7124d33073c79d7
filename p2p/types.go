package p2p

import (
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Event is a notification from the network layer to the node's event loop.
type Event interface {
	isNetworkEvent()
}

// AddressEvent reports a new local listen address.
type AddressEvent struct {
	Addr ma.Multiaddr
}

// DialingEvent reports that an outbound dial to Peer has started.
type DialingEvent struct {
	Peer peer.ID
}

// MessageEvent carries one payload received on the broadcast topic. From is
// the original publisher.
type MessageEvent struct {
	From peer.ID
	Data []byte
}

// DiscoveredEvent reports a newly listed peer.
type DiscoveredEvent struct {
	Peer peer.AddrInfo
}

// ExpiredEvent reports a peer discovery no longer lists.
type ExpiredEvent struct {
	Peer peer.ID
}

func (AddressEvent) isNetworkEvent()    {}
func (DialingEvent) isNetworkEvent()    {}
func (MessageEvent) isNetworkEvent()    {}
func (DiscoveredEvent) isNetworkEvent() {}
func (ExpiredEvent) isNetworkEvent()    {}

func (e AddressEvent) String() string { return fmt.Sprintf("Address(%s)", e.Addr) }
func (e DialingEvent) String() string { return fmt.Sprintf("Dialing(%s)", e.Peer) }

// Config is what the network layer needs to start.
type Config struct {
	ListenAddrs []string
	Topic       string
	// PublishWait bounds how long a publish waits for the topic to have at
	// least one peer before sending anyway.
	PublishWait time.Duration
}
