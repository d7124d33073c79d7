package discovery

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

const (
	DefaultServiceTag    = "textchain"
	DefaultPeerTTL       = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// Config controls local-network discovery.
type Config struct {
	// ServiceTag is the mDNS service name peers must share to see each other.
	ServiceTag string
	// PeerTTL is how long a peer stays listed without being seen again.
	PeerTTL       time.Duration
	SweepInterval time.Duration
	// StaticPeers are /p2p multiaddrs treated as permanently discovered.
	StaticPeers []string
	// DisableMDNS leaves static peers as the only discovery source.
	DisableMDNS bool
}

func (c Config) withDefaults() Config {
	if c.ServiceTag == "" {
		c.ServiceTag = DefaultServiceTag
	}
	if c.PeerTTL <= 0 {
		c.PeerTTL = DefaultPeerTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Notifier receives presence changes from the discovery service. Calls come
// from discovery goroutines.
type Notifier interface {
	PeerDiscovered(peer.AddrInfo)
	PeerExpired(peer.ID)
}

// Lister answers questions about the peers discovery currently lists.
type Lister interface {
	Has(peer.ID) bool
	Peers() []peer.ID
	Len() int
}

// Membership is the broadcast peer set fed by discovery.
type Membership interface {
	AddPeer(peer.AddrInfo)
	RemovePeer(peer.ID)
}
