package discovery

import (
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
)

// Bridge keeps broadcast membership in step with discovery notifications.
// Both operations are idempotent; nothing is retried.
type Bridge struct {
	lister  Lister
	members Membership
}

func NewBridge(lister Lister, members Membership) *Bridge {
	return &Bridge{
		lister:  lister,
		members: members,
	}
}

func (b *Bridge) OnDiscovered(info peer.AddrInfo) {
	b.members.AddPeer(info)
	monitoring.SetPeerCount(b.lister.Len())
	logx.Info("DISCOVERY", "Discovered peer: ", info.ID.String(), " ", info.Addrs)
}

// OnExpired removes id from membership unless discovery has listed it again
// in the meantime.
func (b *Bridge) OnExpired(id peer.ID) {
	monitoring.SetPeerCount(b.lister.Len())
	if b.lister.Has(id) {
		return
	}
	b.members.RemovePeer(id)
	logx.Info("DISCOVERY", "Peer expired: ", id.String())
}
