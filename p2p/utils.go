package p2p

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// FullAddrs appends /p2p/<id> to each address so it can be pasted into a
// static peer list.
func FullAddrs(id peer.ID, addrs []ma.Multiaddr) []string {
	var out []string
	for _, addr := range addrs {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr.String(), id.String()))
	}
	return out
}
