package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

type entry struct {
	lastSeen time.Time
	pinned   bool
}

// Directory is the set of peers discovery currently lists. Entries lapse
// after the TTL unless seen again; pinned entries never lapse.
type Directory struct {
	mu    sync.RWMutex
	peers map[peer.ID]*entry
	ttl   time.Duration
	now   func() time.Time
}

func NewDirectory(ttl time.Duration) *Directory {
	return &Directory{
		peers: make(map[peer.ID]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Found records a sighting of id and reports whether the peer is new.
func (d *Directory) Found(id peer.ID) bool {
	return d.record(id, false)
}

// Pin lists id permanently and reports whether the peer is new.
func (d *Directory) Pin(id peer.ID) bool {
	return d.record(id, true)
}

func (d *Directory) record(id peer.ID, pinned bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.peers[id]; ok {
		e.lastSeen = d.now()
		e.pinned = e.pinned || pinned
		return false
	}
	d.peers[id] = &entry{lastSeen: d.now(), pinned: pinned}
	return true
}

func (d *Directory) Has(id peer.ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.peers[id]
	return ok
}

// Peers returns the listed peer ids in a stable order.
func (d *Directory) Peers() []peer.ID {
	d.mu.RLock()
	ids := make([]peer.ID, 0, len(d.peers))
	for id := range d.peers {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Refresh marks every listed peer for which alive reports true as seen at
// now. mDNS announces a peer again only after its record lapses, which is far
// longer than the TTL, so liveness has to come from somewhere else.
func (d *Directory) Refresh(now time.Time, alive func(peer.ID) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, e := range d.peers {
		if alive(id) {
			e.lastSeen = now
		}
	}
}

// Expire drops every unpinned peer not seen within the TTL before now and
// returns them.
func (d *Directory) Expire(now time.Time) []peer.ID {
	d.mu.Lock()
	defer d.mu.Unlock()

	var expired []peer.ID
	for id, e := range d.peers {
		if e.pinned || now.Sub(e.lastSeen) < d.ttl {
			continue
		}
		delete(d.peers, id)
		expired = append(expired, id)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}
