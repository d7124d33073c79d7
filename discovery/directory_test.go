package discovery

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeerID(t *testing.T) peer.ID {
	t.Helper()
	_, pub, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	id, err := peer.IDFromPublicKey(pub)
	require.NoError(t, err)
	return id
}

func TestDirectoryFound(t *testing.T) {
	d := NewDirectory(time.Minute)
	id := newPeerID(t)

	assert.True(t, d.Found(id))
	assert.False(t, d.Found(id), "second sighting is not new")
	assert.True(t, d.Has(id))
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, []peer.ID{id}, d.Peers())
}

func TestDirectoryExpire(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := start
	d := NewDirectory(time.Minute)
	d.now = func() time.Time { return clock }

	stale, fresh, pinned := newPeerID(t), newPeerID(t), newPeerID(t)
	d.Found(stale)
	d.Pin(pinned)

	clock = start.Add(50 * time.Second)
	d.Found(fresh)

	expired := d.Expire(start.Add(61 * time.Second))
	assert.Equal(t, []peer.ID{stale}, expired)
	assert.False(t, d.Has(stale))
	assert.True(t, d.Has(fresh))
	assert.True(t, d.Has(pinned))

	assert.Empty(t, d.Expire(start.Add(61*time.Second)), "expiry is idempotent")

	expired = d.Expire(start.Add(time.Hour))
	assert.Equal(t, []peer.ID{fresh}, expired)
	assert.True(t, d.Has(pinned))
}

func TestDirectorySightingRefreshesTTL(t *testing.T) {
	start := time.Unix(1000, 0)
	clock := start
	d := NewDirectory(time.Minute)
	d.now = func() time.Time { return clock }

	id := newPeerID(t)
	d.Found(id)

	clock = start.Add(55 * time.Second)
	d.Found(id)

	assert.Empty(t, d.Expire(start.Add(90*time.Second)))
	assert.Equal(t, []peer.ID{id}, d.Expire(start.Add(2*time.Minute)))
}

func TestDirectoryPinUpgradesExisting(t *testing.T) {
	d := NewDirectory(time.Nanosecond)
	id := newPeerID(t)

	assert.True(t, d.Found(id))
	assert.False(t, d.Pin(id))
	assert.Empty(t, d.Expire(time.Now().Add(time.Hour)))
}

func TestDirectoryRefreshKeepsLivePeers(t *testing.T) {
	start := time.Unix(1000, 0)
	d := NewDirectory(DefaultPeerTTL)
	d.now = func() time.Time { return start }

	live, gone := newPeerID(t), newPeerID(t)
	d.Found(live)
	d.Found(gone)

	// mDNS does not announce a peer again within the TTL.
	later := start.Add(DefaultPeerTTL + time.Second)
	d.Refresh(later, func(id peer.ID) bool { return id == live })

	assert.Equal(t, []peer.ID{gone}, d.Expire(later))
	assert.True(t, d.Has(live))
	assert.False(t, d.Has(gone))
}
