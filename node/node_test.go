package node

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/textchain/chain"
	"github.com/mezonai/textchain/discovery"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/p2p"
	"github.com/mezonai/textchain/protocol"
)

type fakeNetwork struct {
	self      peer.ID
	events    chan p2p.Event
	dir       *discovery.Directory
	published chan protocol.Message
	failWith  error

	mu      sync.Mutex
	members map[peer.ID]struct{}
}

func newFakeNetwork(t *testing.T) *fakeNetwork {
	return &fakeNetwork{
		self:      newPeerID(t),
		events:    make(chan p2p.Event, 16),
		dir:       discovery.NewDirectory(time.Minute),
		published: make(chan protocol.Message, 16),
		members:   make(map[peer.ID]struct{}),
	}
}

func (f *fakeNetwork) Self() peer.ID { return f.self }

func (f *fakeNetwork) Events() <-chan p2p.Event { return f.events }

func (f *fakeNetwork) Directory() discovery.Lister { return f.dir }

func (f *fakeNetwork) AddPeer(info peer.AddrInfo) { f.setMember(info.ID, true) }

func (f *fakeNetwork) RemovePeer(id peer.ID) { f.setMember(id, false) }

func (f *fakeNetwork) setMember(id peer.ID, in bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in {
		f.members[id] = struct{}{}
	} else {
		delete(f.members, id)
	}
}

func (f *fakeNetwork) isMember(id peer.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[id]
	return ok
}

func (f *fakeNetwork) Publish(data []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	f.published <- msg
	return nil
}

func (f *fakeNetwork) expectPublished(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-f.published:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
		return nil
	}
}

func (f *fakeNetwork) expectNothingPublished(t *testing.T) {
	t.Helper()
	select {
	case msg := <-f.published:
		t.Fatalf("unexpected publish: %#v", msg)
	default:
	}
}

func newPeerID(t *testing.T) peer.ID {
	t.Helper()
	_, pub, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	id, err := peer.IDFromPublicKey(pub)
	require.NoError(t, err)
	return id
}

func encode(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	data, err := protocol.Encode(m)
	require.NoError(t, err)
	return data
}

// step waits for the next event and dispatches it, like one loop iteration.
func step(t *testing.T, n *Node) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, ok := n.next(ctx)
	require.True(t, ok, "no event became ready")
	return n.dispatch(ev)
}

func TestInputTextAppendsAndBroadcastsBlock(t *testing.T) {
	net := newFakeNetwork(t)
	input := make(chan string, 2)
	n := New(net, input)

	input <- "hello"
	require.True(t, step(t, n))

	genesis := chain.Block{Previous: chain.GenesisPrevious, Text: "hello"}
	assert.Equal(t, []chain.Block{genesis}, n.Chain().Blocks())
	assert.Equal(t, protocol.BlockMessage{Block: genesis}, net.expectPublished(t))

	input <- "world"
	require.True(t, step(t, n))

	next := chain.Block{Previous: chain.Hash(genesis), Text: "world"}
	assert.Equal(t, []chain.Block{genesis, next}, n.Chain().Blocks())
	assert.Equal(t, protocol.BlockMessage{Block: next}, net.expectPublished(t))
}

func TestEmptyInputIsIgnored(t *testing.T) {
	net := newFakeNetwork(t)
	input := make(chan string, 1)
	n := New(net, input)

	input <- ""
	require.True(t, step(t, n))

	assert.Zero(t, n.Chain().Len())
	net.expectNothingPublished(t)
}

func TestSizeCommandDoesNotTouchChain(t *testing.T) {
	net := newFakeNetwork(t)
	net.dir.Found(newPeerID(t))
	input := make(chan string, 1)
	n := New(net, input)

	input <- CommandSize
	require.True(t, step(t, n))

	assert.Zero(t, n.Chain().Len())
	net.expectNothingPublished(t)
}

func TestExitStopsRun(t *testing.T) {
	net := newFakeNetwork(t)
	input := make(chan string, 1)
	n := New(net, input)

	input <- CommandExit

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on exit")
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestClosedInputKeepsLoopAlive(t *testing.T) {
	net := newFakeNetwork(t)
	input := make(chan string)
	close(input)
	n := New(net, input)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := n.next(ctx)
	assert.False(t, ok)
	assert.Nil(t, n.input)

	addr, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	net.events <- p2p.AddressEvent{Addr: addr}
	require.True(t, step(t, n))
}

func TestPeerIDInputSendsTargetedRequest(t *testing.T) {
	net := newFakeNetwork(t)
	other := newPeerID(t)
	net.dir.Found(other)
	input := make(chan string, 1)
	n := New(net, input)

	input <- other.String()
	require.True(t, step(t, n))

	assert.Equal(t, protocol.NewRequest(other.String()), net.expectPublished(t))
	assert.Zero(t, n.Chain().Len(), "a peer id must not become a block")
}

func TestUndiscoveredPeerIDBecomesBlock(t *testing.T) {
	net := newFakeNetwork(t)
	stranger := newPeerID(t).String()
	require.Len(t, stranger, p2p.PeerIDLength)
	input := make(chan string, 1)
	n := New(net, input)

	input <- stranger
	require.True(t, step(t, n))

	require.Equal(t, 1, n.Chain().Len())
	msg := net.expectPublished(t)
	assert.Equal(t, protocol.TypeBlock, msg.Type())
}

func TestDialingOnEmptyChainQueuesRequest(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	dialed := newPeerID(t)

	net.events <- p2p.DialingEvent{Peer: dialed}
	require.True(t, step(t, n))
	net.expectNothingPublished(t)

	// The queued request goes out on the following iteration.
	require.True(t, step(t, n))
	assert.Equal(t, protocol.NewRequest(dialed.String()), net.expectPublished(t))
}

func TestDialingWithChainDoesNothing(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	n.Chain().Push(chain.Build(n.Chain(), "mine"))

	net.events <- p2p.DialingEvent{Peer: newPeerID(t)}
	require.True(t, step(t, n))

	assert.Zero(t, n.outbox.Len())
}

func TestInboundBlockExtendsChain(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	genesis := chain.Block{Previous: chain.GenesisPrevious, Text: "hello"}

	net.events <- p2p.MessageEvent{From: newPeerID(t), Data: encode(t, protocol.BlockMessage{Block: genesis})}
	require.True(t, step(t, n))

	assert.Equal(t, []chain.Block{genesis}, n.Chain().Blocks())
	net.expectNothingPublished(t)
}

func TestOpenRequestIsAnsweredThroughOutbox(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	b0 := chain.Block{Previous: chain.GenesisPrevious, Text: "only"}
	n.Chain().Push(b0)
	requester := newPeerID(t)

	net.events <- p2p.MessageEvent{From: requester, Data: encode(t, protocol.NewRequest(""))}
	require.True(t, step(t, n))
	net.expectNothingPublished(t)

	require.True(t, step(t, n))
	assert.Equal(t, protocol.Letter{
		Chain:    []chain.Block{b0},
		Receiver: requester.String(),
		Request:  false,
	}, net.expectPublished(t))
}

func TestLongerResponseReplacesChain(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	n.Chain().Push(chain.Block{Previous: chain.GenesisPrevious, Text: "mine"})

	remote := []chain.Block{
		{Previous: chain.GenesisPrevious, Text: "a"},
		{Previous: "x", Text: "b"},
		{Previous: "y", Text: "c"},
	}
	letter := protocol.Letter{Chain: remote, Receiver: net.self.String()}

	net.events <- p2p.MessageEvent{From: newPeerID(t), Data: encode(t, letter)}
	require.True(t, step(t, n))

	assert.Equal(t, remote, n.Chain().Blocks())
}

func TestDiscoveryEventsDriveMembership(t *testing.T) {
	net := newFakeNetwork(t)
	n := New(net, nil)
	other := newPeerID(t)

	net.dir.Found(other)
	net.events <- p2p.DiscoveredEvent{Peer: peer.AddrInfo{ID: other}}
	require.True(t, step(t, n))
	assert.True(t, net.isMember(other))

	// Still listed: the expiry is stale and must be ignored.
	net.events <- p2p.ExpiredEvent{Peer: other}
	require.True(t, step(t, n))
	assert.True(t, net.isMember(other))

	net.dir.Expire(time.Now().Add(time.Hour))
	net.events <- p2p.ExpiredEvent{Peer: other}
	require.True(t, step(t, n))
	assert.False(t, net.isMember(other))
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	net := newFakeNetwork(t)
	net.failWith = errors.New("topic closed")
	input := make(chan string, 2)
	n := New(net, input)

	input <- "hello"
	input <- "again"
	require.True(t, step(t, n))
	require.True(t, step(t, n))

	assert.Equal(t, 2, n.Chain().Len())
}

func TestRunDrainsEverySource(t *testing.T) {
	net := newFakeNetwork(t)
	input := make(chan string)
	n := New(net, input)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	input <- "hello"
	first := net.expectPublished(t)
	require.Equal(t, protocol.TypeBlock, first.Type())

	requester := newPeerID(t)
	net.events <- p2p.MessageEvent{From: requester, Data: encode(t, protocol.NewRequest(""))}
	response, ok := net.expectPublished(t).(protocol.Letter)
	require.True(t, ok)
	assert.Equal(t, requester.String(), response.Receiver)
	assert.Len(t, response.Chain, 1)

	input <- CommandExit
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestReadLines(t *testing.T) {
	lines := ReadLines(context.Background(), strings.NewReader("hello\r\nsize\n\nexit"))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	assert.Equal(t, []string{"hello", "size", "", "exit"}, got)
}

func TestReadLinesAcceptsLongLines(t *testing.T) {
	long := strings.Repeat("a", 70*1024)
	lines := ReadLines(context.Background(), strings.NewReader(long+"\nsize\nexit\n"))

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	require.Len(t, got, 3)
	assert.Equal(t, long, got[0])
	assert.Equal(t, []string{CommandSize, CommandExit}, got[1:])
}

func TestLongLineBecomesBlockAndExitStillWorks(t *testing.T) {
	net := newFakeNetwork(t)
	long := strings.Repeat("b", 100*1024)
	n := New(net, ReadLines(context.Background(), strings.NewReader(long+"\nexit\n")))

	done := make(chan error, 1)
	go func() { done <- n.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("exit after a long line did not stop run")
	}

	blocks := n.Chain().Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, long, blocks[0].Text)
}

func TestDialingIsLoggedInPlainWords(t *testing.T) {
	var buf bytes.Buffer
	logx.SetOutput(&buf)
	t.Cleanup(func() { logx.SetOutput(os.Stdout) })

	net := newFakeNetwork(t)
	n := New(net, nil)
	dialed := newPeerID(t)

	net.events <- p2p.DialingEvent{Peer: dialed}
	require.True(t, step(t, n))

	out := buf.String()
	assert.Contains(t, out, "Dialing peer: "+dialed.String())
	assert.NotContains(t, out, "Event::")
}
