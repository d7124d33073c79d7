package node

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mezonai/textchain/chain"
	"github.com/mezonai/textchain/discovery"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
	"github.com/mezonai/textchain/outbox"
	"github.com/mezonai/textchain/p2p"
	"github.com/mezonai/textchain/protocol"
)

// Network is what the loop needs from the peer network layer.
type Network interface {
	discovery.Membership
	Self() peer.ID
	Events() <-chan p2p.Event
	Publish(data []byte) error
	Directory() discovery.Lister
}

// Node owns the chain and drives it from a single goroutine.
type Node struct {
	net     Network
	chain   *chain.Chain
	outbox  *outbox.Queue[protocol.Letter]
	handler *protocol.Handler
	bridge  *discovery.Bridge

	events <-chan p2p.Event
	input  <-chan string
}

func New(net Network, input <-chan string) *Node {
	q := outbox.New[protocol.Letter]()
	return &Node{
		net:     net,
		chain:   chain.New(),
		outbox:  q,
		handler: protocol.NewHandler(net.Self().String(), q),
		bridge:  discovery.NewBridge(net.Directory(), net),
		events:  net.Events(),
		input:   input,
	}
}

// Chain exposes the owned chain. Only touch it while Run is not executing.
func (n *Node) Chain() *chain.Chain {
	return n.chain
}

// Run processes events until the "exit" command or ctx ends. Handler
// failures are logged and never stop the loop.
func (n *Node) Run(ctx context.Context) error {
	defer n.outbox.Close()

	for {
		ev, ok := n.next(ctx)
		if !ok {
			logx.Info("NODE", "Shutting down: ", ctx.Err())
			return nil
		}
		if !n.dispatch(ev) {
			logx.Info("NODE", "Exit requested")
			return nil
		}
	}
}

// next blocks until one source is ready. Order among simultaneously ready
// sources is whatever select picks.
func (n *Node) next(ctx context.Context) (Event, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case ev, ok := <-n.events:
			if !ok {
				logx.Warn("NODE", "Network event stream closed")
				n.events = nil
				continue
			}
			return NetworkEvent{Event: ev}, true
		case line, ok := <-n.input:
			if !ok {
				logx.Warn("NODE", "Input closed, console commands disabled")
				n.input = nil
				continue
			}
			return InputEvent{Line: line}, true
		case <-n.outbox.Ready():
			letters := n.outbox.Drain()
			if len(letters) == 0 {
				continue
			}
			return ReplicationEvent{Letters: letters}, true
		}
	}
}

// dispatch runs the handler for ev to completion. It returns false only for
// the exit command.
func (n *Node) dispatch(ev Event) bool {
	switch e := ev.(type) {
	case NetworkEvent:
		n.handleNetwork(e.Event)
	case InputEvent:
		return n.handleInput(e.Line)
	case ReplicationEvent:
		n.handleReplication(e.Letters)
	}
	monitoring.SetOutboxDepth(n.outbox.Len())
	return true
}

func (n *Node) handleNetwork(ev p2p.Event) {
	switch e := ev.(type) {
	case p2p.AddressEvent:
		logx.Info("NODE", "Listening on address: ", e.Addr)
	case p2p.DialingEvent:
		logx.Info("NODE", "Dialing peer: ", e.Peer, " with local chain length ", n.chain.Len())
		n.handler.RequestOnDial(n.chain, e.Peer.String())
	case p2p.MessageEvent:
		n.handler.Handle(n.chain, e.From.String(), e.Data)
	case p2p.DiscoveredEvent:
		n.bridge.OnDiscovered(e.Peer)
	case p2p.ExpiredEvent:
		n.bridge.OnExpired(e.Peer)
	}
}

func (n *Node) handleInput(line string) bool {
	logx.Info("NODE", fmt.Sprintf("Received input line: %q", line))

	switch {
	case line == CommandExit:
		return false
	case line == CommandSize:
		logx.Info("NODE", "Discovered peers: ", n.net.Directory().Len())
	case line == "":
	case p2p.LooksLikePeerID(line) && n.isDiscovered(line):
		letter := protocol.NewRequest(line)
		n.publish(letter)
		logx.Info("NODE", "Requested chain from peer: ", letter.String())
	default:
		b := chain.Build(n.chain, line)
		n.chain.Push(b)
		n.publish(protocol.BlockMessage{Block: b})
	}
	return true
}

func (n *Node) handleReplication(letters []protocol.Letter) {
	for _, letter := range letters {
		n.publish(letter)
		logx.Info("NODE", "Published letter: ", letter.String())
	}
}

func (n *Node) isDiscovered(line string) bool {
	for _, id := range n.net.Directory().Peers() {
		if id.String() == line {
			return true
		}
	}
	return false
}

func (n *Node) publish(m protocol.Message) {
	data, err := protocol.Encode(m)
	if err != nil {
		logx.Error("NODE", "Failed to encode message: ", err)
		return
	}
	if err := n.net.Publish(data); err != nil {
		logx.Error("NODE", "Failed to publish message: ", err)
		return
	}

	kind := monitoring.MessageLetter
	if m.Type() == protocol.TypeBlock {
		kind = monitoring.MessageBlock
	}
	monitoring.RecordPublished(kind)
}
