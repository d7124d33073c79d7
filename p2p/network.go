package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/mezonai/textchain/discovery"
	"github.com/mezonai/textchain/exception"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/outbox"
)

// Libp2pNetwork is the peer network layer: a libp2p host with one floodsub
// topic and mDNS discovery. Everything it observes is delivered on Events.
type Libp2pNetwork struct {
	host      host.Host
	pubsub    *pubsub.PubSub
	topic     *pubsub.Topic
	sub       *pubsub.Subscription
	discovery *discovery.Service
	cfg       Config

	events   chan Event
	outgoing *outbox.Queue[[]byte]

	membersMu sync.Mutex
	members   map[peer.ID]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewNetwork(ctx context.Context, priv crypto.PrivKey, cfg Config, discCfg discovery.Config) (*Libp2pNetwork, error) {
	if len(cfg.ListenAddrs) == 0 {
		cfg.ListenAddrs = []string{DefaultListenAddr}
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.PublishWait <= 0 {
		cfg.PublishWait = DefaultPublishWait
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(cfg.ListenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	ps, err := pubsub.NewFloodSub(ctx, h)
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to join topic %s: %w", cfg.Topic, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		h.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", cfg.Topic, err)
	}

	ln := &Libp2pNetwork{
		host:     h,
		pubsub:   ps,
		topic:    topic,
		sub:      sub,
		cfg:      cfg,
		events:   make(chan Event, eventBufferSize),
		outgoing: outbox.New[[]byte](),
		members:  make(map[peer.ID]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	ln.discovery = discovery.NewService(h, discCfg, ln)

	if err := ln.watchAddresses(); err != nil {
		ln.Close()
		return nil, err
	}

	exception.SafeGoWithPanic("TopicReader", ln.readTopic)
	exception.SafeGo("TopicPublisher", ln.publishLoop)

	if err := ln.discovery.Start(ctx); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to start discovery: %w", err)
	}

	logx.Info("NETWORK", "Started node with peer id: ", h.ID().String())
	for _, addr := range ln.Addrs() {
		logx.Info("NETWORK", "Reachable at ", addr)
	}
	return ln, nil
}

func (ln *Libp2pNetwork) Self() peer.ID {
	return ln.host.ID()
}

func (ln *Libp2pNetwork) Events() <-chan Event {
	return ln.events
}

// Directory lists the peers discovery currently knows.
func (ln *Libp2pNetwork) Directory() discovery.Lister {
	return ln.discovery.Directory()
}

func (ln *Libp2pNetwork) Addrs() []string {
	return FullAddrs(ln.host.ID(), ln.host.Addrs())
}

// Publish hands data to the topic publisher without waiting for delivery.
// The queue is unbounded, so nothing is dropped while the topic has no peers.
func (ln *Libp2pNetwork) Publish(data []byte) error {
	if err := ln.ctx.Err(); err != nil {
		return err
	}
	if err := ln.outgoing.Push(data); err != nil {
		return fmt.Errorf("failed to queue publish: %w", err)
	}
	return nil
}

// AddPeer makes info part of the broadcast set by dialing it. Repeated calls
// for a member are no-ops.
func (ln *Libp2pNetwork) AddPeer(info peer.AddrInfo) {
	ln.membersMu.Lock()
	if _, ok := ln.members[info.ID]; ok {
		ln.membersMu.Unlock()
		return
	}
	ln.members[info.ID] = struct{}{}
	ln.membersMu.Unlock()

	exception.SafeGo("Dial", func() {
		ln.emit(DialingEvent{Peer: info.ID})

		ctx, cancel := context.WithTimeout(ln.ctx, dialTimeout)
		defer cancel()
		if err := ln.host.Connect(ctx, info); err != nil {
			logx.Warn("NETWORK", "Failed to connect to peer ", info.ID.String(), ": ", err)
			return
		}
		logx.Info("NETWORK", "Connected to peer: ", info.ID.String())
	})
}

// RemovePeer drops id from the broadcast set and closes its connections.
func (ln *Libp2pNetwork) RemovePeer(id peer.ID) {
	ln.membersMu.Lock()
	_, ok := ln.members[id]
	delete(ln.members, id)
	ln.membersMu.Unlock()
	if !ok {
		return
	}

	if err := ln.host.Network().ClosePeer(id); err != nil {
		logx.Warn("NETWORK", "Failed to close peer ", id.String(), ": ", err)
	}
}

// PeerDiscovered implements discovery.Notifier.
func (ln *Libp2pNetwork) PeerDiscovered(info peer.AddrInfo) {
	ln.emit(DiscoveredEvent{Peer: info})
}

// PeerExpired implements discovery.Notifier.
func (ln *Libp2pNetwork) PeerExpired(id peer.ID) {
	ln.emit(ExpiredEvent{Peer: id})
}

func (ln *Libp2pNetwork) emit(ev Event) {
	select {
	case ln.events <- ev:
	case <-ln.ctx.Done():
	}
}

func (ln *Libp2pNetwork) readTopic() {
	for {
		msg, err := ln.sub.Next(ln.ctx)
		if err != nil {
			if ln.ctx.Err() != nil {
				return
			}
			logx.Warn("NETWORK", "Next error:", err)
			continue
		}
		if msg.ReceivedFrom == ln.host.ID() {
			continue
		}
		ln.emit(MessageEvent{From: msg.GetFrom(), Data: msg.Data})
	}
}

// publishLoop sends payloads in order, one queued burst at a time. Before a
// burst it waits up to PublishWait for the topic to have a peer so a request
// issued right after dialing is not lost to an empty topic.
func (ln *Libp2pNetwork) publishLoop() {
	for {
		select {
		case <-ln.ctx.Done():
			return
		case <-ln.outgoing.Ready():
			batch := ln.outgoing.Drain()
			if len(batch) == 0 {
				continue
			}
			ln.awaitTopicPeer()
			for _, data := range batch {
				if err := ln.topic.Publish(ln.ctx, data); err != nil {
					if ln.ctx.Err() != nil {
						return
					}
					logx.Error("NETWORK", "Failed to publish: ", err)
				}
			}
		}
	}
}

func (ln *Libp2pNetwork) awaitTopicPeer() {
	if len(ln.topic.ListPeers()) > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ln.ctx, ln.cfg.PublishWait)
	defer cancel()
	ticker := time.NewTicker(topicPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Debug("NETWORK", "No topic peer after ", ln.cfg.PublishWait, ", publishing anyway")
			return
		case <-ticker.C:
			if len(ln.topic.ListPeers()) > 0 {
				return
			}
		}
	}
}

// watchAddresses reports the current listen addresses and every address
// added later.
func (ln *Libp2pNetwork) watchAddresses() error {
	sub, err := ln.host.EventBus().Subscribe(new(event.EvtLocalAddressesUpdated))
	if err != nil {
		return fmt.Errorf("failed to subscribe to address updates: %w", err)
	}

	seen := make(map[string]struct{})
	report := func(addr ma.Multiaddr) {
		if _, ok := seen[addr.String()]; ok {
			return
		}
		seen[addr.String()] = struct{}{}
		ln.emit(AddressEvent{Addr: addr})
	}

	initial := ln.host.Addrs()
	exception.SafeGo("AddressWatcher", func() {
		defer sub.Close()
		for _, addr := range initial {
			report(addr)
		}
		for {
			select {
			case <-ln.ctx.Done():
				return
			case raw, ok := <-sub.Out():
				if !ok {
					return
				}
				evt, ok := raw.(event.EvtLocalAddressesUpdated)
				if !ok {
					continue
				}
				for _, update := range evt.Current {
					if update.Action == event.Added {
						report(update.Address)
					}
				}
			}
		}
	})
	return nil
}

// this func will call if node shutdown
func (ln *Libp2pNetwork) Close() error {
	var err error
	ln.closeOnce.Do(func() {
		ln.discovery.Close()
		ln.outgoing.Close()
		ln.cancel()
		ln.sub.Cancel()
		if cerr := ln.topic.Close(); cerr != nil {
			logx.Warn("NETWORK", "Failed to close topic: ", cerr)
		}
		err = ln.host.Close()
	})
	return err
}
