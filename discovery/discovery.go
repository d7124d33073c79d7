package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/mezonai/textchain/exception"
	"github.com/mezonai/textchain/logx"
	"github.com/pkg/errors"
)

// Service finds peers on the local network over mDNS, plus any configured
// static peers, and reports presence changes to a Notifier.
type Service struct {
	cfg    Config
	host   host.Host
	dir    *Directory
	notify Notifier
	mdns   mdns.Service

	closeOnce sync.Once
	cancel    context.CancelFunc
}

func NewService(h host.Host, cfg Config, notify Notifier) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:    cfg,
		host:   h,
		dir:    NewDirectory(cfg.PeerTTL),
		notify: notify,
	}
}

func (s *Service) Directory() *Directory {
	return s.dir
}

// HandlePeerFound implements mdns.Notifee.
func (s *Service) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == s.host.ID() || len(info.Addrs) == 0 {
		return
	}
	s.host.Peerstore().AddAddrs(info.ID, info.Addrs, s.cfg.PeerTTL)
	if !s.dir.Found(info.ID) {
		return
	}
	s.notify.PeerDiscovered(info)
}

// Start launches mDNS, pins static peers and begins sweeping for lapsed
// peers.
func (s *Service) Start(ctx context.Context) error {
	static, err := ResolveAndParseMultiAddrs(s.cfg.StaticPeers)
	if err != nil {
		return errors.WithMessage(err, "failed to parse static peers")
	}

	if !s.cfg.DisableMDNS {
		s.mdns = mdns.NewMdnsService(s.host, s.cfg.ServiceTag, s)
		if err := s.mdns.Start(); err != nil {
			return errors.Wrap(err, "failed to start mdns")
		}
		logx.Info("DISCOVERY", "mDNS service started with tag: ", s.cfg.ServiceTag)
	}

	ctx, s.cancel = context.WithCancel(ctx)

	for _, info := range static {
		if info.ID == s.host.ID() {
			continue
		}
		s.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.PermanentAddrTTL)
		if s.dir.Pin(info.ID) {
			s.notify.PeerDiscovered(info)
		}
	}

	exception.SafeGo("DiscoverySweep", func() {
		s.sweep(ctx)
	})
	return nil
}

func (s *Service) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dir.Refresh(now, s.connected)
			for _, id := range s.dir.Expire(now) {
				s.notify.PeerExpired(id)
			}
		}
	}
}

// connected reports whether the host still holds a live connection to id.
func (s *Service) connected(id peer.ID) bool {
	return s.host.Network().Connectedness(id) == network.Connected
}

func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.mdns != nil {
			err = s.mdns.Close()
		}
	})
	if err != nil {
		logx.Error("DISCOVERY", "Failed to close mdns:", err)
	}
	return err
}
