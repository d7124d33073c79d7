package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mezonai/textchain/config"
	"github.com/mezonai/textchain/discovery"
	"github.com/mezonai/textchain/exception"
	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/monitoring"
	"github.com/mezonai/textchain/node"
	"github.com/mezonai/textchain/p2p"
)

var (
	configPath  string
	listenAddrs []string
	topic       string
	serviceTag  string
	staticPeers []string
	disableMDNS bool
	keyFile     string
	logDelayMs  int
	logFile     string
	metricsAddr string
	peerTTLSec  int
	publishWait int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	Long: `Run a node that reads lines from stdin. Each line becomes a block
broadcast to discovered peers, except:
- "size" prints how many peers discovery lists
- "exit" stops the node
- a discovered peer id asks that peer for its chain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd.Flags())
		if err != nil {
			return err
		}
		return runNode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	bindRunFlags(runCmd.Flags())
}

func bindRunFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&configPath, "config", "c", "", "Path to an ini or yaml config file")
	flags.StringSliceVar(&listenAddrs, "listen", nil, "Listen multiaddrs")
	flags.StringVar(&topic, "topic", config.DefaultTopic, "Broadcast topic name")
	flags.StringVar(&serviceTag, "service-tag", config.DefaultServiceTag, "mDNS service tag")
	flags.StringSliceVar(&staticPeers, "peer", nil, "Static peer multiaddr with /p2p suffix (repeatable)")
	flags.BoolVar(&disableMDNS, "no-mdns", false, "Disable mDNS and use static peers only")
	flags.StringVar(&keyFile, "key", "", "Path to a base58 private key file, random identity if empty")
	flags.IntVar(&logDelayMs, "log-delay-ms", config.DefaultLogDelayMs, "Pause after each info log line")
	flags.StringVar(&logFile, "log-file", "", "Rotating log file, console only if empty")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	flags.IntVar(&peerTTLSec, "peer-ttl-sec", config.DefaultPeerTTLSec, "Seconds a discovered peer stays listed")
	flags.IntVar(&publishWait, "publish-wait-ms", config.DefaultPublishWaitMs, "Max wait for a topic peer before publishing")
}

// loadRunConfig reads the config file and applies only the flags the user set.
func loadRunConfig(flags *pflag.FlagSet) (*config.NodeConfig, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("listen") {
		cfg.ListenAddrs, _ = flags.GetStringSlice("listen")
	}
	if flags.Changed("topic") {
		cfg.Topic, _ = flags.GetString("topic")
	}
	if flags.Changed("service-tag") {
		cfg.ServiceTag, _ = flags.GetString("service-tag")
	}
	if flags.Changed("peer") {
		cfg.StaticPeers, _ = flags.GetStringSlice("peer")
	}
	if flags.Changed("no-mdns") {
		cfg.DisableMDNS, _ = flags.GetBool("no-mdns")
	}
	if flags.Changed("key") {
		cfg.KeyFile, _ = flags.GetString("key")
	}
	if flags.Changed("log-delay-ms") {
		cfg.LogDelayMs, _ = flags.GetInt("log-delay-ms")
	}
	if flags.Changed("log-file") {
		cfg.LogFile, _ = flags.GetString("log-file")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("peer-ttl-sec") {
		cfg.PeerTTLSec, _ = flags.GetInt("peer-ttl-sec")
	}
	if flags.Changed("publish-wait-ms") {
		cfg.PublishWaitMs, _ = flags.GetInt("publish-wait-ms")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid node config")
	}
	return cfg, nil
}

func runNode(cfg *config.NodeConfig) error {
	logx.Configure(logx.FileConfig{
		Filename:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	logx.SetDelay(cfg.LogDelay())
	monitoring.InitMetrics()

	priv, err := loadIdentity(cfg.KeyFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	network, err := p2p.NewNetwork(ctx, priv,
		p2p.Config{
			ListenAddrs: cfg.ListenAddrs,
			Topic:       cfg.Topic,
			PublishWait: cfg.PublishWait(),
		},
		discovery.Config{
			ServiceTag:  cfg.ServiceTag,
			PeerTTL:     cfg.PeerTTL(),
			StaticPeers: cfg.StaticPeers,
			DisableMDNS: cfg.DisableMDNS,
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to start network")
	}
	defer func() {
		if err := network.Close(); err != nil {
			logx.Warn("NODE", "Failed to close network: ", err)
		}
	}()

	n := node.New(network, node.ReadLines(ctx, os.Stdin))
	return n.Run(ctx)
}

func loadIdentity(path string) (crypto.PrivKey, error) {
	if path == "" {
		priv, err := p2p.GenerateIdentity()
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate identity")
		}
		logx.Info("NODE", "Generated random identity")
		return priv, nil
	}

	priv, err := p2p.LoadIdentity(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load identity from %s", path)
	}
	logx.Info("NODE", "Loaded identity from ", path)
	return priv, nil
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	exception.SafeGo("MetricsServer", func() {
		logx.Info("MONITORING", "Serving metrics on ", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error("MONITORING", "Metrics server stopped: ", err)
		}
	})
	exception.SafeGo("MetricsShutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
}
