package monitoring

import (
	"net/http"

	"github.com/mezonai/textchain/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MessageKind string

var (
	MessageBlock  MessageKind = "block"
	MessageLetter MessageKind = "letter"
)

type nodePromMetrics struct {
	nodeUpUnixSeconds prometheus.Gauge
	chainLength       prometheus.Gauge
	peerCount         prometheus.Gauge
	outboxDepth       prometheus.Gauge
	rejectedBlocks    prometheus.Counter
	chainReplacements prometheus.Counter
	ignoredMessages   prometheus.Counter
	publishedMessages *prometheus.CounterVec
	receivedMessages  *prometheus.CounterVec
	panicCount        prometheus.Counter
}

func newNodePromMetrics() *nodePromMetrics {
	return &nodePromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "textchain_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node",
			},
		),
		chainLength: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "textchain_chain_length",
				Help: "Number of blocks in the local chain",
			},
		),
		peerCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "textchain_discovered_peer_count",
				Help: "Number of peers currently listed by discovery",
			},
		),
		outboxDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "textchain_outbox_depth",
				Help: "Letters waiting in the replication queue",
			},
		),
		rejectedBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "textchain_rejected_block_count",
				Help: "Blocks dropped because they do not extend the current tip",
			},
		),
		chainReplacements: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "textchain_chain_replacement_count",
				Help: "Times the local chain was replaced by a longer response chain",
			},
		),
		ignoredMessages: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "textchain_ignored_message_count",
				Help: "Broadcast payloads that matched no known message type",
			},
		),
		publishedMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textchain_published_message_count",
				Help: "Messages published to the broadcast topic",
			},
			[]string{"kind"},
		),
		receivedMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textchain_received_message_count",
				Help: "Messages received from the broadcast topic",
			},
			[]string{"kind"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "textchain_panic_count",
				Help: "Recovered panics in background goroutines",
			},
		),
	}
}

var nodeMetrics = newNodePromMetrics()

// InitMetrics stamps the node start time.
func InitMetrics() {
	nodeMetrics.nodeUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetChainLength(length int) {
	nodeMetrics.chainLength.Set(float64(length))
}

func SetPeerCount(peers int) {
	nodeMetrics.peerCount.Set(float64(peers))
}

func SetOutboxDepth(depth int) {
	nodeMetrics.outboxDepth.Set(float64(depth))
}

func IncreaseRejectedBlocks() {
	nodeMetrics.rejectedBlocks.Inc()
}

func IncreaseChainReplacements() {
	nodeMetrics.chainReplacements.Inc()
}

func IncreaseIgnoredMessages() {
	nodeMetrics.ignoredMessages.Inc()
}

func RecordPublished(kind MessageKind) {
	nodeMetrics.publishedMessages.With(prometheus.Labels{
		"kind": string(kind),
	}).Inc()
}

func RecordReceived(kind MessageKind) {
	nodeMetrics.receivedMessages.With(prometheus.Labels{
		"kind": string(kind),
	}).Inc()
}

func IncreasePanicCount() {
	nodeMetrics.panicCount.Inc()
}
