package streamdl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodl_restarts_total",
		Help: "Session restarts by station and reason.",
	}, []string{"station", "reason"})

	metricBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodl_received_bytes_total",
		Help: "Audio bytes emitted per station.",
	}, []string{"station"})

	metricSegments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodl_segments_total",
		Help: "Segment boundaries emitted per station.",
	}, []string{"station"})

	metricBufferDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radiodl_buffer_depth_seconds",
		Help: "Estimated audio buffered ahead of real time.",
	}, []string{"station"})

	metricGeneration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radiodl_generation",
		Help: "Current session generation per station.",
	}, []string{"station"})

	metricState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "radiodl_state",
		Help: "Current session state per station, see the State enum.",
	}, []string{"station"})

	metricProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radiodl_probes_total",
		Help: "Codec and bitrate inspections by outcome.",
	}, []string{"station", "outcome"})
)
