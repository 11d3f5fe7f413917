package controller

import "github.com/prometheus/client_golang/prometheus"

// Rejection reason labels. Kept to a fixed set to bound cardinality.
const (
	reasonRequestTooLarge = "request_too_large"
	reasonQueueFull       = "queue_full"
	reasonQueueTimeout    = "queue_timeout"
	reasonCanceled        = "canceled"
)

var (
	activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "active_sessions",
		Help:      "Sessions currently admitted or running",
	})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "queue_depth",
		Help:      "Requests waiting in the admission queue",
	})

	reservedBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "reserved_bytes",
		Help:      "Bytes reserved for KV-caches of active sessions",
	})

	headroomBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "headroom_bytes",
		Help:      "Usable budget minus reserved bytes",
	})

	admissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "admissions_total",
		Help:      "Total sessions admitted",
	})

	rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "rejections_total",
		Help:      "Total rejected requests by reason",
	}, []string{"reason"})

	evictionsTotalCtr = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "evictions_total",
		Help:      "Total sessions evicted to reclaim memory",
	})

	queueTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forged",
		Subsystem: "admission",
		Name:      "queue_timeouts_total",
		Help:      "Total queued requests expired past deadline",
	})

	targetTTFTGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "slo",
		Name:      "target_ttft_ms",
		Help:      "Informational TTFT target of the active profile",
	})

	targetTPSGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forged",
		Subsystem: "slo",
		Name:      "target_tps",
		Help:      "Informational tokens-per-second target of the active profile",
	})
)

func init() {
	prometheus.MustRegister(
		activeSessionsGauge, queueDepthGauge, reservedBytesGauge, headroomBytesGauge,
		admissionsTotal, rejectionsTotal, evictionsTotalCtr, queueTimeoutsTotal,
		targetTTFTGauge, targetTPSGauge,
	)
}

// updateGauges is called inside the admission critical section so metrics
// and registry never disagree.
func (c *Controller) updateGauges() {
	activeSessionsGauge.Set(float64(c.reg.ActiveCount()))
	queueDepthGauge.Set(float64(c.queue.len()))
	reservedBytesGauge.Set(float64(c.reg.ReservedTotal()))
	headroomBytesGauge.Set(float64(Headroom(c.profile, c.reg)))
}
