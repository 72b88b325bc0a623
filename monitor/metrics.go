package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Completed poll cycles",
	})

	ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guardian",
		Subsystem: "monitor",
		Name:      "ticks_skipped_total",
		Help:      "Poll cycles skipped because the previous tick was still in flight",
	})

	fetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Subsystem: "monitor",
		Name:      "fetch_failures_total",
		Help:      "Per-wallet position fetches that failed and preserved prior state",
	}, []string{"wallet_role"})

	alertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Subsystem: "monitor",
		Name:      "alerts_dispatched_total",
		Help:      "Alerts handed to the notification channel",
	}, []string{"kind"})

	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guardian",
		Subsystem: "monitor",
		Name:      "dispatch_failures_total",
		Help:      "Alert deliveries that failed and were dropped",
	}, []string{"kind"})
)
