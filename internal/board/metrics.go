package board

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blurtbox_events_applied_total",
		Help: "Push events folded into the session, by event name.",
	}, []string{"event"})

	intentsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blurtbox_intents_emitted_total",
		Help: "Intents sent to the backend, by intent name.",
	}, []string{"intent"})

	votesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blurtbox_votes_throttled_total",
		Help: "Vote clicks ignored because the item was cooling down.",
	})

	pendingActions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blurtbox_pending_actions",
		Help: "Submissions awaiting confirmation.",
	})

	pendingTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blurtbox_pending_timeouts_total",
		Help: "Submissions abandoned after no confirmation arrived.",
	})

	mirrorFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blurtbox_comment_mirror_failures_total",
		Help: "REST comment mirrors that failed.",
	})

	toastsShown = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blurtbox_toasts_total",
		Help: "Notifications shown, by severity.",
	}, []string{"severity"})
)
