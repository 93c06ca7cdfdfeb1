package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legalnexus_access_decisions_total",
			Help: "Document access decisions by result and denial reason.",
		},
		[]string{"result", "reason"},
	)

	auditFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "legalnexus_audit_failures_total",
		Help: "Access log appends that failed and were dropped.",
	})

	auditCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "legalnexus_audit_cleanup_deleted_total",
		Help: "Access log rows removed by retention cleanup.",
	})
)

func observeDecision(d Decision) {
	if d.Allowed {
		decisionsTotal.WithLabelValues("granted", "").Inc()
		return
	}
	decisionsTotal.WithLabelValues("denied", d.Reason).Inc()
}
