package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
)

var reconcileActions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pricecompare_reconcile_actions_total",
	Help: "Reconciled records by decision",
}, []string{"action"})

func init() {
	prometheus.MustRegister(reconcileActions)
}
