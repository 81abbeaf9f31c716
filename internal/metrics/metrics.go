// Package metrics собирает метрики расчетов для Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "toyshop"

// Исходы расчета
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics коллекторы расчетов. Методы безопасны для nil-получателя.
type Metrics struct {
	settlements      *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	casConflicts     prometheus.Counter
	reconciliations  *prometheus.CounterVec
	compensations    *prometheus.CounterVec
	sideEffectErrors *prometheus.CounterVec
}

// New создает коллекторы и регистрирует их в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement attempts by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Settlement duration by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		casConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cas_conflicts_total",
			Help:      "Balance compare-and-swap attempts lost to a concurrent writer.",
		}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_reconciliations_total",
			Help:      "Balances re-derived from the ledger by result.",
		}, []string{"result"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_compensations_total",
			Help:      "Compensating balance writes by result.",
		}, []string{"result"}),
		sideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed after a settlement completed.",
		}, []string{"dependency"}),
	}

	reg.MustRegister(m.settlements, m.duration, m.casConflicts, m.reconciliations, m.compensations, m.sideEffectErrors)

	return m
}

// ObserveSettlement учитывает завершенный расчет
func (m *Metrics) ObserveSettlement(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// CASConflict учитывает проигранную попытку compare-and-swap
func (m *Metrics) CASConflict() {
	if m == nil {
		return
	}
	m.casConflicts.Inc()
}

// Reconciled учитывает пересчет баланса; result: "repaired", "clean" или "failed"
func (m *Metrics) Reconciled(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

// Compensated учитывает компенсирующую запись баланса
func (m *Metrics) Compensated(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

// SideEffectFailed учитывает сбой уведомления, события или хранилища объектов
func (m *Metrics) SideEffectFailed(dependency string) {
	if m == nil {
		return
	}
	m.sideEffectErrors.WithLabelValues(dependency).Inc()
}
