package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LedgerCalls        *prometheus.CounterVec
	LedgerLatency      *prometheus.HistogramVec
	LedgerBreakerState prometheus.Gauge

	DocumentsStored     prometheus.Counter
	DocumentStoreFailed prometheus.Counter
	PoliciesCreated     prometheus.Counter
	PolicyCompensations prometheus.Counter
	CasesCreated        prometheus.Counter
	ArchivesStreamed    *prometheus.CounterVec

	AuthorizationDenied *prometheus.CounterVec
	PrincipalCache      *prometheus.CounterVec
	HTTPRequests        *prometheus.HistogramVec
}

// New creates and registers all metrics against reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LedgerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casekeeper_ledger_calls_total",
			Help: "Ledger calls by operation and outcome",
		}, []string{"op", "outcome"}),
		LedgerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casekeeper_ledger_call_duration_seconds",
			Help:    "Ledger call latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		LedgerBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "casekeeper_ledger_breaker_open",
			Help: "1 when the ledger circuit breaker is open",
		}),
		DocumentsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "casekeeper_documents_stored_total",
			Help: "Documents confirmed by the ledger and attached to a case",
		}),
		DocumentStoreFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "casekeeper_document_store_failures_total",
			Help: "Documents the ledger did not confirm",
		}),
		PoliciesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "casekeeper_policies_created_total",
			Help: "Access policies accepted by the ledger",
		}),
		PolicyCompensations: f.NewCounter(prometheus.CounterOpts{
			Name: "casekeeper_policy_compensations_total",
			Help: "Local policy records removed after a ledger failure",
		}),
		CasesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "casekeeper_cases_created_total",
			Help: "Cases created",
		}),
		ArchivesStreamed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casekeeper_archives_total",
			Help: "Case archives by outcome",
		}, []string{"outcome"}),
		AuthorizationDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casekeeper_authorization_denied_total",
			Help: "Authorization gate denials by action",
		}, []string{"action"}),
		PrincipalCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casekeeper_principal_cache_total",
			Help: "Principal cache lookups by result",
		}, []string{"result"}),
		HTTPRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casekeeper_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveLedgerCall records one ledger call. Safe on a nil receiver.
func (m *Metrics) ObserveLedgerCall(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.LedgerCalls.WithLabelValues(op, outcome).Inc()
	m.LedgerLatency.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.LedgerBreakerState.Set(1)
		return
	}
	m.LedgerBreakerState.Set(0)
}

func (m *Metrics) IncDocumentsStored(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentsStored.Add(float64(n))
}

func (m *Metrics) IncDocumentStoreFailed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DocumentStoreFailed.Add(float64(n))
}

func (m *Metrics) IncPoliciesCreated() {
	if m == nil {
		return
	}
	m.PoliciesCreated.Inc()
}

func (m *Metrics) IncPolicyCompensations() {
	if m == nil {
		return
	}
	m.PolicyCompensations.Inc()
}

func (m *Metrics) IncCasesCreated() {
	if m == nil {
		return
	}
	m.CasesCreated.Inc()
}

func (m *Metrics) IncArchive(outcome string) {
	if m == nil {
		return
	}
	m.ArchivesStreamed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAuthorizationDenied(action string) {
	if m == nil {
		return
	}
	m.AuthorizationDenied.WithLabelValues(action).Inc()
}

func (m *Metrics) IncPrincipalCache(result string) {
	if m == nil {
		return
	}
	m.PrincipalCache.WithLabelValues(result).Inc()
}
