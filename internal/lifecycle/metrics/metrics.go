package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document lifecycle module.
type Metrics struct {
	SnapshotsInitialized prometheus.Counter
	StatusTransitions    *prometheus.CounterVec
	BulkLockConflicts    prometheus.Counter
	ShareBatchesCreated  prometheus.Counter
	ShareRecipients      prometheus.Counter
	OtpIssued            prometheus.Counter
	OtpVerifications     *prometheus.CounterVec
	OtpDeliveries        *prometheus.CounterVec
	SignerTransitions    *prometheus.CounterVec
	WebhooksReceived     *prometheus.CounterVec
	CatalogLoads         prometheus.Counter
	OperationDuration    *prometheus.HistogramVec
}

// New registers the lifecycle metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the lifecycle metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SnapshotsInitialized: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_snapshots_initialized_total",
			Help: "Total number of document snapshots created on first access",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signflow_status_transitions_total",
			Help: "Total number of accepted document status transitions by new status",
		}, []string{"status"}),
		BulkLockConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_bulk_lock_conflicts_total",
			Help: "Total number of bulk status updates aborted on a held row lock",
		}),
		ShareBatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_share_batches_created_total",
			Help: "Total number of share batches created",
		}),
		ShareRecipients: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_share_recipients_total",
			Help: "Total number of share recipients recorded",
		}),
		OtpIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_otp_issued_total",
			Help: "Total number of OTP challenges issued",
		}),
		OtpVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signflow_otp_verifications_total",
			Help: "Total number of OTP verification attempts by outcome",
		}, []string{"outcome"}),
		OtpDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signflow_otp_deliveries_total",
			Help: "Total number of OTP deliveries by result",
		}, []string{"result"}),
		SignerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signflow_signer_transitions_total",
			Help: "Total number of signer session transitions by new status",
		}, []string{"status"}),
		WebhooksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "signflow_esign_webhooks_total",
			Help: "Total number of e-sign provider callbacks by provider and result",
		}, []string{"provider", "result"}),
		CatalogLoads: f.NewCounter(prometheus.CounterOpts{
			Name: "signflow_status_catalog_loads_total",
			Help: "Total number of status catalog reloads from storage",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signflow_lifecycle_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSnapshotInitialized() {
	if m == nil {
		return
	}
	m.SnapshotsInitialized.Inc()
}

func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncBulkLockConflict() {
	if m == nil {
		return
	}
	m.BulkLockConflicts.Inc()
}

func (m *Metrics) IncShareBatch(recipients int) {
	if m == nil {
		return
	}
	m.ShareBatchesCreated.Inc()
	m.ShareRecipients.Add(float64(recipients))
}

func (m *Metrics) IncOtpIssued() {
	if m == nil {
		return
	}
	m.OtpIssued.Inc()
}

func (m *Metrics) IncOtpVerification(outcome string) {
	if m == nil {
		return
	}
	m.OtpVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncOtpDelivery(result string) {
	if m == nil {
		return
	}
	m.OtpDeliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSignerTransition(status string) {
	if m == nil {
		return
	}
	m.SignerTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncWebhook(provider, result string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) IncCatalogLoad() {
	if m == nil {
		return
	}
	m.CatalogLoads.Inc()
}
