package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var metricsRegistry = prometheus.NewRegistry()

var (
	importsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockroom",
		Name:      "imports_total",
		Help:      "Confirmed imports by schema and outcome.",
	}, []string{"schema", "outcome"})

	importRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockroom",
		Name:      "import_rows_total",
		Help:      "Import rows by schema and result (succeeded, failed, excluded).",
	}, []string{"schema", "result"})

	diagnosticsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockroom",
		Name:      "diagnostics_total",
		Help:      "Validation diagnostics emitted while building previews.",
	}, []string{"kind"})

	auditRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockroom",
		Name:      "audit_records_total",
		Help:      "Audit records by append result (written, failed).",
	}, []string{"result"})

	previewsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockroom",
		Name:      "previews_pending",
		Help:      "Previews awaiting confirmation.",
	})
)

func init() {
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		importsTotal,
		importRowsTotal,
		diagnosticsTotal,
		auditRecordsTotal,
		previewsPending,
	)
}

// Metrics returns the registry holding the pipeline's collectors.
func Metrics() *prometheus.Registry {
	return metricsRegistry
}
