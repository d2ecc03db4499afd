package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guardboard"

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	records     *prometheus.GaugeVec
	mutations   *prometheus.CounterVec
	importRows  *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	saveErrors  prometheus.Counter
	httpLatency *prometheus.HistogramVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Stored records by kind.",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Record mutations by kind and operation.",
		}, []string{"kind", "op"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Imported rows by source and outcome.",
		}, []string{"source", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_errors_total",
			Help:      "Failed writes to the blob store.",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	r.registry.MustRegister(
		r.records, r.mutations, r.importRows, r.jobRuns, r.saveErrors, r.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Recording methods are no-ops on a nil *Recorder.

func (r *Recorder) SetRecords(guards, holidays int) {
	if r == nil {
		return
	}
	r.records.WithLabelValues("shift").Set(float64(guards))
	r.records.WithLabelValues("holiday").Set(float64(holidays))
}

// Mutation counts one add, edit or delete.
func (r *Recorder) Mutation(kind, op string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(kind, op).Inc()
}

// ImportRows adds n rows with the given outcome (added, duplicate, skipped).
func (r *Recorder) ImportRows(source, outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.importRows.WithLabelValues(source, outcome).Add(float64(n))
}

func (r *Recorder) JobRun(job string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.jobRuns.WithLabelValues(job, result).Inc()
}

func (r *Recorder) SaveError() {
	if r == nil {
		return
	}
	r.saveErrors.Inc()
}

func (r *Recorder) ObserveHTTP(route string, code int, seconds float64) {
	if r == nil {
		return
	}
	r.httpLatency.WithLabelValues(route, strconv.Itoa(code)).Observe(seconds)
}
