package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the metrics.
type Metrics struct {
	Signatures,
	HostKeyChecks,
	Executions,
	Errs *prometheus.CounterVec
}

// M structure to collect all metrics together.
// The counters are usable before Register is called.
var M = Metrics{
	Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotecli",
		Subsystem: "signer",
		Name:      "signatures_total",
		Help:      "Signatures produced by key type and result",
	}, []string{"algorithm", "result"}),
	HostKeyChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotecli",
		Subsystem: "hostkey",
		Name:      "checks_total",
		Help:      "Host key verifications by result",
	}, []string{"result"}),
	Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotecli",
		Subsystem: "exec",
		Name:      "commands_total",
		Help:      "Commands executed by transport and result",
	}, []string{"transport", "result"}),
	Errs: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remotecli",
		Subsystem: "sys",
		Name:      "error_total",
		Help:      "Error counts by module",
	}, []string{"module"}),
}

// Result returns the label value for err.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Register metrics with the default registry.
func Register() {
	prometheus.MustRegister(M.Errs)
	prometheus.MustRegister(M.Signatures)
	prometheus.MustRegister(M.HostKeyChecks)
	prometheus.MustRegister(M.Executions)
}

// Handler returns the metrics page.
func Handler() http.Handler {
	return promhttp.Handler()
}
