package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Token-endpoint Prometheus metrics. Standalone package to avoid import
// cycles between the service layer and HTTP packages.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Tokens emitidos, por grant type",
	}, []string{"grant_type"})

	TokenErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_errors_total",
		Help: "Errores del token endpoint, por error code OAuth2",
	}, []string{"error"})

	IssueLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oauth_token_issue_latency_ms",
		Help:    "Latencia de emisión (auth + firma + persistencia) en ms",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// RegisterOAuth registers the token metrics on the given registry (or default if nil).
func RegisterOAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokensIssued, TokenErrors, IssueLatency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
