package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasklist",
			Name:      "tokens_issued_total",
			Help:      "Tokens minted by the session issuer",
		},
		[]string{"kind"},
	)
	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasklist",
			Name:      "logins_total",
			Help:      "Login and refresh attempts by result",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(tokensIssued, logins)
}
