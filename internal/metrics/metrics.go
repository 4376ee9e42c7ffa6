package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Cart
	CartOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Committed cart operations",
		},
		[]string{"op"}, // add|remove|purchase
	)

	// Catalog and user management
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_mutations_total",
			Help: "Committed catalog and user mutations",
		},
		[]string{"entity", "action"},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // ok|failed
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(CartOpsTotal)
		prometheus.MustRegister(MutationsTotal)
		prometheus.MustRegister(LoginAttempts)
	})
}
