package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "okx_ticks_total", Help: "Count of ticker messages ingested"},
		[]string{"inst_id"},
	)
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "okx_triggers_total", Help: "Price watchers fired"},
		[]string{"inst_id", "mode"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "okx_orders_total", Help: "Orders submitted to the exchange"},
		[]string{"inst_id", "side"},
	)
	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "okx_api_retries_total", Help: "Retries on transient exchange response codes"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, TriggersTotal, OrdersTotal, RetriesTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
