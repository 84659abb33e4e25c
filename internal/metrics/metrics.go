package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "marketsim_steps_total", Help: "Model steps executed"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketsim_trades_total", Help: "Orders filled"},
		[]string{"symbol", "side"},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "marketsim_orders_rejected_total", Help: "Orders rejected before fill"},
		[]string{"symbol", "reason"},
	)
	GenerationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "marketsim_generations_total", Help: "Evolution rounds applied"},
	)
	MarketCap = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "marketsim_market_cap", Help: "Price times shares outstanding"},
		[]string{"symbol"},
	)
	Investors = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "marketsim_investors", Help: "Live investor agents"},
	)
)

func init() {
	prometheus.MustRegister(StepsTotal, TradesTotal, OrdersRejected, GenerationsTotal, MarketCap, Investors)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
