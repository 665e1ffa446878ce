package api

import "github.com/prometheus/client_golang/prometheus"

var wsClientsGauge prometheus.Gauge

func init() {
	wsClientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected WebSocket clients.",
		},
	)
	prometheus.MustRegister(wsClientsGauge)
}
