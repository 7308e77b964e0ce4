package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opProductContent = "product_content"
	opMarketingImage = "marketing_image"

	outcomeSuccess        = "success"
	outcomeDisabled       = "disabled"
	outcomeUpstreamError  = "upstream_error"
	outcomeCircuitOpen    = "circuit_open"
	outcomeTimeout        = "timeout"
	outcomeInvalidPayload = "invalid_payload"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ai_requests_total",
			Help: "Total number of generative content requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_ai_request_duration_seconds",
			Help:    "Duration of generative content requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)
)
