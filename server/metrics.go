package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflens_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaflens_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"},
	)
	predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflens_predictions_total",
			Help: "Predictions by outcome and predicted disease",
		}, []string{"result", "disease"},
	)
	predictDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaflens_predict_duration_seconds",
			Help:    "Time spent in the inference pipeline, including model load",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	modelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaflens_model_loaded",
			Help: "1 when the model is resident in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(requestCount, requestDuration, predictions, predictDuration, modelLoaded)
}

func observeModelLoaded(loaded bool) {
	if loaded {
		modelLoaded.Set(1)
	} else {
		modelLoaded.Set(0)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestCount.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
