package server

import (
	"github.com/gin-gonic/gin"
	"github.com/jagriti88-art/LeafLens/service"
	"github.com/jagriti88-art/LeafLens/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Classifier *service.Classifier
	// History is optional; nil disables persistence and GET /history.
	History   *storage.History
	ModelName string
	// MaxUploadBytes caps the request body; zero means no cap.
	MaxUploadBytes int64
}

type Handler struct {
	classifier *service.Classifier
	history    *storage.History
	modelName  string
	maxUpload  int64
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		classifier: opts.Classifier,
		history:    opts.History,
		modelName:  opts.ModelName,
		maxUpload:  opts.MaxUploadBytes,
	}
}

func NewRouter(opts Options) *gin.Engine {
	h := NewHandler(opts)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metricsMiddleware(), cors())
	r.GET("/", h.HomeHandler)
	r.GET("/health", h.HealthHandler)
	r.POST("/predict", h.PredictHandler)
	r.GET("/history", h.HistoryHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
