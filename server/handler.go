package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jagriti88-art/LeafLens/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *Handler) HomeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "AI Engine is Running", "model": h.modelName})
}

func (h *Handler) HealthHandler(c *gin.Context) {
	loaded := h.classifier.Handle().Loaded()
	observeModelLoaded(loaded)
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": loaded,
		"policy":       h.classifier.Handle().Policy().String(),
	})
}

func (h *Handler) PredictHandler(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "multipart field \"file\" is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "cannot open uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "cannot read uploaded file: " + err.Error()})
		return
	}

	start := time.Now()
	pred, err := h.classifier.Predict(c.Request.Context(), data)
	predictDuration.Observe(time.Since(start).Seconds())
	observeModelLoaded(h.classifier.Handle().Loaded())
	if err != nil {
		predictions.WithLabelValues("error", "").Inc()
		slog.Error("Prediction failed",
			slog.String("file", fileHeader.Filename),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	predictions.WithLabelValues("ok", pred.Disease).Inc()
	slog.Info("Prediction",
		slog.String("file", fileHeader.Filename),
		slog.String("disease", pred.Disease),
		slog.Float64("confidence", float64(pred.Confidence)))

	if h.history != nil {
		_, err := h.history.Save(c.Request.Context(), storage.Diagnosis{
			Disease:     pred.Disease,
			Confidence:  pred.Confidence,
			ImageSHA256: pred.ImageSHA256,
		})
		if err != nil {
			slog.Error("Failed to record diagnosis", slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, pred)
}

func (h *Handler) HistoryHandler(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "history is disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	items, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Failed to read history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}
