package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jagriti88-art/LeafLens/config"
	"github.com/jagriti88-art/LeafLens/onnx"
	"github.com/jagriti88-art/LeafLens/server"
	"github.com/jagriti88-art/LeafLens/service"
	"github.com/jagriti88-art/LeafLens/storage"
	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newLogger(cfg config.Config, stdout io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	w := stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.C()
	slog.SetDefault(newLogger(cfg, os.Stdout))
	slog.Info("Starting LeafLens AI engine")

	policy, err := service.ParsePolicy(cfg.MemoryPolicy)
	if err != nil {
		slog.Error("Invalid memory policy", slog.String("error", err.Error()))
		return
	}
	norm, err := service.ParseNormalization(cfg.Normalization)
	if err != nil {
		slog.Error("Invalid normalization", slog.String("error", err.Error()))
		return
	}
	var labelsPath string
	if cfg.ModelLabelsName != "" {
		labelsPath = filepath.Join(cfg.ModelDir, cfg.ModelLabelsName)
	}
	labels, err := service.LoadLabels(labelsPath)
	if err != nil {
		slog.Error("Failed to load labels", slog.String("error", err.Error()))
		return
	}

	ort.SetSharedLibraryPath(onnx.LibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("Failed to initialize ONNX Runtime environment", slog.String("error", err.Error()))
		return
	}
	defer ort.DestroyEnvironment()

	modelPath := filepath.Join(cfg.ModelDir, cfg.ModelFileName)
	handle := service.NewHandle(&onnx.Loader{
		ModelPath: modelPath,
		PoolSize:  cfg.PoolSize,
		ImageSize: service.ImageSize,
		Classes:   len(labels),
	}, policy)
	defer handle.Close()

	if policy == service.PolicyResident {
		if err := handle.Preload(ctx); err != nil {
			slog.Error("Failed to load model", slog.String("error", err.Error()))
			return
		}
	}

	cache, err := service.NewCache(cfg.CacheSize)
	if err != nil {
		slog.Error("Failed to create prediction cache", slog.String("error", err.Error()))
		return
	}
	classifier := service.NewClassifier(handle,
		service.WithLabels(labels),
		service.WithNormalization(norm),
		service.WithCache(cache))

	var history *storage.History
	if cfg.HistoryDB != "" {
		history, err = storage.Open(cfg.HistoryDB)
		if err != nil {
			slog.Error("Failed to open history", slog.String("error", err.Error()))
			return
		}
		defer history.Close()
	}

	if cfg.WatchModel {
		go func() {
			err := service.WatchModel(ctx, modelPath, func() {
				handle.Reset()
				cache.Purge()
			})
			if err != nil {
				slog.Error("Model watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	r := server.NewRouter(server.Options{
		Classifier:     classifier,
		History:        history,
		ModelName:      cfg.ModelFileName,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	})

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	slog.Info("Listening on",
		slog.String("address", addr),
		slog.String("policy", policy.String()),
		slog.String("normalization", norm.String()))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", slog.String("error", err.Error()))
	}
}
