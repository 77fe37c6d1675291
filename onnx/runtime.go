package onnx

import (
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/jagriti88-art/LeafLens/config"
)

var pathOnce sync.Once
var libPath string

func LibPath() string {
	pathOnce.Do(func() {
		libPath = resolveLibPath(config.C().Libonnx, runtime.GOOS)
		if libPath == "" {
			slog.Error("ONNX Runtime library path could not be determined for this OS")
		} else {
			slog.Info("Using ONNX Runtime library", slog.String("path", libPath))
		}
	})
	return libPath
}

func candidates(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			"onnxlibs/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			"onnxlibs/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{"onnxlibs/onnxruntime.dll", "onnxruntime.dll"}
	default:
		return nil
	}
}

func resolveLibPath(configured, goos string) string {
	if configured != "" {
		return configured
	}
	for _, p := range candidates(goos) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
