package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Host    string `toml:"host" yaml:"host" mapstructure:"host"`
	Port    string `toml:"port" yaml:"port" mapstructure:"port"`
	Libonnx string `toml:"libonnx" yaml:"libonnx" mapstructure:"libonnx"`

	ModelDir      string `toml:"model_dir" yaml:"model_dir" mapstructure:"model_dir"`
	ModelFileName string `toml:"model_file_name" yaml:"model_file_name" mapstructure:"model_file_name"`
	// Optional override for the embedded label table, one label per line.
	ModelLabelsName string `toml:"model_labels_name" yaml:"model_labels_name" mapstructure:"model_labels_name"`
	WatchModel      bool   `toml:"watch_model" yaml:"watch_model" mapstructure:"watch_model"`

	// "raw" feeds 0..255 floats, "unit" divides by 255.
	Normalization string `toml:"normalization" yaml:"normalization" mapstructure:"normalization"`
	// "lazy", "resident" or "lazy-release".
	MemoryPolicy string `toml:"memory_policy" yaml:"memory_policy" mapstructure:"memory_policy"`
	PoolSize     int    `toml:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	CacheSize    int    `toml:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
	MaxUploadMB  int64  `toml:"max_upload_mb" yaml:"max_upload_mb" mapstructure:"max_upload_mb"`

	HistoryDB string `toml:"history_db" yaml:"history_db" mapstructure:"history_db"`

	LogLevel  string `toml:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format" mapstructure:"log_format"`
	LogFile   string `toml:"log_file" yaml:"log_file" mapstructure:"log_file"`
}

func Default() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          "8000",
		ModelDir:      "models",
		ModelFileName: "plant_disease_recog_model_pwp.onnx",
		Normalization: "raw",
		MemoryPolicy:  "lazy",
		PoolSize:      1,
		CacheSize:     256,
		MaxUploadMB:   10,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

var (
	cfg      = Default()
	loadOnce sync.Once
)

func C() Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()
		if err := Load(&cfg, "config.toml", "config.yaml", "config.yml"); err != nil {
			panic(err)
		}
		ApplyEnv(&cfg)
	})
	return cfg
}

// Load decodes the first existing file of paths into c.
func Load(c *Config, paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			return yaml.Unmarshal(data, c)
		}
		return toml.Unmarshal(data, c)
	}
	return nil
}

func ApplyEnv(c *Config) {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.Libonnx = v
	}
	// MODEL_PATH names the file directly; MODEL_DIR and MODEL_FILE refine it.
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.ModelDir = filepath.Dir(v)
		c.ModelFileName = filepath.Base(v)
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.ModelDir = v
	}
	if v := os.Getenv("MODEL_FILE"); v != "" {
		c.ModelFileName = v
	}
	if v := os.Getenv("MEMORY_POLICY"); v != "" {
		c.MemoryPolicy = v
	}
	if v := os.Getenv("HISTORY_DB"); v != "" {
		c.HistoryDB = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
