package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	UploadDir string `json:"upload_dir" yaml:"upload_dir" toml:"upload_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Request size limits in bytes.
	MaxBodyBytes   int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`

	// TF.js to Keras conversion.
	ConverterBin            string `json:"converter_bin" yaml:"converter_bin" toml:"converter_bin"`
	ConverterTimeoutSeconds int64  `json:"converter_timeout_seconds" yaml:"converter_timeout_seconds" toml:"converter_timeout_seconds"`

	// Keras (.h5) inference runs through an external predictor command.
	PredictorBin            string   `json:"predictor_bin" yaml:"predictor_bin" toml:"predictor_bin"`
	PredictorArgs           []string `json:"predictor_args" yaml:"predictor_args" toml:"predictor_args"`
	PredictorTimeoutSeconds int64    `json:"predictor_timeout_seconds" yaml:"predictor_timeout_seconds" toml:"predictor_timeout_seconds"`

	// Inference admission; 0 disables the limit.
	MaxConcurrentInferences int   `json:"max_concurrent_inferences" yaml:"max_concurrent_inferences" toml:"max_concurrent_inferences"`
	InferenceMaxWaitMs      int64 `json:"inference_max_wait_ms" yaml:"inference_max_wait_ms" toml:"inference_max_wait_ms"`
	InferTimeoutSeconds     int64 `json:"infer_timeout_seconds" yaml:"infer_timeout_seconds" toml:"infer_timeout_seconds"`

	CORS CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig enables cross-origin access for the browser frontend.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
