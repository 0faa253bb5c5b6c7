package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"specd/internal/config"
)

const (
	defaultAddr      = ":5000"
	defaultUploadDir = "uploads"
)

// rootOptions holds the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// buildRootCmd constructs the command tree. Flag defaults come from SPECD_*
// variables, which may be supplied through a .env file.
func buildRootCmd() *cobra.Command {
	// A missing .env is fine; explicit environment wins over it.
	_ = godotenv.Load()

	ro := &rootOptions{
		configPath: envStr("SPECD_CONFIG", ""),
		logLevel:   envStr("SPECD_LOG_LEVEL", "info"),
		logFormat:  envStr("SPECD_LOG_FORMAT", "json"),
	}
	root := &cobra.Command{
		Use:           "specd",
		Short:         "Spectrogram and ML model artifact server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&ro.configPath, "config", ro.configPath, "Config file (.yaml, .json or .toml); defaults SPECD_CONFIG")
	root.PersistentFlags().StringVar(&ro.logLevel, "log-level", ro.logLevel, "Log level: debug|info|warn|error|off (defaults SPECD_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&ro.logFormat, "log-format", ro.logFormat, "Log format: json|console (defaults SPECD_LOG_FORMAT or json)")

	serve := buildServeCmd(ro)
	root.AddCommand(serve, buildConvertCmd(ro))
	// Running the bare binary serves, like the original single-purpose server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

// loadConfig reads the optional config file and overlays every flag the user
// did not set explicitly: flag > config file > environment > default.
func loadConfig(ro *rootOptions, flagCfg config.Config, flags *pflag.FlagSet) (config.Config, error) {
	cfg := flagCfg
	if ro.configPath != "" {
		fileCfg, err := config.Load(ro.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", ro.configPath, err)
		}
		cfg = mergeConfig(flagCfg, fileCfg, func(name string) bool {
			f := flags.Lookup(name)
			return f != nil && f.Changed
		})
		if !flags.Changed("log-level") && fileCfg.LogLevel != "" {
			ro.logLevel = fileCfg.LogLevel
		}
		if !flags.Changed("log-format") && fileCfg.LogFormat != "" {
			ro.logFormat = fileCfg.LogFormat
		}
	}
	cfg.LogLevel, cfg.LogFormat = ro.logLevel, ro.logFormat
	return cfg, nil
}

// mergeConfig takes each field from file unless the matching flag was set
// or the file leaves it zero.
func mergeConfig(flagCfg, file config.Config, changed func(string) bool) config.Config {
	out := flagCfg
	pickStr := func(dst *string, flag, v string) {
		if !changed(flag) && v != "" {
			*dst = v
		}
	}
	pickInt64 := func(dst *int64, flag string, v int64) {
		if !changed(flag) && v != 0 {
			*dst = v
		}
	}
	pickStr(&out.Addr, "addr", file.Addr)
	pickStr(&out.UploadDir, "upload-dir", file.UploadDir)
	pickInt64(&out.MaxBodyBytes, "max-body-bytes", file.MaxBodyBytes)
	pickInt64(&out.MaxUploadBytes, "max-upload-bytes", file.MaxUploadBytes)
	pickStr(&out.ConverterBin, "converter-bin", file.ConverterBin)
	pickInt64(&out.ConverterTimeoutSeconds, "converter-timeout", file.ConverterTimeoutSeconds)
	pickStr(&out.PredictorBin, "predictor-bin", file.PredictorBin)
	if !changed("predictor-args") && len(file.PredictorArgs) > 0 {
		out.PredictorArgs = file.PredictorArgs
	}
	pickInt64(&out.PredictorTimeoutSeconds, "predictor-timeout", file.PredictorTimeoutSeconds)
	if !changed("max-concurrent-inferences") && file.MaxConcurrentInferences != 0 {
		out.MaxConcurrentInferences = file.MaxConcurrentInferences
	}
	pickInt64(&out.InferenceMaxWaitMs, "inference-max-wait-ms", file.InferenceMaxWaitMs)
	pickInt64(&out.InferTimeoutSeconds, "infer-timeout", file.InferTimeoutSeconds)
	if !changed("cors") && file.CORS.Enabled {
		out.CORS.Enabled = true
	}
	if !changed("cors-origins") && len(file.CORS.AllowedOrigins) > 0 {
		out.CORS.AllowedOrigins = file.CORS.AllowedOrigins
	}
	if len(file.CORS.AllowedMethods) > 0 {
		out.CORS.AllowedMethods = file.CORS.AllowedMethods
	}
	if len(file.CORS.AllowedHeaders) > 0 {
		out.CORS.AllowedHeaders = file.CORS.AllowedHeaders
	}
	return out
}

// newLogger builds the process logger. "off" disables logging.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(level, "off") {
		lvl = zerolog.Disabled
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "specd").Logger()
}
