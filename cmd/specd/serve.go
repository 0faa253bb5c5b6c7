package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"specd/internal/common/fsutil"
	"specd/internal/config"
	"specd/internal/convert"
	"specd/internal/httpapi"
	"specd/internal/manager"
	"specd/internal/store"
)

const shutdownTimeout = 5 * time.Second

func buildServeCmd(ro *rootOptions) *cobra.Command {
	cfg := config.Config{
		Addr:                    envStr("SPECD_ADDR", defaultAddr),
		UploadDir:               envStr("SPECD_UPLOAD_DIR", defaultUploadDir),
		MaxBodyBytes:            envInt64("SPECD_MAX_BODY_BYTES", 0),
		MaxUploadBytes:          envInt64("SPECD_MAX_UPLOAD_BYTES", 0),
		ConverterBin:            envStr("SPECD_CONVERTER_BIN", ""),
		ConverterTimeoutSeconds: envInt64("SPECD_CONVERTER_TIMEOUT", 0),
		PredictorBin:            envStr("SPECD_PREDICTOR_BIN", ""),
		PredictorArgs:           envList("SPECD_PREDICTOR_ARGS", nil),
		PredictorTimeoutSeconds: envInt64("SPECD_PREDICTOR_TIMEOUT", 0),
		MaxConcurrentInferences: envInt("SPECD_MAX_CONCURRENT_INFERENCES", 0),
		InferenceMaxWaitMs:      envInt64("SPECD_INFERENCE_MAX_WAIT_MS", 0),
		InferTimeoutSeconds:     envInt64("SPECD_INFER_TIMEOUT", 0),
		CORS: config.CORSConfig{
			Enabled:        envBool("SPECD_CORS", false),
			AllowedOrigins: envList("SPECD_CORS_ORIGINS", nil),
		},
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			merged, err := loadConfig(ro, cfg, cmd.Flags())
			if err != nil {
				return err
			}
			log := newLogger(merged.LogLevel, merged.LogFormat, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, merged, log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address (SPECD_ADDR)")
	f.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Root directory for uploaded artifacts (SPECD_UPLOAD_DIR)")
	f.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "Max JSON request body in bytes; 0 keeps the default")
	f.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "Max multipart upload in bytes; 0 keeps the default")
	f.StringVar(&cfg.ConverterBin, "converter-bin", cfg.ConverterBin, "tensorflowjs_converter binary (default: looked up on PATH)")
	f.Int64Var(&cfg.ConverterTimeoutSeconds, "converter-timeout", cfg.ConverterTimeoutSeconds, "Converter timeout in seconds; 0 keeps the default")
	f.StringVar(&cfg.PredictorBin, "predictor-bin", cfg.PredictorBin, "Command used for Keras .h5 inference, e.g. scripts/keras_predict.py (empty disables .h5 inference: 503)")
	f.StringSliceVar(&cfg.PredictorArgs, "predictor-args", cfg.PredictorArgs, "Arguments passed to the predictor before the model path")
	f.Int64Var(&cfg.PredictorTimeoutSeconds, "predictor-timeout", cfg.PredictorTimeoutSeconds, "Predictor timeout in seconds; 0 keeps the default")
	f.IntVar(&cfg.MaxConcurrentInferences, "max-concurrent-inferences", cfg.MaxConcurrentInferences, "Concurrent inference limit (0=unlimited)")
	f.Int64Var(&cfg.InferenceMaxWaitMs, "inference-max-wait-ms", cfg.InferenceMaxWaitMs, "Max wait for an inference slot before 429")
	f.Int64Var(&cfg.InferTimeoutSeconds, "infer-timeout", cfg.InferTimeoutSeconds, "Per-request inference timeout in seconds (0=none)")
	f.BoolVar(&cfg.CORS.Enabled, "cors", cfg.CORS.Enabled, "Enable CORS")
	f.StringSliceVar(&cfg.CORS.AllowedOrigins, "cors-origins", cfg.CORS.AllowedOrigins, "Allowed CORS origins")
	return cmd
}

// serve wires the store, manager and HTTP API and blocks until ctx is done
// or the listener fails.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	dir, err := fsutil.ExpandHome(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}
	st, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("open upload dir: %w", err)
	}
	defer st.Close()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Store:                   st,
		Converter:               convert.NewCommandConverter(cfg.ConverterBin, seconds(cfg.ConverterTimeoutSeconds), log),
		PredictorBin:            cfg.PredictorBin,
		PredictorArgs:           cfg.PredictorArgs,
		PredictorTimeout:        seconds(cfg.PredictorTimeoutSeconds),
		MaxConcurrentInferences: cfg.MaxConcurrentInferences,
		MaxWait:                 time.Duration(cfg.InferenceMaxWaitMs) * time.Millisecond,
		Logger:                  log,
	})
	logSanity(log, mgr.SanityCheck())

	httpapi.SetLogger(log)
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetMaxUploadBytes(cfg.MaxUploadBytes)
	httpapi.SetInferTimeoutSeconds(cfg.InferTimeoutSeconds)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)
	httpapi.SetBaseContext(ctx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Str("upload_dir", st.Dir()).Msg("specd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("specd stopped")
	return err
}

func logSanity(log zerolog.Logger, r manager.SanityReport) {
	ev := log.Info()
	if len(r.Errors) > 0 {
		ev = log.Warn().Strs("errors", r.Errors)
	}
	ev.Bool("upload_dir_writable", r.UploadDirWritable).
		Bool("converter_found", r.ConverterFound).
		Bool("predictor_configured", r.PredictorConfigured).
		Bool("predictor_found", r.PredictorFound).
		Msg("sanity check")
}

func seconds(n int64) time.Duration { return time.Duration(n) * time.Second }
