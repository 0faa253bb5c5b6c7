package manager

import (
	"time"

	"github.com/rs/zerolog"

	"specd/internal/convert"
	"specd/internal/registry"
	"specd/internal/store"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxWait          = 30 * time.Second
	defaultPredictorTimeout = 2 * time.Minute
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Store is required; all artifacts are read and written through it.
	Store *store.Store
	// Converter defaults to a CommandConverter on PATH.
	Converter convert.Converter
	// Keras predictor command (empty disables .h5 inference).
	PredictorBin     string
	PredictorArgs    []string
	PredictorTimeout time.Duration
	// MaxConcurrentInferences bounds in-flight predictions; 0 means unlimited.
	MaxConcurrentInferences int
	MaxWait                 time.Duration
	Logger                  zerolog.Logger
	Publisher               EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:        cfg.Store,
		converter:    cfg.Converter,
		predictorBin: cfg.PredictorBin,
		log:          cfg.Logger,
		publisher:    cfg.Publisher,
		startTime:    time.Now(),
	}
	if m.converter == nil {
		m.converter = convert.NewCommandConverter("", 0, cfg.Logger)
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	if cfg.MaxConcurrentInferences > 0 {
		m.slots = make(chan struct{}, cfg.MaxConcurrentInferences)
	}
	timeout := cfg.PredictorTimeout
	if timeout <= 0 {
		timeout = defaultPredictorTimeout
	}
	m.adapters = map[registry.Format]InferenceAdapter{
		registry.FormatTFJS:  NewTFJSAdapter(),
		registry.FormatKeras: NewPredictorAdapter(cfg.PredictorBin, cfg.PredictorArgs, timeout, cfg.Logger),
	}
	return m
}
