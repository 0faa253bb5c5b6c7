package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"specd/internal/convert"
	"specd/internal/registry"
	"specd/internal/store"
)

type Manager struct {
	mu        sync.RWMutex
	store     *store.Store
	converter convert.Converter
	adapters  map[registry.Format]InferenceAdapter
	publisher EventPublisher
	log       zerolog.Logger
	err       string

	predictorBin string

	// Admission: nil slots means unlimited.
	slots    chan struct{}
	maxWait  time.Duration
	inflight atomic.Int64

	spectrograms atomic.Uint64
	models       atomic.Uint64
	conversions  atomic.Uint64
	inferences   atomic.Uint64

	startTime time.Time
}

// New returns a Manager over st with package defaults.
func New(st *store.Store) *Manager {
	return NewWithConfig(ManagerConfig{Store: st})
}

// SetEventPublisher replaces the event sink. Nil restores the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// SetInferenceAdapter overrides the adapter used for a model format.
func (m *Manager) SetInferenceAdapter(f registry.Format, a InferenceAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[f] = a
}

// SetConverter overrides the TF.js to Keras converter.
func (m *Manager) SetConverter(c convert.Converter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.converter = c
}

// Ready reports whether the upload directory accepts writes.
func (m *Manager) Ready() bool {
	return m.store != nil && m.store.Writable() == nil
}

// UploadDir returns the configured upload root.
func (m *Manager) UploadDir() string { return m.store.Dir() }

func (m *Manager) adapterFor(f registry.Format) InferenceAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adapters[f]
}

func (m *Manager) currentConverter() convert.Converter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.converter
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.err = err.Error()
	m.mu.Unlock()
}
