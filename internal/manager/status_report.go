package manager

import (
	"time"

	"specd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	sanity := m.SanityCheck()
	m.mu.RLock()
	lastErr := m.err
	m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		UploadDir:         m.store.Dir(),
		ConverterFound:    sanity.ConverterFound,
		ConverterPath:     sanity.ConverterPath,
		PredictorFound:    sanity.PredictorFound,
		PredictorPath:     sanity.PredictorPath,
		Inflight:          int(m.inflight.Load()),
		MaxConcurrent:     cap(m.slots),
		SpectrogramsTotal: m.spectrograms.Load(),
		ModelsTotal:       m.models.Load(),
		ConversionsTotal:  m.conversions.Load(),
		InferencesTotal:   m.inferences.Load(),
		LastError:         lastErr,
		UptimeSeconds:     int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
	}
}
