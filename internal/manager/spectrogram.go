package manager

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"specd/internal/store"
	"specd/pkg/types"
)

// SaveSpectrogram stores labels and spectrogram (both JSON text) as a record
// named after the MD5 of the raw spectrogram text and returns that hash.
// Identical spectrograms overwrite the previous record.
func (m *Manager) SaveSpectrogram(ctx context.Context, project, labels, spectrogram string) (string, error) {
	if project == "" || labels == "" || spectrogram == "" {
		return "", ErrMissingField("Missing project_id, labels, or spectrogram")
	}
	if err := store.ValidateProject(project); err != nil {
		return "", ErrInvalidInput("Invalid project_id")
	}
	if !json.Valid([]byte(labels)) {
		return "", ErrInvalidInput("Invalid JSON in labels")
	}
	if !json.Valid([]byte(spectrogram)) {
		return "", ErrInvalidInput("Invalid JSON in spectrogram")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum := md5.Sum([]byte(spectrogram))
	hash := hex.EncodeToString(sum[:])
	rec := types.SpectrogramRecord{
		Labels:      types.RawJSON(labels),
		Spectrogram: types.RawJSON(spectrogram),
		MD5:         hash,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := m.store.WriteFile(project, store.SpectrogramFolder, hash+".json", b); err != nil {
		m.setErr(err)
		return "", fmt.Errorf("save spectrogram: %w", err)
	}
	m.spectrograms.Add(1)
	m.log.Info().Str("project", project).Str("md5", hash).Int("bytes", len(b)).Msg("spectrogram saved")
	m.publish(EventSpectrogramSaved, project, map[string]any{"md5": hash})
	return hash, nil
}
