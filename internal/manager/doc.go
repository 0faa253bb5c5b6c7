// Package manager coordinates artifact storage, model conversion and
// inference behind the HTTP layer. It is structured into small files by concern:
//
//   - manager.go: core Manager type, setters, readiness.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - errors.go: error types and predicates (IsMissingField, IsModelNotFound, ...).
//   - spectrogram.go: content-addressed spectrogram records.
//   - models.go: model uploads, TF.js to Keras conversion, model listing.
//   - files.go: project listings and stored file access.
//   - admission.go: bounded in-flight inference with a wait timeout.
//   - inference.go: model resolution and prediction through adapters.
//   - adapter_*.go: per-format runtimes (in-process TF.js, external Keras predictor).
//   - sanity.go, status_report.go: dependency checks and /status reporting.
//
// External packages should use public methods only (New/NewWithConfig,
// SaveSpectrogram, SaveModel, ListFiles, OpenFile, ListModels, Predict, Status).
package manager
