package types

import "encoding/json"

// RawJSON carries client supplied JSON through without reshaping it.
type RawJSON = json.RawMessage

// UploadSpectrogramResponse is returned by POST /api/upload/spectrogram.
type UploadSpectrogramResponse struct {
	// example: File saved
	Message string `json:"message" example:"File saved"`
	// Content hash used as record filename.
	// example: 0a4b2e0e6b1ac8f4c0c4a1f1b7d3a5e2
	MD5 string `json:"md5" example:"0a4b2e0e6b1ac8f4c0c4a1f1b7d3a5e2"`
}

// UploadModelResponse is returned by POST /api/upload/aiModel.
type UploadModelResponse struct {
	// example: TensorFlow.js model converted and saved
	Message string `json:"message" example:"TensorFlow.js model converted and saved"`
	// Saved path, or the converted model path for TF.js uploads.
	// example: uploads/p1/aiModels/model.h5
	Path string `json:"path" example:"uploads/p1/aiModels/model.h5"`
}

// FileListing maps a folder name (jsondata, aiModels) to the filenames it holds.
// Folders that do not exist yet are omitted.
type FileListing map[string][]string

// ModelsResponse wraps the list of models returned by GET /api/models/{project_id}.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// PredictRequest is the body of POST /api/models/{project_id}/{model_name}.
type PredictRequest struct {
	// Input batch passed to the model as-is.
	// example: [[0.1,0.2,0.3,0.4]]
	Data RawJSON `json:"data" swaggertype:"array,number"`
}

// PredictResponse carries the model output.
type PredictResponse struct {
	Predictions RawJSON `json:"predictions" swaggertype:"array,number"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: Missing project_id, labels, or spectrogram
	Error string `json:"error" example:"Missing project_id, labels, or spectrogram"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Upload root all projects live under.
	// example: uploads
	UploadDir string `json:"upload_dir" example:"uploads"`
	// Whether the TF.js to Keras converter binary was found.
	ConverterFound bool   `json:"converter_found"`
	ConverterPath  string `json:"converter_path,omitempty"`
	// Whether a Keras predictor command is configured and found.
	PredictorFound bool   `json:"predictor_found"`
	PredictorPath  string `json:"predictor_path,omitempty"`
	// In-flight inference requests.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Concurrent inference limit, 0 when unlimited.
	// example: 4
	MaxConcurrent int `json:"max_concurrent" example:"4"`
	// example: 12
	SpectrogramsTotal uint64 `json:"spectrograms_total" example:"12"`
	// example: 3
	ModelsTotal uint64 `json:"models_total" example:"3"`
	// example: 2
	ConversionsTotal uint64 `json:"conversions_total" example:"2"`
	// example: 40
	InferencesTotal uint64 `json:"inferences_total" example:"40"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
