package types

// Model represents a stored model file inside a project's model folder.
type Model struct {
	// Filename of the model inside the project's aiModels folder.
	// example: classifier.json
	ID string `json:"id" example:"classifier.json"`
	// Project the model belongs to.
	// example: p1
	Project string `json:"project" example:"p1"`
	// Path to the model file on disk.
	// example: uploads/p1/aiModels/classifier.json
	Path string `json:"path" example:"uploads/p1/aiModels/classifier.json"`
	// Serialization format detected from the file extension.
	// example: tfjs-layers
	Format string `json:"format" example:"tfjs-layers"`
	// Size of the model file in bytes.
	// example: 20480
	SizeBytes int64 `json:"size_bytes" example:"20480"`
}

// SpectrogramRecord is the document persisted for every spectrogram upload.
// Labels and Spectrogram are kept as the client sent them (validated JSON).
type SpectrogramRecord struct {
	Labels      RawJSON `json:"labels" swaggertype:"object"`
	Spectrogram RawJSON `json:"spectrogram" swaggertype:"object"`
	// Hex MD5 digest of the raw spectrogram text.
	// example: 0a4b2e0e6b1ac8f4c0c4a1f1b7d3a5e2
	MD5 string `json:"md5" example:"0a4b2e0e6b1ac8f4c0c4a1f1b7d3a5e2"`
}
