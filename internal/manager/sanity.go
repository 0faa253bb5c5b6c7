package manager

import "specd/internal/registry"

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	UploadDirWritable   bool     `json:"upload_dir_writable"`
	ConverterFound      bool     `json:"converter_found"`
	ConverterPath       string   `json:"converter_path,omitempty"`
	PredictorConfigured bool     `json:"predictor_configured"`
	PredictorFound      bool     `json:"predictor_found"`
	PredictorPath       string   `json:"predictor_path,omitempty"`
	Errors              []string `json:"errors,omitempty"`
}

// pathLooker is implemented by converters and adapters backed by a binary.
type pathLooker interface {
	LookPath() (string, error)
}

// SanityCheck validates that the upload directory and external binaries are
// usable. It does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	var r SanityReport
	if err := m.store.Writable(); err != nil {
		r.Errors = append(r.Errors, err.Error())
	} else {
		r.UploadDirWritable = true
	}
	if pl, ok := m.currentConverter().(pathLooker); ok {
		if p, err := pl.LookPath(); err != nil {
			r.Errors = append(r.Errors, err.Error())
		} else {
			r.ConverterFound, r.ConverterPath = true, p
		}
	}
	r.PredictorConfigured = m.predictorBin != ""
	if pa, ok := m.adapterFor(registry.FormatKeras).(*predictorAdapter); ok && r.PredictorConfigured {
		if p, err := pa.lookPath(); err != nil {
			r.Errors = append(r.Errors, err.Error())
		} else {
			r.PredictorFound, r.PredictorPath = true, p
		}
	}
	return r
}
