package manager

// Event represents a manager event.
// Minimal and stable: name + project and optional fields via key/values.
type Event struct {
	Name    string
	Project string
	Fields  map[string]any
}

// Event names published by the manager.
const (
	EventSpectrogramSaved = "spectrogram_saved"
	EventModelSaved       = "model_saved"
	EventModelConverted   = "model_converted"
	EventConvertFailed    = "convert_failed"
	EventInferenceDone    = "inference_done"
	EventInferenceFailed  = "inference_failed"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (m *Manager) publish(name, project string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(Event{Name: name, Project: project, Fields: fields})
}
