// Package tfjs loads TensorFlow.js layers models (model.json plus binary
// weight shards) and evaluates Sequential stacks of dense layers in pure Go.
package tfjs

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path"
	"slices"
	"strings"
)

// ErrUnsupported reports a topology feature the evaluator does not implement.
var ErrUnsupported = errors.New("unsupported model")

// Model is a loaded Sequential model ready for prediction.
type Model struct {
	Name string
	// InputShape excludes the batch dimension; unknown dimensions are 0.
	InputShape []int
	Layers     []Layer
}

// Predict runs the forward pass over a batch.
func (m *Model) Predict(x Tensor) (Tensor, error) {
	var err error
	for _, l := range m.Layers {
		x, err = l.Forward(x)
		if err != nil {
			return Tensor{}, err
		}
	}
	return x, nil
}

// PredictJSON decodes data as a batch, predicts and encodes the output.
func (m *Model) PredictJSON(data []byte) (json.RawMessage, error) {
	x, err := TensorFromJSON(data, m.InputShape)
	if err != nil {
		return nil, err
	}
	y, err := m.Predict(x)
	if err != nil {
		return nil, err
	}
	return json.Marshal(y)
}

type artifacts struct {
	Format          string          `json:"format"`
	GeneratedBy     string          `json:"generatedBy"`
	ModelTopology   json.RawMessage `json:"modelTopology"`
	WeightsManifest []weightGroup   `json:"weightsManifest"`
}

type weightGroup struct {
	Paths   []string     `json:"paths"`
	Weights []weightSpec `json:"weights"`
}

type weightSpec struct {
	Name         string          `json:"name"`
	Shape        []int           `json:"shape"`
	Dtype        string          `json:"dtype"`
	Quantization json.RawMessage `json:"quantization,omitempty"`
}

type classConfig struct {
	ClassName string          `json:"class_name"`
	Config    json.RawMessage `json:"config"`
}

type sequentialConfig struct {
	Name   string        `json:"name"`
	Layers []classConfig `json:"layers"`
}

// layerConfig holds the keys used by the supported layers, accepting the
// spellings produced by TF.js, Keras 2 and Keras 3.
type layerConfig struct {
	Name             string  `json:"name"`
	Units            int     `json:"units"`
	Activation       string  `json:"activation"`
	UseBias          *bool   `json:"use_bias"`
	BatchInputShape  []*int  `json:"batch_input_shape"`
	BatchInputShape2 []*int  `json:"batchInputShape"`
	BatchShape       []*int  `json:"batch_shape"`
	InputShape       []*int  `json:"input_shape"`
	TargetShape      []int   `json:"target_shape"`
	Axis             *int    `json:"axis"`
	Rate             float64 `json:"rate"`
}

func (c layerConfig) batchShape() []*int {
	for _, s := range [][]*int{c.BatchInputShape, c.BatchInputShape2, c.BatchShape} {
		if len(s) > 0 {
			return s
		}
	}
	if len(c.InputShape) > 0 {
		return append([]*int{nil}, c.InputShape...)
	}
	return nil
}

// Load reads name (a model.json) and its weight shards from fsys. Shard
// paths are resolved relative to the directory of name.
func Load(fsys fs.FS, name string) (*Model, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return Parse(b, func(p string) ([]byte, error) {
		return fs.ReadFile(fsys, path.Join(path.Dir(name), path.Clean(p)))
	})
}

// Parse builds a model from model.json bytes; readShard returns the content
// of a shard path listed in the weights manifest.
func Parse(modelJSON []byte, readShard func(string) ([]byte, error)) (*Model, error) {
	var a artifacts
	if err := json.Unmarshal(modelJSON, &a); err != nil {
		return nil, fmt.Errorf("parse model.json: %w", err)
	}
	if a.Format != "" && a.Format != "layers-model" {
		return nil, fmt.Errorf("%w: format %q", ErrUnsupported, a.Format)
	}
	if len(a.ModelTopology) == 0 {
		return nil, fmt.Errorf("parse model.json: missing modelTopology")
	}
	topo, err := unwrapTopology(a.ModelTopology)
	if err != nil {
		return nil, err
	}
	if topo.ClassName != "Sequential" {
		return nil, fmt.Errorf("%w: model class %q", ErrUnsupported, topo.ClassName)
	}
	seq, err := parseSequential(topo.Config)
	if err != nil {
		return nil, err
	}
	weights, err := readWeights(a.WeightsManifest, readShard)
	if err != nil {
		return nil, err
	}
	return build(seq, weights)
}

func unwrapTopology(raw json.RawMessage) (classConfig, error) {
	var wrapped struct {
		classConfig
		ModelConfig *classConfig `json:"model_config"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return classConfig{}, fmt.Errorf("parse modelTopology: %w", err)
	}
	if wrapped.ModelConfig != nil {
		return *wrapped.ModelConfig, nil
	}
	return wrapped.classConfig, nil
}

func parseSequential(raw json.RawMessage) (sequentialConfig, error) {
	var seq sequentialConfig
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		// Keras 2.0 stored the layer list directly.
		if err := json.Unmarshal(raw, &seq.Layers); err != nil {
			return seq, fmt.Errorf("parse layers: %w", err)
		}
		return seq, nil
	}
	if err := json.Unmarshal(raw, &seq); err != nil {
		return seq, fmt.Errorf("parse sequential config: %w", err)
	}
	return seq, nil
}

type namedWeight struct {
	spec   weightSpec
	values []float64
}

// readWeights decodes every manifest group; shards of a group are
// concatenated and sliced in manifest order.
func readWeights(groups []weightGroup, readShard func(string) ([]byte, error)) ([]namedWeight, error) {
	var out []namedWeight
	for _, g := range groups {
		var buf []byte
		for _, p := range g.Paths {
			if readShard == nil {
				return nil, fmt.Errorf("read weights: no shard reader for %s", p)
			}
			b, err := readShard(p)
			if err != nil {
				return nil, fmt.Errorf("read weights %s: %w", p, err)
			}
			buf = append(buf, b...)
		}
		off := 0
		for _, w := range g.Weights {
			if len(w.Quantization) > 0 && string(w.Quantization) != "null" {
				return nil, fmt.Errorf("%w: quantized weight %s", ErrUnsupported, w.Name)
			}
			n, err := checkedSize(w.Shape)
			if err != nil {
				return nil, fmt.Errorf("weight %s: %w", w.Name, err)
			}
			width, decode, err := decoder(w.Dtype)
			if err != nil {
				return nil, fmt.Errorf("weight %s: %w", w.Name, err)
			}
			if n > (len(buf)-off)/width {
				return nil, fmt.Errorf("read weights: shard data too short for %s", w.Name)
			}
			vals := make([]float64, n)
			for i := range vals {
				vals[i] = decode(buf[off+i*width:])
			}
			off += n * width
			out = append(out, namedWeight{spec: w, values: vals})
		}
	}
	return out, nil
}

func decoder(dtype string) (int, func([]byte) float64, error) {
	switch dtype {
	case "", "float32":
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }, nil
	case "int32":
		return 4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }, nil
	case "bool":
		return 1, func(b []byte) float64 {
			if b[0] != 0 {
				return 1
			}
			return 0
		}, nil
	default:
		return 0, nil, fmt.Errorf("%w: dtype %q", ErrUnsupported, dtype)
	}
}

// build turns layer configs into layers, consuming weights in layer order.
func build(seq sequentialConfig, weights []namedWeight) (*Model, error) {
	m := &Model{Name: seq.Name}
	next := 0
	take := func(layer, role string, shape ...int) ([]float64, error) {
		if next >= len(weights) {
			return nil, fmt.Errorf("layer %s: missing %s weights", layer, role)
		}
		w := weights[next]
		next++
		if Size(w.spec.Shape) != Size(shape) || len(w.spec.Shape) != len(shape) {
			return nil, fmt.Errorf("layer %s: %s %s has shape %v, want %v", layer, role, w.spec.Name, w.spec.Shape, shape)
		}
		return w.values, nil
	}
	// cur tracks the per-sample shape flowing between layers; nil when unknown.
	var cur []int
	width := func() int {
		if len(cur) == 0 {
			return 0
		}
		return cur[len(cur)-1]
	}
	for i, lc := range seq.Layers {
		var c layerConfig
		if len(lc.Config) > 0 {
			if err := json.Unmarshal(lc.Config, &c); err != nil {
				return nil, fmt.Errorf("layer %d (%s): %w", i, lc.ClassName, err)
			}
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s_%d", strings.ToLower(lc.ClassName), i)
		}
		if i == 0 || lc.ClassName == "InputLayer" {
			if bs := c.batchShape(); len(bs) > 1 {
				m.InputShape = make([]int, len(bs)-1)
				for j, d := range bs[1:] {
					if d != nil {
						m.InputShape[j] = *d
					}
				}
				cur = slices.Clone(m.InputShape)
			}
		}
		switch lc.ClassName {
		case "InputLayer", "Dropout", "SpatialDropout1D", "GaussianNoise", "GaussianDropout":
			m.Layers = append(m.Layers, &identity{name: c.Name})
		case "Dense":
			if c.Units <= 0 {
				return nil, fmt.Errorf("layer %s: units must be positive", c.Name)
			}
			in := width()
			if in <= 0 {
				if next >= len(weights) || len(weights[next].spec.Shape) != 2 {
					return nil, fmt.Errorf("layer %s: cannot infer input width", c.Name)
				}
				in = weights[next].spec.Shape[0]
			}
			act, err := lookupActivation(c.Activation)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", c.Name, err)
			}
			l := &dense{name: c.Name, in: in, units: c.Units, act: act}
			if l.kernel, err = take(c.Name, "kernel", in, c.Units); err != nil {
				return nil, err
			}
			if c.UseBias == nil || *c.UseBias {
				if l.bias, err = take(c.Name, "bias", c.Units); err != nil {
					return nil, err
				}
			}
			m.Layers = append(m.Layers, l)
			if len(cur) == 0 {
				cur = []int{c.Units}
			} else {
				cur[len(cur)-1] = c.Units
			}
		case "Activation":
			act, err := lookupActivation(c.Activation)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", c.Name, err)
			}
			m.Layers = append(m.Layers, &activationLayer{name: c.Name, act: act})
		case "Softmax":
			if c.Axis != nil && *c.Axis != -1 {
				return nil, fmt.Errorf("%w: layer %s softmax axis %d", ErrUnsupported, c.Name, *c.Axis)
			}
			m.Layers = append(m.Layers, &activationLayer{name: c.Name, act: softmaxLastAxis})
		case "ReLU":
			m.Layers = append(m.Layers, &activationLayer{name: c.Name, act: activations["relu"]})
		case "Flatten":
			m.Layers = append(m.Layers, &flattenLayer{name: c.Name})
			if len(cur) > 0 && !hasUnknown(cur) {
				cur = []int{Size(cur)}
			} else {
				cur = nil
			}
		case "Reshape":
			if len(c.TargetShape) == 0 {
				return nil, fmt.Errorf("layer %s: missing target_shape", c.Name)
			}
			if err := validTarget(c.TargetShape); err != nil {
				return nil, fmt.Errorf("layer %s: %w", c.Name, err)
			}
			m.Layers = append(m.Layers, &reshapeLayer{name: c.Name, target: c.TargetShape})
			cur = slices.Clone(c.TargetShape)
			if hasUnknown(cur) {
				cur = nil
			}
		default:
			return nil, fmt.Errorf("%w: layer %s (%s)", ErrUnsupported, c.Name, lc.ClassName)
		}
	}
	if next != len(weights) {
		return nil, fmt.Errorf("weights manifest has %d unused weights", len(weights)-next)
	}
	if len(m.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	return m, nil
}

// validTarget accepts positive dimensions plus at most one -1.
func validTarget(target []int) error {
	inferred := 0
	for _, d := range target {
		switch {
		case d == -1:
			inferred++
		case d <= 0:
			return fmt.Errorf("invalid target_shape %v", target)
		}
	}
	if inferred > 1 {
		return fmt.Errorf("target_shape %v has more than one -1", target)
	}
	if _, err := checkedSize(slices.DeleteFunc(slices.Clone(target), func(d int) bool { return d < 0 })); err != nil {
		return err
	}
	return nil
}

func hasUnknown(shape []int) bool {
	for _, d := range shape {
		if d <= 0 {
			return true
		}
	}
	return false
}
