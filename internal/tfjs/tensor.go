package tfjs

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Tensor is a dense row-major float tensor. The first dimension is the batch.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Size returns the number of elements implied by shape.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// checkedSize is Size for shapes read from untrusted files. Negative
// dimensions and element counts that overflow int are rejected.
func checkedSize(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension in shape %v", shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("shape %v is too large", shape)
		}
		n *= d
	}
	return n, nil
}

// Rows returns the number of vectors along the last axis.
func (t Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	last := t.Shape[len(t.Shape)-1]
	if last == 0 {
		return 0
	}
	return len(t.Data) / last
}

// ErrBadInput reports input data that cannot be fed to the model.
var ErrBadInput = errors.New("bad input")

// TensorFromJSON decodes a nested JSON array of numbers into a batch tensor.
// inputShape excludes the batch dimension; unknown dimensions are 0. Data
// that matches the input rank exactly is treated as a single sample.
func TensorFromJSON(data []byte, inputShape []int) (Tensor, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	shape, err := shapeOf(v)
	if err != nil {
		return Tensor{}, err
	}
	if len(shape) == 0 {
		return Tensor{}, fmt.Errorf("%w: data must be an array", ErrBadInput)
	}
	flat := make([]float64, 0, Size(shape))
	flat = flatten(v, flat)

	// A single sample without batch dimension.
	if (len(inputShape) > 0 && len(shape) == len(inputShape)) || (len(inputShape) == 0 && len(shape) == 1) {
		shape = append([]int{1}, shape...)
	}
	if len(inputShape) > 0 {
		if len(shape) != len(inputShape)+1 {
			return Tensor{}, fmt.Errorf("%w: expected rank %d input, got shape %v", ErrBadInput, len(inputShape)+1, shape)
		}
		for i, d := range inputShape {
			if d > 0 && shape[i+1] != d {
				return Tensor{}, fmt.Errorf("%w: expected input shape [null %v], got %v", ErrBadInput, inputShape, shape)
			}
		}
	}
	return Tensor{Shape: shape, Data: flat}, nil
}

// shapeOf walks the first element at each depth and checks the array is
// rectangular and numeric.
func shapeOf(v any) ([]int, error) {
	switch x := v.(type) {
	case float64:
		return nil, nil
	case []any:
		if len(x) == 0 {
			return nil, fmt.Errorf("%w: empty array", ErrBadInput)
		}
		inner, err := shapeOf(x[0])
		if err != nil {
			return nil, err
		}
		for _, e := range x[1:] {
			s, err := shapeOf(e)
			if err != nil {
				return nil, err
			}
			if !slices.Equal(s, inner) {
				return nil, fmt.Errorf("%w: ragged array", ErrBadInput)
			}
		}
		return append([]int{len(x)}, inner...), nil
	default:
		return nil, fmt.Errorf("%w: non-numeric value %v", ErrBadInput, v)
	}
}

func flatten(v any, out []float64) []float64 {
	switch x := v.(type) {
	case float64:
		return append(out, x)
	case []any:
		for _, e := range x {
			out = flatten(e, out)
		}
	}
	return out
}

// MarshalJSON renders the tensor as nested arrays following its shape.
func (t Tensor) MarshalJSON() ([]byte, error) {
	if Size(t.Shape) != len(t.Data) {
		return nil, fmt.Errorf("tensor shape %v does not match %d values", t.Shape, len(t.Data))
	}
	if len(t.Shape) == 0 {
		return json.Marshal(t.Data)
	}
	v, _ := nest(t.Shape, t.Data)
	return json.Marshal(v)
}

func nest(shape []int, data []float64) (any, []float64) {
	if len(shape) == 1 {
		out := make([]float64, shape[0])
		copy(out, data[:shape[0]])
		return out, data[shape[0]:]
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i], data = nest(shape[1:], data)
	}
	return out, data
}
