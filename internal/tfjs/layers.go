package tfjs

import (
	"fmt"
	"slices"
)

// Layer is one step of a Sequential forward pass.
type Layer interface {
	Name() string
	Forward(x Tensor) (Tensor, error)
}

type dense struct {
	name   string
	in     int
	units  int
	kernel []float64 // [in, units]
	bias   []float64 // [units] or nil
	act    activation
}

func (l *dense) Name() string { return l.name }

func (l *dense) Forward(x Tensor) (Tensor, error) {
	if len(x.Shape) < 2 || x.Shape[len(x.Shape)-1] != l.in {
		return Tensor{}, fmt.Errorf("%w: layer %s expects last dimension %d, got shape %v", ErrBadInput, l.name, l.in, x.Shape)
	}
	rows := x.Rows()
	out := make([]float64, rows*l.units)
	for r := 0; r < rows; r++ {
		row := x.Data[r*l.in : (r+1)*l.in]
		dst := out[r*l.units : (r+1)*l.units]
		if l.bias != nil {
			copy(dst, l.bias)
		}
		for i, v := range row {
			if v == 0 {
				continue
			}
			k := l.kernel[i*l.units : (i+1)*l.units]
			for u := range dst {
				dst[u] += v * k[u]
			}
		}
	}
	shape := slices.Clone(x.Shape)
	shape[len(shape)-1] = l.units
	y := Tensor{Shape: shape, Data: out}
	l.act(y)
	return y, nil
}

type activationLayer struct {
	name string
	act  activation
}

func (l *activationLayer) Name() string { return l.name }

func (l *activationLayer) Forward(x Tensor) (Tensor, error) {
	y := Tensor{Shape: slices.Clone(x.Shape), Data: slices.Clone(x.Data)}
	l.act(y)
	return y, nil
}

// identity covers layers that are no-ops at inference time (Dropout, InputLayer).
type identity struct{ name string }

func (l *identity) Name() string                     { return l.name }
func (l *identity) Forward(x Tensor) (Tensor, error) { return x, nil }

type flattenLayer struct{ name string }

func (l *flattenLayer) Name() string { return l.name }

func (l *flattenLayer) Forward(x Tensor) (Tensor, error) {
	if len(x.Shape) == 0 {
		return Tensor{}, fmt.Errorf("%w: layer %s got a scalar", ErrBadInput, l.name)
	}
	batch := x.Shape[0]
	per := 1
	if batch > 0 {
		per = len(x.Data) / batch
	}
	return Tensor{Shape: []int{batch, per}, Data: x.Data}, nil
}

type reshapeLayer struct {
	name   string
	target []int // without batch; at most one -1
}

func (l *reshapeLayer) Name() string { return l.name }

func (l *reshapeLayer) Forward(x Tensor) (Tensor, error) {
	if len(x.Shape) == 0 || x.Shape[0] == 0 {
		return Tensor{}, fmt.Errorf("%w: layer %s got an empty batch", ErrBadInput, l.name)
	}
	batch := x.Shape[0]
	per := len(x.Data) / batch
	shape := append([]int{batch}, l.target...)
	known, unknown := 1, -1
	for i, d := range l.target {
		if d < 0 {
			unknown = i + 1
			continue
		}
		known *= d
	}
	if unknown > 0 {
		if known == 0 || per%known != 0 {
			return Tensor{}, fmt.Errorf("%w: layer %s cannot reshape %v to %v", ErrBadInput, l.name, x.Shape, l.target)
		}
		shape[unknown] = per / known
	} else if known != per {
		return Tensor{}, fmt.Errorf("%w: layer %s cannot reshape %v to %v", ErrBadInput, l.name, x.Shape, l.target)
	}
	return Tensor{Shape: shape, Data: x.Data}, nil
}
