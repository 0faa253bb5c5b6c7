package tfjs

import (
	"fmt"
	"math"
	"strings"
)

// activation transforms the last axis of a tensor in place.
type activation func(t Tensor)

const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

func elementwise(f func(float64) float64) activation {
	return func(t Tensor) {
		for i, v := range t.Data {
			t.Data[i] = f(v)
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// softmaxLastAxis normalizes every row of the last axis, shifted by the row
// max for numerical stability.
func softmaxLastAxis(t Tensor) {
	if len(t.Shape) == 0 {
		return
	}
	n := t.Shape[len(t.Shape)-1]
	for r := 0; r < t.Rows(); r++ {
		row := t.Data[r*n : (r+1)*n]
		maxV := math.Inf(-1)
		for _, v := range row {
			maxV = math.Max(maxV, v)
		}
		var sum float64
		for i, v := range row {
			row[i] = math.Exp(v - maxV)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
}

var activations = map[string]activation{
	"linear":       func(Tensor) {},
	"relu":         elementwise(relu),
	"relu6":        elementwise(relu6),
	"sigmoid":      elementwise(sigmoid),
	"hard_sigmoid": elementwise(hardSigmoid),
	"tanh":         elementwise(math.Tanh),
	"softmax":      softmaxLastAxis,
	"softplus":     elementwise(softplus),
	"softsign":     elementwise(softsign),
	"elu":          elementwise(elu),
	"selu":         elementwise(selu),
	"swish":        elementwise(swish),
	"exponential":  elementwise(math.Exp),
}

func relu(x float64) float64        { return math.Max(0, x) }
func relu6(x float64) float64       { return math.Min(6, math.Max(0, x)) }
func hardSigmoid(x float64) float64 { return math.Min(1, math.Max(0, 0.2*x+0.5)) }
func softplus(x float64) float64    { return math.Log1p(math.Exp(x)) }
func softsign(x float64) float64    { return x / (1 + math.Abs(x)) }
func swish(x float64) float64       { return x * sigmoid(x) }

func elu(x float64) float64 {
	if x > 0 {
		return x
	}
	return math.Expm1(x)
}

func selu(x float64) float64 {
	if x > 0 {
		return seluScale * x
	}
	return seluScale * seluAlpha * math.Expm1(x)
}

// lookupActivation accepts both Keras snake_case and TF.js camelCase names.
func lookupActivation(name string) (activation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "":
		key = "linear"
	case "hardsigmoid":
		key = "hard_sigmoid"
	}
	a, ok := activations[key]
	if !ok {
		return nil, fmt.Errorf("%w: activation %q", ErrUnsupported, name)
	}
	return a, nil
}
