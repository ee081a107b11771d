package classifier

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainConfig holds the fit parameters of the dense classifier.
type TrainConfig struct {
	LearningRate    float64
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Patience        int
	Seed            int64
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-7
)

// Dense is a single fully connected layer with sigmoid activation, trained
// with mean squared error. Weights start at one and biases at zero.
type Dense struct {
	inputs  int
	units   int
	weights []float64 // inputs x units, row-major
	bias    []float64
}

func NewDense(inputs, units int) *Dense {
	d := &Dense{
		inputs:  inputs,
		units:   units,
		weights: make([]float64, inputs*units),
		bias:    make([]float64, units),
	}
	for i := range d.weights {
		d.weights[i] = 1
	}
	return d
}

func (d *Dense) Inputs() int { return d.inputs }
func (d *Dense) Units() int  { return d.units }

// Predict returns one activation per unit.
func (d *Dense) Predict(x []float64) ([]float64, error) {
	if len(x) != d.inputs {
		return nil, fmt.Errorf("input width %d, layer expects %d", len(x), d.inputs)
	}
	out := make([]float64, d.units)
	d.forward(x, out)
	return out, nil
}

func (d *Dense) forward(x, out []float64) {
	for u := 0; u < d.units; u++ {
		z := d.bias[u]
		for i, xi := range x {
			z += xi * d.weights[i*d.units+u]
		}
		out[u] = sigmoid(z)
	}
}

// FitResult summarizes a training run.
type FitResult struct {
	Epochs       int
	TrainLoss    float64
	ValLoss      float64
	HasVal       bool
	StoppedEarly bool
}

// Fit trains on xs/ys. The last ValidationSplit fraction of the samples is
// held out (before shuffling) and drives early stopping on its loss.
func (d *Dense) Fit(xs, ys [][]float64, cfg TrainConfig) (FitResult, error) {
	if len(xs) != len(ys) {
		return FitResult{}, fmt.Errorf("%d inputs but %d targets", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return FitResult{}, fmt.Errorf("no training samples")
	}
	for i := range xs {
		if len(xs[i]) != d.inputs || len(ys[i]) != d.units {
			return FitResult{}, fmt.Errorf("sample %d has shape %dx%d, want %dx%d",
				i, len(xs[i]), len(ys[i]), d.inputs, d.units)
		}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	split := trainPrefix(len(xs), cfg.ValidationSplit)
	trainX, trainY := xs[:split], ys[:split]
	valX, valY := xs[split:], ys[split:]
	hasVal := len(valX) > 0

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	opt := newAdam(len(d.weights), len(d.bias))
	gradW := make([]float64, len(d.weights))
	gradB := make([]float64, len(d.bias))
	out := make([]float64, d.units)

	result := FitResult{HasVal: hasVal}
	best := math.Inf(1)
	wait := 0

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			for i := range gradW {
				gradW[i] = 0
			}
			for i := range gradB {
				gradB[i] = 0
			}

			scale := 2 / float64((end-start)*d.units)
			for _, idx := range order[start:end] {
				x, y := trainX[idx], trainY[idx]
				d.forward(x, out)
				for u := 0; u < d.units; u++ {
					diff := out[u] - y[u]
					epochLoss += diff * diff / float64(d.units)
					delta := scale * diff * out[u] * (1 - out[u])
					gradB[u] += delta
					for i, xi := range x {
						gradW[i*d.units+u] += delta * xi
					}
				}
			}
			opt.step(d.weights, gradW, d.bias, gradB, cfg.LearningRate)
		}

		result.Epochs = epoch + 1
		result.TrainLoss = epochLoss / float64(len(order))

		if !hasVal {
			continue
		}
		result.ValLoss = d.loss(valX, valY)
		if result.ValLoss < best {
			best = result.ValLoss
			wait = 0
			continue
		}
		wait++
		if cfg.Patience > 0 && wait >= cfg.Patience {
			result.StoppedEarly = true
			break
		}
	}

	return result, nil
}

func (d *Dense) loss(xs, ys [][]float64) float64 {
	out := make([]float64, d.units)
	var total float64
	for i, x := range xs {
		d.forward(x, out)
		for u := 0; u < d.units; u++ {
			diff := out[u] - ys[i][u]
			total += diff * diff
		}
	}
	return total / float64(len(xs)*d.units)
}

type adam struct {
	mW, vW []float64
	mB, vB []float64
	t      int
}

func newAdam(weights, biases int) *adam {
	return &adam{
		mW: make([]float64, weights),
		vW: make([]float64, weights),
		mB: make([]float64, biases),
		vB: make([]float64, biases),
	}
}

func (a *adam) step(w, gw, b, gb []float64, lr float64) {
	a.t++
	b1Corr := 1 - math.Pow(adamBeta1, float64(a.t))
	b2Corr := 1 - math.Pow(adamBeta2, float64(a.t))
	update(w, gw, a.mW, a.vW, lr, b1Corr, b2Corr)
	update(b, gb, a.mB, a.vB, lr, b1Corr, b2Corr)
}

func update(p, g, m, v []float64, lr, b1Corr, b2Corr float64) {
	for j := range p {
		m[j] = adamBeta1*m[j] + (1-adamBeta1)*g[j]
		v[j] = adamBeta2*v[j] + (1-adamBeta2)*g[j]*g[j]
		mhat := m[j] / b1Corr
		vhat := v[j] / b2Corr
		p[j] -= lr * mhat / (math.Sqrt(vhat) + adamEps)
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// OneHot encodes class indexes into rows of width classes.
func OneHot(indexes []int, classes int) [][]float64 {
	out := make([][]float64, len(indexes))
	for i, idx := range indexes {
		row := make([]float64, classes)
		if idx >= 0 && idx < classes {
			row[idx] = 1
		}
		out[i] = row
	}
	return out
}

// trainPrefix is the count of leading samples kept for training. The tail is
// held out for validation before any shuffling, the same cut tf.js fit makes.
// Inputs arrive in label order, so the last label loses examples first.
func trainPrefix(n int, validationSplit float64) int {
	split := int(math.Floor(float64(n) * (1 - validationSplit)))
	if split <= 0 || split > n {
		return n
	}
	return split
}
