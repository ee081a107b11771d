package classifier

import (
	"testing"

	"github.com/kapu/blockext-go/internal/util"
)

func TestDenseLearnsSeparableClasses(t *testing.T) {
	xs := [][]float64{
		{1, 0}, {0.9, 0.1}, {0.8, 0},
		{0, 1}, {0.1, 0.9}, {0, 0.8},
	}
	idx := []int{0, 0, 0, 1, 1, 1}

	layer := NewDense(2, 2)
	result, err := layer.Fit(xs, OneHot(idx, 2), TrainConfig{
		LearningRate: 0.06,
		Epochs:       100,
		BatchSize:    4,
		Seed:         7,
	})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if result.Epochs != 100 || result.HasVal {
		t.Fatalf("unexpected fit result %+v", result)
	}

	for i, x := range xs {
		out, err := layer.Predict(x)
		if err != nil {
			t.Fatalf("predict failed: %v", err)
		}
		if got := util.ArgMax(out); got != idx[i] {
			t.Fatalf("sample %d: predicted %d, want %d (scores %v)", i, got, idx[i], out)
		}
	}
}

func TestDenseHoldsOutTailForValidation(t *testing.T) {
	xs := [][]float64{{1}, {1}, {1}}
	ys := OneHot([]int{0, 0, 1}, 2)

	result, err := NewDense(1, 2).Fit(xs, ys, TrainConfig{
		LearningRate:    0.06,
		Epochs:          100,
		BatchSize:       4,
		ValidationSplit: 0.15,
		Patience:        5,
	})
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if !result.HasVal {
		t.Fatalf("expected a validation split")
	}
	if !result.StoppedEarly || result.Epochs >= 100 {
		t.Fatalf("expected early stopping on a worsening validation loss, got %+v", result)
	}
}

func TestTrainPrefixCutsLabelOrderedTail(t *testing.T) {
	labels := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		labels = append(labels, i/10)
	}

	split := trainPrefix(len(labels), 0.15)
	if split != 17 {
		t.Fatalf("expected 17 training samples, got %d", split)
	}
	for _, label := range labels[split:] {
		if label != 1 {
			t.Fatalf("expected only the last label in validation, got %v", labels[split:])
		}
	}

	if got := trainPrefix(1, 0.15); got != 1 {
		t.Fatalf("a single sample must stay in training, got %d", got)
	}
	if got := trainPrefix(5, 0); got != 5 {
		t.Fatalf("no split must keep every sample, got %d", got)
	}
}

func TestDenseRejectsShapeMismatch(t *testing.T) {
	layer := NewDense(3, 2)
	if _, err := layer.Predict([]float64{1}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
	if _, err := layer.Fit([][]float64{{1, 2, 3}}, [][]float64{{1}}, TrainConfig{Epochs: 1}); err == nil {
		t.Fatalf("expected target shape error")
	}
}
