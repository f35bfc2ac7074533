package tensor

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewShapeAndNumel(t *testing.T) {
	tt := New(1, 4, 8, 8)
	if got := tt.Numel(); got != 256 {
		t.Errorf("Numel() = %d, want 256", got)
	}
	if diff := cmp.Diff([]int{1, 4, 8, 8}, tt.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestFromSlicePanicsOnBadShape(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	FromSlice([]float32{1, 2, 3}, 2, 2)
}

func TestAddScaled(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4}, 4)
	b := FromSlice([]float32{10, 20, 30, 40}, 4)

	a.AddScaled(0.5, b)
	want := []float32{6, 12, 18, 24}
	if diff := cmp.Diff(want, a.Data); diff != "" {
		t.Errorf("AddScaled mismatch (-want +got):\n%s", diff)
	}
}

func TestScaleAndSub(t *testing.T) {
	a := FromSlice([]float32{2, -4}, 2)
	a.Scale(0.5)
	if a.Data[0] != 1 || a.Data[1] != -2 {
		t.Errorf("Scale gave %v", a.Data)
	}

	b := FromSlice([]float32{0.5, 0.5}, 2)
	got := Sub(a, b)
	if got.Data[0] != 0.5 || got.Data[1] != -2.5 {
		t.Errorf("Sub gave %v", got.Data)
	}
	// Operands untouched.
	if a.Data[0] != 1 || b.Data[0] != 0.5 {
		t.Error("Sub mutated its operands")
	}
}

func TestCheckFinite(t *testing.T) {
	ok := FromSlice([]float32{0, 1, -1e30}, 3)
	if err := ok.CheckFinite(); err != nil {
		t.Errorf("CheckFinite on finite tensor: %v", err)
	}

	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		tt := FromSlice([]float32{0, bad}, 2)
		if err := tt.CheckFinite(); err == nil {
			t.Errorf("CheckFinite missed %v", bad)
		}
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	a := NewGenerator(42).Normal(2, 3)
	b := NewGenerator(42).Normal(2, 3)
	if diff := cmp.Diff(a.Data, b.Data); diff != "" {
		t.Errorf("same seed, different noise:\n%s", diff)
	}

	c := NewGenerator(43).Normal(2, 3)
	if cmp.Equal(a.Data, c.Data) {
		t.Error("different seeds produced identical noise")
	}
}

func TestGeneratorDistribution(t *testing.T) {
	n := NewGenerator(1).Normal(1, 1, 100, 100)

	var sum, sumSq float64
	for _, v := range n.Data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	count := float64(n.Numel())
	mean := sum / count
	variance := sumSq/count - mean*mean

	if math.Abs(mean) > 0.05 {
		t.Errorf("mean %v too far from 0", mean)
	}
	if math.Abs(variance-1) > 0.05 {
		t.Errorf("variance %v too far from 1", variance)
	}
}

func TestMinMax(t *testing.T) {
	tt := FromSlice([]float32{3, -7, 2, 5}, 4)
	lo, hi := tt.MinMax()
	if lo != -7 || hi != 5 {
		t.Errorf("MinMax() = %v, %v", lo, hi)
	}
}
