package schedule

import (
	"math"
	"testing"

	"github.com/stablegen/stablegen/tensor"
)

func TestTimestepsLengthAndOrder(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 5, 10, 20, 30, 50, 100, 250, 999, 1000} {
		timesteps, err := s.SetTimesteps(n)
		if err != nil {
			t.Fatalf("SetTimesteps(%d): %v", n, err)
		}

		if len(timesteps) != n {
			t.Errorf("SetTimesteps(%d) returned %d timesteps", n, len(timesteps))
		}

		for i := 1; i < len(timesteps); i++ {
			if timesteps[i] >= timesteps[i-1] {
				t.Fatalf("SetTimesteps(%d): not strictly decreasing at %d: %d >= %d",
					n, i, timesteps[i], timesteps[i-1])
			}
		}

		if last := timesteps[len(timesteps)-1]; last < 0 || last >= s.config.TrainSteps {
			t.Errorf("SetTimesteps(%d): final timestep %d out of trained range", n, last)
		}
		if first := timesteps[0]; first >= s.config.TrainSteps {
			t.Errorf("SetTimesteps(%d): first timestep %d past the trained grid", n, first)
		}
	}
}

func TestSetTimestepsFullGridStaysInRange(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// With n equal to the trained step count the offset would index one
	// past the alpha-bar table; the grid must shift back instead.
	timesteps, err := s.SetTimesteps(1000)
	if err != nil {
		t.Fatal(err)
	}
	if got := timesteps[0]; got != 999 {
		t.Errorf("first timestep = %d, want 999", got)
	}
	if got := timesteps[len(timesteps)-1]; got != 0 {
		t.Errorf("final timestep = %d, want 0", got)
	}

	// A count that already fits is left untouched.
	timesteps, err = s.SetTimesteps(999)
	if err != nil {
		t.Fatal(err)
	}
	if got := timesteps[0]; got != 999 {
		t.Errorf("first timestep = %d, want 999", got)
	}
	if got := timesteps[len(timesteps)-1]; got != 1 {
		t.Errorf("final timestep = %d, want 1", got)
	}
}

func TestSetTimestepsRejectsInvalid(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, -1, 1001} {
		if _, err := s.SetTimesteps(n); err == nil {
			t.Errorf("SetTimesteps(%d) should fail", n)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		config Config
	}{
		{"zero train steps", Config{TrainSteps: 0, BetaStart: 0.001, BetaEnd: 0.01}},
		{"inverted betas", Config{TrainSteps: 10, BetaStart: 0.01, BetaEnd: 0.001}},
		{"unknown schedule", Config{TrainSteps: 10, BetaStart: 0.001, BetaEnd: 0.01, Schedule: "cosine"}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStartIndex(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetTimesteps(20); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		strength float64
		want     int
	}{
		{1.0, 0},
		{0.75, 5},
		{0.5, 10},
		{0.25, 15},
		{0.01, 19}, // clamped to the final step
	}
	for _, tt := range cases {
		if got := s.StartIndex(tt.strength); got != tt.want {
			t.Errorf("StartIndex(%g) = %d, want %d", tt.strength, got, tt.want)
		}
	}
}

func TestAlphaBarMonotone(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	prev := 1.0
	for ts := 0; ts < 1000; ts += 50 {
		ab := s.AlphaBar(ts)
		if ab <= 0 || ab >= 1 {
			t.Fatalf("AlphaBar(%d) = %v out of (0, 1)", ts, ab)
		}
		if ab >= prev {
			t.Fatalf("AlphaBar not decreasing at %d: %v >= %v", ts, ab, prev)
		}
		prev = ab
	}
}

func TestAddNoiseClosedForm(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	original := tensor.FromSlice([]float32{1, -1, 0.5, 0}, 1, 1, 2, 2)
	noise := tensor.FromSlice([]float32{0.1, 0.2, -0.3, 1}, 1, 1, 2, 2)

	const ts = 500
	got := s.AddNoise(original, noise, ts)

	ab := s.AlphaBar(ts)
	for i := range got.Data {
		want := math.Sqrt(ab)*float64(original.Data[i]) + math.Sqrt(1-ab)*float64(noise.Data[i])
		if diff := math.Abs(float64(got.Data[i]) - want); diff > 1e-6 {
			t.Errorf("AddNoise[%d] = %v, want %v", i, got.Data[i], want)
		}
	}
}

// TestOracleRoundTrip drives the full schedule with a perfect noise
// predictor: given the known clean latent, each prediction is the exact
// epsilon implied by the current sample. The loop must recover the clean
// latent up to the small residual left at the final trained timestep.
func TestOracleRoundTrip(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	timesteps, err := s.SetTimesteps(50)
	if err != nil {
		t.Fatal(err)
	}

	gen := tensor.NewGenerator(7)
	clean := gen.Normal(1, 4, 8, 8)
	noise := gen.NormalLike(clean)

	latent := s.AddNoise(clean, noise, timesteps[0])
	for _, ts := range timesteps {
		ab := s.AlphaBar(ts)
		eps := tensor.New(latent.Shape...)
		for i := range eps.Data {
			eps.Data[i] = float32((float64(latent.Data[i]) - math.Sqrt(ab)*float64(clean.Data[i])) / math.Sqrt(1-ab))
		}
		latent = s.Step(eps, latent, ts)
	}

	var sum float64
	var worst float64
	for i := range latent.Data {
		diff := math.Abs(float64(latent.Data[i] - clean.Data[i]))
		sum += diff
		if diff > worst {
			worst = diff
		}
	}
	if mean := sum / float64(len(latent.Data)); mean > 0.05 {
		t.Errorf("mean reconstruction error %v too large", mean)
	}
	if worst > 0.2 {
		t.Errorf("max reconstruction error %v too large", worst)
	}
}

func TestStepDeterministic(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetTimesteps(20); err != nil {
		t.Fatal(err)
	}

	gen := tensor.NewGenerator(42)
	sample := gen.Normal(1, 4, 4, 4)
	eps := gen.NormalLike(sample)

	a := s.Step(eps, sample, 701)
	b := s.Step(eps, sample, 701)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Step not deterministic at %d: %v != %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestStepFiniteAtFinalTimestep(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	timesteps, err := s.SetTimesteps(1000)
	if err != nil {
		t.Fatal(err)
	}

	gen := tensor.NewGenerator(3)
	sample := gen.Normal(1, 4, 2, 2)
	eps := gen.NormalLike(sample)

	// The last timestep sits where alpha-bar is closest to 1.
	out := s.Step(eps, sample, timesteps[len(timesteps)-1])
	if err := out.CheckFinite(); err != nil {
		t.Fatalf("final step produced non-finite values: %v", err)
	}
}
