package alloc

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestWeightedPick(t *testing.T) {
	tests := []struct {
		name    string
		weights []int
		draw    float64
		want    int
	}{
		{"empty", nil, 0.5, -1},
		{"single", []int{100}, 0.99, 0},
		{"first bucket at zero", []int{20, 30, 50}, 0.0, 0},
		{"second bucket", []int{20, 30, 50}, 0.25, 1},
		{"third bucket", []int{20, 30, 50}, 0.6, 2},
		{"top of range", []int{20, 30, 50}, 0.9999, 2},
		{"zero weights skipped at zero", []int{0, 50, 0, 50}, 0.0, 1},
		{"zero weights skipped", []int{0, 50, 0, 50}, 0.75, 3},
		{"negative weight skipped", []int{-5, 10}, 0.1, 1},
		{"all zero is uniform", []int{0, 0, 0}, 0.5, 1},
		{"all zero top of range", []int{0, 0, 0}, 0.9999, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightedPick(tt.weights, newSequenceSource(tt.draw)))
		})
	}
}

func TestWeightedPick_Distribution(t *testing.T) {
	const draws = 100_000
	weights := []int{20, 30, 50}
	src := NewRandomSource(42)

	counts := make([]int, len(weights))
	for range draws {
		counts[WeightedPick(weights, src)]++
	}
	for i, w := range weights {
		got := float64(counts[i]) / draws
		assert.InDelta(t, float64(w)/100, got, 0.01, "variant %d", i)
	}
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name       string
		allocation int
		draw       float64
		want       bool
	}{
		{"zero never admits", 0, 0.0, false},
		{"negative never admits", -5, 0.0, false},
		{"hundred always admits", 100, 0.9999, true},
		{"above hundred admits", 150, 0.9999, true},
		{"draw at allocation admits", 50, 0.5, true},
		{"draw above allocation excludes", 50, 0.51, false},
		{"one percent at zero draw", 1, 0.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Admit(tt.allocation, newSequenceSource(tt.draw)))
		})
	}
}

func TestAdmit_Rate(t *testing.T) {
	src := NewRandomSource(7)
	admitted := 0
	for range 50_000 {
		if Admit(30, src) {
			admitted++
		}
	}
	assert.InDelta(t, 0.30, float64(admitted)/50_000, 0.01)
}

func TestProperty_WeightedPick(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("pick is in range and never a non-positive weight when any is positive", prop.ForAll(
		func(weights []int, draw float64) bool {
			idx := WeightedPick(weights, newSequenceSource(draw))
			if len(weights) == 0 {
				return idx == -1
			}
			if idx < 0 || idx >= len(weights) {
				return false
			}
			for _, w := range weights {
				if w > 0 {
					return weights[idx] > 0
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-10, 100)),
		gen.Float64Range(0, 0.999999),
	))

	properties.TestingRun(t)
}

func FuzzWeightedPick(f *testing.F) {
	f.Add(int16(20), int16(30), int16(50), uint64(0))
	f.Add(int16(0), int16(0), int16(0), uint64(1<<63))
	f.Add(int16(-1), int16(5), int16(0), ^uint64(0))

	f.Fuzz(func(t *testing.T, a, b, c int16, u uint64) {
		weights := []int{int(a), int(b), int(c)}
		draw := float64(u>>11) / (1 << 53)
		idx := WeightedPick(weights, newSequenceSource(draw))
		if idx < 0 || idx >= len(weights) {
			t.Fatalf("index %d out of range for %v", idx, weights)
		}
		if (a > 0 || b > 0 || c > 0) && weights[idx] <= 0 {
			t.Fatalf("picked non-positive weight %d at %d for %v", weights[idx], idx, weights)
		}
	})
}
