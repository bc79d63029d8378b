package norm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/arloliu/hic/block"
)

// ErrNotConverged is returned when balancing exceeds its iteration budget.
var ErrNotConverged = errors.New("matrix balancing did not converge")

// RecordSource yields every contact record of one zoom. Balancing iterates it
// once per round, so it must be re-iterable.
type RecordSource interface {
	Records(ctx context.Context) iter.Seq2[block.ContactRecord, error]
}

// Balancer computes multiplicative bin scalings x so that the row sums of the
// symmetric matrix x_i * A_ij * x_j match target. Bins with an invalid target
// or no contacts get a zero scaling.
type Balancer interface {
	Balance(ctx context.Context, src RecordSource, target []float64) ([]float64, error)
}

// MatrixBalancer is an iterative square-root scaling balancer.
type MatrixBalancer struct {
	MaxIterations int
	// Tolerance bounds the relative row-sum error of every valid bin.
	Tolerance float64
}

// DefaultBalancer returns a balancer with 200 rounds and a 1e-4 tolerance.
func DefaultBalancer() *MatrixBalancer {
	return &MatrixBalancer{MaxIterations: 200, Tolerance: 1e-4}
}

func validTarget(t float64) bool {
	return t > 0 && !math.IsNaN(t) && !math.IsInf(t, 0)
}

// Balance implements Balancer.
func (b *MatrixBalancer) Balance(ctx context.Context, src RecordSource, target []float64) ([]float64, error) {
	n := len(target)
	x := make([]float64, n)
	for i, t := range target {
		if validTarget(t) {
			x[i] = 1
		}
	}
	rows := make([]float64, n)

	for range b.MaxIterations {
		clear(rows)
		for rec, err := range src.Records(ctx) {
			if err != nil {
				return nil, err
			}
			i, j, c := int(rec.BinX), int(rec.BinY), float64(rec.Counts)
			if i < 0 || j < 0 || i >= n || j >= n || math.IsNaN(c) {
				continue
			}
			rows[i] += c * x[j]
			if i != j {
				rows[j] += c * x[i]
			}
		}

		worst := 0.0
		for i, t := range target {
			if x[i] == 0 {
				continue
			}
			s := x[i] * rows[i]
			if s <= 0 {
				x[i] = 0
				continue
			}
			worst = math.Max(worst, math.Abs(s/t-1))
			x[i] *= math.Sqrt(t / s)
		}
		if worst < b.Tolerance {
			return x, nil
		}
	}

	return nil, fmt.Errorf("%w after %d rounds", ErrNotConverged, b.MaxIterations)
}

// ScaleToVector rescales v so that the balanced matrix keeps the total count
// of the raw matrix. It returns a new vector; v is not modified.
func ScaleToVector(ctx context.Context, v *Vector, src RecordSource, balancer Balancer) (*Vector, error) {
	if balancer == nil {
		balancer = DefaultBalancer()
	}

	x, err := balancer.Balance(ctx, src, v.Values)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", v.Key(), err)
	}

	values := make([]float64, len(x))
	for k, s := range x {
		if s <= 0 || math.IsNaN(s) {
			values[k] = math.NaN()
		} else {
			values[k] = 1 / s
		}
	}

	var normalizedSum, sum float64
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return nil, err
		}
		i, j := int(rec.BinX), int(rec.BinY)
		if i < 0 || j < 0 || i >= len(values) || j >= len(values) {
			continue
		}
		if math.IsNaN(values[i]) || math.IsNaN(values[j]) {
			continue
		}
		c := float64(rec.Counts)
		weight := 1.0
		if i != j {
			weight = 2
		}
		normalizedSum += weight * c / (values[i] * values[j])
		sum += weight * c
	}

	if sum > 0 {
		factor := math.Sqrt(normalizedSum / sum)
		for k := range values {
			if !math.IsNaN(values[k]) {
				values[k] *= factor
			}
		}
	}

	return &Vector{
		Type:       v.Type,
		ChrIdx:     v.ChrIdx,
		Unit:       v.Unit,
		Resolution: v.Resolution,
		Values:     values,
		Offset:     v.Offset,
	}, nil
}
