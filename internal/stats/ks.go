// Package stats implements the two-sample Kolmogorov-Smirnov test used to
// quantify distributional distance between a baseline and a current feature
// column. KS is distribution-free and sensitive to both location and shape
// shifts, which suits production features of unknown distribution.
package stats

import (
	"math"
	"sort"

	"github.com/modelstack/driftwatch/internal/models"
)

// KSResult carries the outcome of one two-sample comparison.
type KSResult struct {
	Statistic float64
	PValue    float64
	NBaseline int
	NCurrent  int
}

// Comparator runs KS comparisons with a minimum-sample guard.
type Comparator struct {
	minSamples int
}

// NewComparator returns a comparator requiring at least minSamples observations
// on each side. Values below 2 are raised to 2: a single observation has no
// empirical distribution to speak of.
func NewComparator(minSamples int) *Comparator {
	if minSamples < 2 {
		minSamples = 2
	}
	return &Comparator{minSamples: minSamples}
}

// MinSamples returns the configured per-side minimum.
func (c *Comparator) MinSamples() int { return c.minSamples }

// Compare computes the KS statistic and asymptotic p-value for one feature.
// Inputs are not mutated. Samples smaller than the minimum yield an
// InsufficientDataError; empty columns yield an EmptySampleError.
func (c *Comparator) Compare(feature string, baseline, current []float64) (KSResult, error) {
	if len(baseline) == 0 || len(current) == 0 {
		return KSResult{}, &models.EmptySampleError{Feature: feature}
	}
	if len(baseline) < c.minSamples {
		return KSResult{}, &models.InsufficientDataError{Feature: feature, Got: len(baseline), Min: c.minSamples}
	}
	if len(current) < c.minSamples {
		return KSResult{}, &models.InsufficientDataError{Feature: feature, Got: len(current), Min: c.minSamples}
	}

	stat := Statistic(baseline, current)
	return KSResult{
		Statistic: stat,
		PValue:    PValue(stat, len(baseline), len(current)),
		NBaseline: len(baseline),
		NCurrent:  len(current),
	}, nil
}

// Statistic returns the maximum absolute difference between the empirical CDFs
// of the two samples. The ECDF only steps at distinct values, so each walker
// consumes its entire run of equal observations before the difference is taken;
// partial advances through a tie run would measure heights no ECDF ever attains.
// Symmetric: Statistic(a, b) == Statistic(b, a).
func Statistic(a, b []float64) float64 {
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	na, nb := float64(len(sa)), float64(len(sb))
	var i, j int
	var d float64
	for i < len(sa) && j < len(sb) {
		v := sa[i]
		if sb[j] < v {
			v = sb[j]
		}
		for i < len(sa) && sa[i] == v {
			i++
		}
		for j < len(sb) && sb[j] == v {
			j++
		}
		if diff := math.Abs(float64(i)/na - float64(j)/nb); diff > d {
			d = diff
		}
	}
	return d
}

// PValue returns the two-sided significance of a KS statistic under the null
// hypothesis that both samples share one distribution. It uses the asymptotic
// Kolmogorov distribution with the standard small-sample correction
// lambda = (sqrt(en) + 0.12 + 0.11/sqrt(en)) * d, en = n1*n2/(n1+n2).
func PValue(d float64, n1, n2 int) float64 {
	if d <= 0 {
		return 1
	}
	en := math.Sqrt(float64(n1) * float64(n2) / float64(n1+n2))
	lambda := (en + 0.12 + 0.11/en) * d
	return kolmogorovQ(lambda)
}

// kolmogorovQ evaluates Q_KS(lambda) = 2 * sum_{j>=1} (-1)^(j-1) exp(-2 j^2 lambda^2).
// The alternating series converges quickly for lambda away from zero; when it
// fails to converge the distributions are statistically indistinguishable and
// the probability saturates at 1.
func kolmogorovQ(lambda float64) float64 {
	const (
		maxTerms = 100
		relEps   = 1e-8
		absEps   = 1e-16
	)
	a2 := -2 * lambda * lambda
	sum := 0.0
	prev := 0.0
	sign := 1.0
	for j := 1; j <= maxTerms; j++ {
		term := sign * 2 * math.Exp(a2*float64(j*j))
		sum += term
		abs := math.Abs(term)
		if abs <= relEps*prev || abs <= absEps {
			if sum < 0 {
				return 0
			}
			if sum > 1 {
				return 1
			}
			return sum
		}
		prev = abs
		sign = -sign
	}
	return 1
}
