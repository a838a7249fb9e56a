package services

import (
	"math"
	"sort"

	"dvf-analyzer/models"
)

// Aggregate computes count, mean, median, min, max and the sample standard
// deviation of values. Mean, median and stdev are rounded to two decimals;
// min and max are returned as observed. Stdev is left nil for a single value
// and an empty input gives the zero result.
func Aggregate(values []float64) models.StatisticsResult {
	n := len(values)
	if n == 0 {
		return models.StatisticsResult{}
	}

	sorted := sortedCopy(values)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	res := models.StatisticsResult{
		Count:  n,
		Mean:   round2(mean),
		Median: round2(median(sorted)),
		Min:    sorted[0],
		Max:    sorted[n-1],
	}

	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		stdev := round2(math.Sqrt(sq / float64(n-1)))
		res.Stdev = &stdev
	}
	return res
}

// AggregateField applies Aggregate to one numeric field of records.
func AggregateField(records []models.ExtractedRecord, field func(models.ExtractedRecord) float64) models.StatisticsResult {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = field(r)
	}
	return Aggregate(values)
}

// PricePerArea is the field accessor used by the price statistics.
func PricePerArea(r models.ExtractedRecord) float64 { return r.PricePerArea }

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// quartiles returns Q1 and Q3 of sorted (at least two values).
func quartiles(sorted []float64, method models.QuartileMethod) (q1, q3 float64) {
	if method == models.QuartileExclusive {
		return exclusiveQuantile(sorted, 1), exclusiveQuantile(sorted, 3)
	}
	return inclusiveQuantile(sorted, 0.25), inclusiveQuantile(sorted, 0.75)
}

// inclusiveQuantile interpolates linearly at 0-indexed rank p*(n-1).
func inclusiveQuantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// exclusiveQuantile returns the i-th quartile cut point using linear
// interpolation at 1-indexed rank i*(n+1)/4. The rank is computed in integer
// arithmetic so the interpolation weight is exact.
func exclusiveQuantile(sorted []float64, i int) float64 {
	n := len(sorted)
	m := n + 1
	j := i * m / 4
	if j < 1 {
		j = 1
	}
	if j > n-1 {
		j = n - 1
	}
	delta := i*m - j*4
	return (sorted[j-1]*float64(4-delta) + sorted[j]*float64(delta)) / 4
}

// round2 rounds half away from zero to two decimals.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
