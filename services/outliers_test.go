package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvf-analyzer/models"
)

func prices(recs []models.ExtractedRecord) []float64 {
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.PricePerArea
	}
	return out
}

func TestRemoveOutliersSmallSampleUnchanged(t *testing.T) {
	in := records(1000, 2000, 500000)

	for _, policy := range []models.OutlierPolicy{models.PolicyQuartile, models.PolicyTrim} {
		got, fence := RemoveOutliers(in, OutlierConfig{Policy: policy})
		assert.Equal(t, in, got)
		assert.False(t, fence.Applied)
	}
}

func TestRemoveOutliersQuartileInclusive(t *testing.T) {
	in := records(1000, 2000, 3000, 100000)

	got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyQuartile})
	assert.Equal(t, []float64{1000, 2000, 3000}, prices(got))
	assert.True(t, fence.Applied)
	assert.Equal(t, models.QuartileInclusive, fence.Method)
	assert.Equal(t, 0.0, fence.Lower)
	assert.Equal(t, 65500.0, fence.Upper)
}

func TestRemoveOutliersQuartileExclusive(t *testing.T) {
	in := records(1000, 2000, 3000, 100000)

	got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyQuartile, Method: models.QuartileExclusive})
	assert.Len(t, got, 4, "the exclusive fence is too wide to catch a single outlier among four")
	assert.Equal(t, 0.0, fence.Lower)
	assert.Equal(t, 187500.0, fence.Upper)
}

func TestRemoveOutliersQuartileFenceHolds(t *testing.T) {
	in := records(3100, 3250, 2980, 3400, 3050, 15, 3300, 3175, 9900, 3220)

	for _, method := range []models.QuartileMethod{models.QuartileInclusive, models.QuartileExclusive} {
		got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyQuartile, Method: method})
		assert.GreaterOrEqual(t, fence.Lower, 0.0)
		for _, r := range got {
			assert.GreaterOrEqual(t, r.PricePerArea, fence.Lower)
			assert.LessOrEqual(t, r.PricePerArea, fence.Upper)
		}
		assert.NotContains(t, prices(got), 15.0, method)
		assert.NotContains(t, prices(got), 9900.0, method)
	}
}

func TestRemoveOutliersLowerFenceClampedAtZero(t *testing.T) {
	in := records(10, 20, 30, 4000, 5000)

	_, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyQuartile})
	assert.Equal(t, 0.0, fence.Lower)
}

func TestRemoveOutliersTrimFourValues(t *testing.T) {
	// n=4: floor(0.6)=0 and floor(3.4)=3, so both bounds are the extremes.
	in := records(1000, 2000, 3000, 100000)

	got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyTrim})
	assert.Equal(t, []float64{1000, 2000, 3000, 100000}, prices(got))
	assert.Equal(t, 1000.0, fence.Lower)
	assert.Equal(t, 100000.0, fence.Upper)
	assert.True(t, fence.Applied)
	assert.Empty(t, fence.Method)
}

func TestRemoveOutliersTrimCounts(t *testing.T) {
	// n=10: floor(1.5)=1 smallest and 10-floor(8.5)=2 largest positions are
	// outside, but the upper bound sorted[8] is itself kept.
	in := records(700, 100, 1000, 300, 500, 200, 900, 400, 600, 800)

	got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyTrim})
	assert.Equal(t, 200.0, fence.Lower)
	assert.Equal(t, 900.0, fence.Upper)
	assert.Equal(t, []float64{700, 300, 500, 200, 900, 400, 600, 800}, prices(got), "input order kept")
}

func TestRemoveOutliersTrimExclusionCounts(t *testing.T) {
	tests := []struct {
		n         int
		wantLower float64
		wantUpper float64
	}{
		{n: 4, wantLower: 1, wantUpper: 4},
		{n: 7, wantLower: 2, wantUpper: 6},
		{n: 10, wantLower: 2, wantUpper: 9},
		{n: 13, wantLower: 2, wantUpper: 12},
	}

	for _, tt := range tests {
		values := make([]float64, tt.n)
		for i := range values {
			values[i] = float64(tt.n - i)
		}
		got, fence := RemoveOutliers(records(values...), OutlierConfig{Policy: models.PolicyTrim})
		if fence.Lower != tt.wantLower || fence.Upper != tt.wantUpper {
			t.Errorf("n=%d: fence [%v, %v], want [%v, %v]", tt.n, fence.Lower, fence.Upper, tt.wantLower, tt.wantUpper)
		}
		if want := int(tt.wantUpper - tt.wantLower + 1); len(got) != want {
			t.Errorf("n=%d: kept %d, want %d", tt.n, len(got), want)
		}
	}
}

func TestRemoveOutliersTrimKeepsBoundaryTies(t *testing.T) {
	// n=7: bounds are sorted[1]=200 and sorted[5]=400, both tied with a neighbour.
	in := records(400, 100, 200, 900, 300, 200, 400)

	got, fence := RemoveOutliers(in, OutlierConfig{Policy: models.PolicyTrim})
	assert.Equal(t, 200.0, fence.Lower)
	assert.Equal(t, 400.0, fence.Upper)
	assert.Equal(t, []float64{400, 200, 300, 200, 400}, prices(got))
}

func TestRemoveOutliersDoesNotMutate(t *testing.T) {
	in := records(1000, 2000, 3000, 100000)
	snapshot := append([]models.ExtractedRecord(nil), in...)

	_, _ = RemoveOutliers(in, OutlierConfig{Policy: models.PolicyTrim})
	_, _ = RemoveOutliers(in, OutlierConfig{Policy: models.PolicyQuartile})
	require.Equal(t, snapshot, in)
}
