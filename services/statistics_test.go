package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dvf-analyzer/models"
)

func TestAggregateThreeValues(t *testing.T) {
	got := Aggregate([]float64{100, 200, 300})

	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 200.0, got.Mean)
	assert.Equal(t, 200.0, got.Median)
	assert.Equal(t, 100.0, got.Min)
	assert.Equal(t, 300.0, got.Max)
	require.NotNil(t, got.Stdev)
	assert.Equal(t, 100.0, *got.Stdev)
}

func TestAggregateSingleValue(t *testing.T) {
	got := Aggregate([]float64{100})

	assert.Equal(t, models.StatisticsResult{Count: 1, Mean: 100, Median: 100, Min: 100, Max: 100}, got)
	assert.Nil(t, got.Stdev)
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	assert.True(t, got.Empty())
	assert.Equal(t, models.StatisticsResult{}, got)
}

func TestAggregateEvenCount(t *testing.T) {
	got := Aggregate([]float64{4, 1, 3, 2})

	assert.Equal(t, 2.5, got.Median)
	assert.Equal(t, 2.5, got.Mean)
	require.NotNil(t, got.Stdev)
	assert.Equal(t, 1.29, *got.Stdev)
}

func TestAggregateKeepsExtremesUnrounded(t *testing.T) {
	got := Aggregate([]float64{20.333, 10.111})

	assert.Equal(t, 10.111, got.Min)
	assert.Equal(t, 20.333, got.Max)
	assert.Equal(t, 15.22, got.Mean)
	assert.Equal(t, 15.22, got.Median)
}

func TestAggregateDoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Aggregate(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestStatisticsResultJSON(t *testing.T) {
	b, err := Aggregate(nil).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = Aggregate([]float64{100}).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":1,"mean":100,"median":100,"min":100,"max":100}`, string(b))
}

func TestQuartileMethods(t *testing.T) {
	sorted := []float64{1000, 2000, 3000, 100000}

	q1, q3 := quartiles(sorted, models.QuartileInclusive)
	assert.Equal(t, 1750.0, q1)
	assert.Equal(t, 27250.0, q3)

	q1, q3 = quartiles(sorted, models.QuartileExclusive)
	assert.Equal(t, 1250.0, q1)
	assert.Equal(t, 75750.0, q3)
}

func TestExclusiveQuantileMatchesReference(t *testing.T) {
	// statistics.quantiles([1..9], n=4) == [2.5, 5.0, 7.5]
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, 2.5, exclusiveQuantile(sorted, 1))
	assert.Equal(t, 5.0, exclusiveQuantile(sorted, 2))
	assert.Equal(t, 7.5, exclusiveQuantile(sorted, 3))
}
