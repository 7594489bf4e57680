package aggregate

import (
	"sort"

	"github.com/R3E-Network/neofeeds/internal/config"
	"github.com/R3E-Network/neofeeds/internal/source"
)

// Combiner reduces successful observations to a single fixed-point price.
// Implementations must not mutate the input slice.
type Combiner func(observations []source.Observation) int64

// CombinerFor returns the combiner for an aggregation policy. Unknown
// values fall back to the weighted mean; config validation rejects them
// earlier.
func CombinerFor(agg config.Aggregation) Combiner {
	switch agg {
	case config.AggregationWeightedMedian:
		return WeightedMedian
	case config.AggregationTrimmedMean:
		return TrimmedMean
	default:
		return WeightedMean
	}
}

// WeightedMean computes sum(price*weight)/sum(weight), rounded half up.
func WeightedMean(observations []source.Observation) int64 {
	var sum, weights int64
	for _, obs := range observations {
		w := int64(obs.Weight)
		if w <= 0 {
			w = 1
		}
		sum += obs.Price * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return (sum + weights/2) / weights
}

// WeightedMedian expands each observation by its weight and takes the
// median of the expanded series.
func WeightedMedian(observations []source.Observation) int64 {
	var expanded []int64
	for _, obs := range observations {
		w := obs.Weight
		if w <= 0 {
			w = 1
		}
		for i := 0; i < w; i++ {
			expanded = append(expanded, obs.Price)
		}
	}
	n := len(expanded)
	if n == 0 {
		return 0
	}
	sort.Slice(expanded, func(i, j int) bool { return expanded[i] < expanded[j] })
	if n%2 == 0 {
		return (expanded[n/2-1] + expanded[n/2]) / 2
	}
	return expanded[n/2]
}

// TrimmedMean drops the single highest and lowest observation when four or
// more are present, then takes the weighted mean of the rest. Guards the
// mean against one erratic source without the latency cost of a median
// over a small set.
func TrimmedMean(observations []source.Observation) int64 {
	if len(observations) < 4 {
		return WeightedMean(observations)
	}

	sorted := make([]source.Observation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	return WeightedMean(sorted[1 : len(sorted)-1])
}
