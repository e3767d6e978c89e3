package analysis

import (
	"math"

	"github.com/kgarg2468/Skintel/internal/types"
)

const (
	maxProbability = 0.95
	// channelMax is the top of the 8-bit intensity scale
	channelMax = 255.0
)

// aboveThreshold features only count once they pass their threshold, scaled
// over the remaining intensity range.
var aboveThreshold = map[types.FeatureKey]bool{
	types.FeatureBrightness: true,
	types.FeatureYellowness: true,
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// featureScore maps a raw feature value to [0,1] against its threshold
func featureScore(key types.FeatureKey, value, threshold float64) float64 {
	if aboveThreshold[key] {
		span := channelMax - threshold
		if span <= 0 {
			return 0
		}
		return clip((value-threshold)/span, 0, 1)
	}
	if threshold <= 0 {
		return 0
	}
	return clip(value/threshold, 0, 1)
}

// evidence is the weighted sum of normalized feature scores. Missing features
// contribute nothing.
func evidence(fs types.FeatureSet, m ConditionModel) float64 {
	sum := 0.0
	for i, key := range m.Features {
		v, ok := fs.Get(key)
		if !ok {
			continue
		}
		sum += featureScore(key, v, m.Thresholds[i]) * m.Weights[i]
	}
	return sum
}

func probability(fs types.FeatureSet, m ConditionModel, noise float64) float64 {
	p := m.BaseProbability + evidence(fs, m) + noise
	if math.IsNaN(p) {
		return 0
	}
	return clip(p, 0, maxProbability)
}

// RiskLevelFor buckets a confidence percentage
func RiskLevelFor(confidence float64) types.RiskLevel {
	switch {
	case confidence >= 70:
		return types.RiskHigh
	case confidence >= 40:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
