package imaging

import (
	"math"

	"github.com/kgarg2468/Skintel/internal/types"
)

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// finite replaces NaN and infinities with zero
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func toByte(v float64) byte {
	return byte(clip(math.Round(v), 0, 255))
}

// channelStats computes per-channel mean and population standard deviation
// over an interleaved 3-channel buffer. order maps output slots to source
// channels, so {2,1,0} turns BGR into RGB.
func channelStats(buf []byte, order [3]int) types.ChannelStats {
	var stats types.ChannelStats
	n := len(buf) / 3
	if n == 0 {
		return stats
	}

	var sum, sumSq [3]float64
	for i := 0; i < n*3; i += 3 {
		for c := 0; c < 3; c++ {
			v := float64(buf[i+c])
			sum[c] += v
			sumSq[c] += v * v
		}
	}
	for slot, c := range order {
		mean := sum[c] / float64(n)
		variance := sumSq[c]/float64(n) - mean*mean
		stats.Mean[slot] = finite(mean)
		stats.Std[slot] = finite(math.Sqrt(math.Max(variance, 0)))
	}
	return stats
}

// meanStd over a single-channel buffer
func meanStd(buf []byte) (float64, float64) {
	if len(buf) == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, b := range buf {
		v := float64(b)
		sum += v
		sumSq += v * v
	}
	n := float64(len(buf))
	mean := sum / n
	variance := math.Max(sumSq/n-mean*mean, 0)
	return finite(mean), finite(math.Sqrt(variance))
}

// pooledVariance treats every sample of every channel as one population
func pooledVariance(buf []byte) float64 {
	_, std := meanStd(buf)
	return std * std
}

// rednessIndex is the mean of (R-G)/(R+G+eps) over all pixels of a BGR buffer
func rednessIndex(bgr []byte) float64 {
	n := len(bgr) / 3
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n*3; i += 3 {
		g := float64(bgr[i+1])
		r := float64(bgr[i+2])
		sum += (r - g) / (r + g + 1e-6)
	}
	return finite(sum / float64(n))
}

// yellowness is the mean Lab b* over pixels leaning yellow. ok is false when
// no pixel qualifies.
func yellowness(lab []byte) (float64, bool) {
	var sum float64
	var count int
	for i := 2; i < len(lab); i += 3 {
		if b := lab[i]; b > 128 {
			sum += float64(b)
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// darkRatio is the fraction of gray samples below 30% of full scale
func darkRatio(gray []byte) float64 {
	if len(gray) == 0 {
		return 0
	}
	limit := 0.3 * 255
	dark := 0
	for _, v := range gray {
		if float64(v) < limit {
			dark++
		}
	}
	return float64(dark) / float64(len(gray))
}
