package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// FeatureKey names a scalar image statistic
type FeatureKey string

const (
	FeatureDarkPixelRatio   FeatureKey = "dark_pixel_ratio"
	FeatureContrast         FeatureKey = "contrast"
	FeatureTextureRoughness FeatureKey = "texture_roughness"
	FeatureYellowness       FeatureKey = "yellowness"
	FeatureBrightness       FeatureKey = "brightness"
	FeatureColorVariance    FeatureKey = "color_variance"
	FeatureRednessIndex     FeatureKey = "redness_index"
	FeatureEdgeDensity      FeatureKey = "edge_density"
)

// ConditionID identifies one of the fixed skin conditions
type ConditionID string

const (
	ConditionAcanthosisNigricans  ConditionID = "acanthosis_nigricans"
	ConditionXanthelasma          ConditionID = "xanthelasma"
	ConditionDrySkin              ConditionID = "dry_skin"
	ConditionInflammatoryRash     ConditionID = "inflammatory_rash"
	ConditionSeborrheicDermatitis ConditionID = "seborrheic_dermatitis"
	ConditionAgeSpots             ConditionID = "age_spots"
)

// RiskLevel is the coarse bucket derived from a confidence score
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

var (
	// ErrInputTooLarge is matched by SizeError.
	ErrInputTooLarge    = errors.New("image exceeds upload size limit")
	ErrDecodeFailure    = errors.New("image could not be decoded")
	ErrUnsupportedMedia = errors.New("unsupported image type")
)

// SizeError reports an upload rejected by the size cap. Size is -1 when the
// body was cut off before its full length was known.
type SizeError struct {
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("%v: limit %d bytes", ErrInputTooLarge, e.Limit)
	}
	return fmt.Sprintf("%v: %d bytes (limit %d)", ErrInputTooLarge, e.Size, e.Limit)
}

func (e *SizeError) Is(target error) bool {
	return target == ErrInputTooLarge
}

// FeatureSet is an immutable mapping of feature keys to finite values.
// A key that is absent means the statistic could not be computed.
type FeatureSet struct {
	values map[FeatureKey]float64
}

// NewFeatureSet copies values, dropping anything NaN or infinite
func NewFeatureSet(values map[FeatureKey]float64) FeatureSet {
	fs := FeatureSet{values: make(map[FeatureKey]float64, len(values))}
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		fs.values[k] = v
	}
	return fs
}

// Get returns the value for key and whether it is present
func (f FeatureSet) Get(key FeatureKey) (float64, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f FeatureSet) Has(key FeatureKey) bool {
	_, ok := f.values[key]
	return ok
}

func (f FeatureSet) Len() int {
	return len(f.values)
}

// Values returns a copy of the underlying map
func (f FeatureSet) Values() map[FeatureKey]float64 {
	out := make(map[FeatureKey]float64, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Subset returns the present keys among keys, rounded to decimals places.
func (f FeatureSet) Subset(keys []FeatureKey, decimals int) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[string(k)] = RoundTo(v, decimals)
		}
	}
	return out
}

func (f FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.values)
}

// RoundTo rounds x to the given number of decimal places, half away from zero.
func RoundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// ChannelStats holds per-channel mean and population standard deviation,
// in the channel order of the named color space.
type ChannelStats struct {
	Mean [3]float64 `json:"mean"`
	Std  [3]float64 `json:"std"`
}

// ColorStats are auxiliary statistics reported alongside the feature set.
// They are not used for scoring.
type ColorStats struct {
	RGB ChannelStats `json:"rgb"`
	HSV ChannelStats `json:"hsv"`
	Lab ChannelStats `json:"lab"`
}

// Rounded returns a copy with every mean and std rounded to decimals
func (c ColorStats) Rounded(decimals int) ColorStats {
	round := func(s ChannelStats) ChannelStats {
		for i := range s.Mean {
			s.Mean[i] = RoundTo(s.Mean[i], decimals)
			s.Std[i] = RoundTo(s.Std[i], decimals)
		}
		return s
	}
	return ColorStats{RGB: round(c.RGB), HSV: round(c.HSV), Lab: round(c.Lab)}
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// PreprocessingInfo describes what was done to an image before extraction
type PreprocessingInfo struct {
	OriginalSize  Size    `json:"original_size"`
	ProcessedSize Size    `json:"processed_size"`
	SkinCoverage  float64 `json:"skin_coverage"`
	Normalization string  `json:"normalization"`
}

// Upload is one encoded image received from a client
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}
