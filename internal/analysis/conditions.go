package analysis

import "github.com/kgarg2468/Skintel/internal/types"

// ConditionModel is the static scoring rule for one condition. Features,
// Weights and Thresholds are parallel slices.
type ConditionModel struct {
	ID              types.ConditionID  `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Features        []types.FeatureKey `json:"features"`
	Weights         []float64          `json:"weights"`
	Thresholds      []float64          `json:"thresholds"`
	BaseProbability float64            `json:"base_probability"`
}

const fallbackDescription = "Skin condition requiring further evaluation"

// conditionModels is evaluated in order; the noise stream depends on it.
var conditionModels = []ConditionModel{
	{
		ID:              types.ConditionAcanthosisNigricans,
		Name:            "Acanthosis Nigricans (Insulin-related Hyperpigmentation)",
		Description:     "Dark, velvety patches often associated with insulin resistance and diabetes risk",
		Features:        []types.FeatureKey{types.FeatureDarkPixelRatio, types.FeatureContrast, types.FeatureTextureRoughness},
		Weights:         []float64{0.6, 0.2, 0.2},
		Thresholds:      []float64{0.15, 20, 0.3},
		BaseProbability: 0.10,
	},
	{
		ID:              types.ConditionXanthelasma,
		Name:            "Xanthelasma (Cholesterol Deposits)",
		Description:     "Yellowish cholesterol deposits, typically around the eyes, linked to lipid disorders",
		Features:        []types.FeatureKey{types.FeatureYellowness, types.FeatureBrightness, types.FeatureColorVariance},
		Weights:         []float64{0.7, 0.2, 0.1},
		Thresholds:      []float64{140, 180, 500},
		BaseProbability: 0.05,
	},
	{
		ID:              types.ConditionDrySkin,
		Name:            "Dry/Dehydrated Skin",
		Description:     "Rough, flaky, or tight skin texture indicating potential dehydration or barrier dysfunction",
		Features:        []types.FeatureKey{types.FeatureTextureRoughness, types.FeatureContrast, types.FeatureEdgeDensity},
		Weights:         []float64{0.5, 0.3, 0.2},
		Thresholds:      []float64{0.4, 25, 0.1},
		BaseProbability: 0.20,
	},
	{
		ID:              types.ConditionInflammatoryRash,
		Name:            "Inflammatory Rash",
		Description:     "Red, irritated skin areas that may indicate allergic reactions or inflammatory conditions",
		Features:        []types.FeatureKey{types.FeatureRednessIndex, types.FeatureColorVariance, types.FeatureEdgeDensity},
		Weights:         []float64{0.6, 0.25, 0.15},
		Thresholds:      []float64{0.1, 800, 0.08},
		BaseProbability: 0.08,
	},
	{
		ID:              types.ConditionSeborrheicDermatitis,
		Name:            "Seborrheic Dermatitis",
		Description:     "Scaly, itchy rash commonly affecting oily areas, often linked to stress or yeast overgrowth",
		Features:        []types.FeatureKey{types.FeatureRednessIndex, types.FeatureTextureRoughness, types.FeatureYellowness},
		Weights:         []float64{0.4, 0.4, 0.2},
		Thresholds:      []float64{0.08, 0.35, 135},
		BaseProbability: 0.12,
	},
	{
		ID:              types.ConditionAgeSpots,
		Name:            "Age Spots/Sun Damage",
		Description:     "Dark spots or patches resulting from UV exposure and natural aging processes",
		Features:        []types.FeatureKey{types.FeatureDarkPixelRatio, types.FeatureColorVariance, types.FeatureBrightness},
		Weights:         []float64{0.5, 0.3, 0.2},
		Thresholds:      []float64{0.1, 600, 120},
		BaseProbability: 0.15,
	},
}

// Conditions returns a copy of the condition table in evaluation order
func Conditions() []ConditionModel {
	out := make([]ConditionModel, len(conditionModels))
	for i, m := range conditionModels {
		out[i] = m.clone()
	}
	return out
}

// ConditionByID looks up a model by its identifier
func ConditionByID(id types.ConditionID) (ConditionModel, bool) {
	for _, m := range conditionModels {
		if m.ID == id {
			return m.clone(), true
		}
	}
	return ConditionModel{}, false
}

func (m ConditionModel) clone() ConditionModel {
	m.Features = append([]types.FeatureKey(nil), m.Features...)
	m.Weights = append([]float64(nil), m.Weights...)
	m.Thresholds = append([]float64(nil), m.Thresholds...)
	if m.Description == "" {
		m.Description = fallbackDescription
	}
	return m
}
