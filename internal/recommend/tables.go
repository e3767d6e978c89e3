package recommend

import "github.com/kgarg2468/Skintel/internal/types"

// Template is an ordered recommendation list per category. Earlier entries
// are preferred when only a prefix is taken.
type Template struct {
	Lifestyle []string
	Diet      []string
	Medical   []string
}

var conditionTemplates = map[types.ConditionID]Template{
	types.ConditionAcanthosisNigricans: {
		Lifestyle: []string{
			"Maintain regular exercise routine (30+ minutes daily) to improve insulin sensitivity",
			"Prioritize 7-9 hours of quality sleep to support metabolic health",
			"Practice stress management techniques like meditation or yoga",
			"Monitor weight and work towards healthy BMI if needed",
		},
		Diet: []string{
			"Reduce refined sugar and simple carbohydrate intake",
			"Focus on low-glycemic index foods (vegetables, whole grains, lean proteins)",
			"Increase fiber intake with fruits, vegetables, and legumes",
			"Consider intermittent fasting under medical supervision",
			"Limit processed foods and sugary beverages",
		},
		Medical: []string{
			"Schedule blood glucose and HbA1c testing",
			"Consider consultation with an endocrinologist",
			"Discuss insulin resistance screening with your physician",
			"Monitor blood pressure regularly",
		},
	},
	types.ConditionXanthelasma: {
		Lifestyle: []string{
			"Engage in regular cardiovascular exercise",
			"Quit smoking if applicable (smoking worsens lipid profiles)",
			"Maintain healthy weight through balanced diet and exercise",
			"Limit alcohol consumption",
		},
		Diet: []string{
			"Adopt a heart-healthy diet rich in omega-3 fatty acids",
			"Increase soluble fiber intake (oats, beans, apples)",
			"Choose lean proteins and limit saturated fats",
			"Include nuts, seeds, and olive oil for healthy fats",
			"Reduce trans fats and processed foods",
		},
		Medical: []string{
			"Schedule comprehensive lipid panel testing",
			"Consider cardiology consultation for cardiovascular risk assessment",
			"Discuss statin therapy if appropriate",
			"Monitor blood pressure and diabetes risk factors",
		},
	},
	types.ConditionDrySkin: {
		Lifestyle: []string{
			"Increase daily water intake (8-10 glasses per day)",
			"Use a humidifier in dry environments",
			"Take shorter, lukewarm showers to preserve skin oils",
			"Apply moisturizer immediately after bathing",
			"Protect skin from harsh weather conditions",
		},
		Diet: []string{
			"Consume foods rich in omega-3 fatty acids (fish, walnuts, flaxseed)",
			"Include antioxidant-rich fruits and vegetables",
			"Consider vitamin E and vitamin C supplementation",
			"Limit caffeine and alcohol which can contribute to dehydration",
		},
		Medical: []string{
			"Consider dermatologist consultation for persistent dryness",
			"Rule out underlying conditions like thyroid disorders",
			"Discuss prescription moisturizers or treatments if needed",
		},
	},
	types.ConditionInflammatoryRash: {
		Lifestyle: []string{
			"Identify and avoid potential allergens or irritants",
			"Use gentle, fragrance-free skincare products",
			"Wear breathable, natural fiber clothing",
			"Manage stress levels through relaxation techniques",
			"Keep affected areas clean and dry",
		},
		Diet: []string{
			"Consider an anti-inflammatory diet rich in omega-3s",
			"Identify potential food triggers (dairy, gluten, nuts)",
			"Increase intake of anti-inflammatory foods (turmeric, ginger, leafy greens)",
			"Stay well-hydrated",
		},
		Medical: []string{
			"Schedule dermatologist appointment for proper diagnosis",
			"Consider allergy testing if recurrent",
			"Discuss topical or oral anti-inflammatory treatments",
			"Rule out autoimmune conditions if widespread",
		},
	},
	types.ConditionSeborrheicDermatitis: {
		Lifestyle: []string{
			"Use gentle, anti-fungal shampoos and cleansers",
			"Manage stress levels effectively",
			"Avoid harsh skincare products with alcohol",
			"Maintain good hygiene without over-washing",
		},
		Diet: []string{
			"Limit sugar and refined carbohydrates",
			"Include probiotics and fermented foods",
			"Consider zinc and B-vitamin supplementation",
			"Reduce inflammatory foods",
		},
		Medical: []string{
			"Consult dermatologist for antifungal treatments",
			"Discuss medicated shampoos or topical treatments",
			"Rule out underlying immune system issues",
		},
	},
	types.ConditionAgeSpots: {
		Lifestyle: []string{
			"Apply broad-spectrum SPF 30+ sunscreen daily",
			"Wear protective clothing and wide-brimmed hats",
			"Seek shade during peak sun hours (10am-4pm)",
			"Use antioxidant-rich skincare products",
		},
		Diet: []string{
			"Consume antioxidant-rich foods (berries, dark leafy greens)",
			"Include vitamin C and E rich foods",
			"Consider lycopene-rich foods (tomatoes, watermelon)",
			"Stay well-hydrated for skin health",
		},
		Medical: []string{
			"Schedule regular dermatological skin checks",
			"Discuss treatment options (chemical peels, laser therapy)",
			"Monitor for changes in existing spots",
			"Consider prescription retinoids for prevention",
		},
	},
}

var generalTemplate = Template{
	Lifestyle: []string{
		"Maintain consistent sleep schedule of 7-9 hours nightly",
		"Practice regular stress management techniques",
		"Stay physically active with regular exercise",
		"Avoid smoking and limit alcohol consumption",
	},
	Diet: []string{
		"Follow a balanced, nutrient-rich diet",
		"Stay adequately hydrated throughout the day",
		"Limit processed foods and excess sugar",
		"Include variety of colorful fruits and vegetables",
	},
	Medical: []string{
		"Schedule regular check-ups with your primary care physician",
		"Keep a skin health diary to track changes",
		"Follow up on any concerning or persistent symptoms",
		"Maintain updated health records and medication lists",
	},
}

// actionRule renders at most one action item for a high-confidence finding
type actionRule struct {
	format        string
	minConfidence float64
	requireHigh   bool
}

var actionRules = map[types.ConditionID]actionRule{
	types.ConditionAcanthosisNigricans: {
		format: "Schedule blood glucose testing within 2 weeks (detected %.1f%% confidence insulin-related changes)",
	},
	types.ConditionXanthelasma: {
		format: "Request lipid panel from your physician (detected %.1f%% confidence cholesterol deposits)",
	},
	types.ConditionInflammatoryRash: {
		format:      "Schedule dermatologist appointment within 1-2 weeks for %.1f%% confidence inflammatory condition",
		requireHigh: true,
	},
	types.ConditionAgeSpots: {
		format:        "Schedule skin cancer screening with dermatologist (significant sun damage detected)",
		minConfidence: 70,
	},
}

var closingActionItems = []string{
	"Take photos to track any changes in skin appearance over time",
	"Discuss these findings with your healthcare provider at your next appointment",
}
