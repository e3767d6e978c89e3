package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgarg2468/Skintel/internal/types"
)

func lowFindings() []Finding {
	return []Finding{
		{Condition: types.ConditionAcanthosisNigricans, Confidence: 12.3, RiskLevel: types.RiskLow},
		{Condition: types.ConditionXanthelasma, Confidence: 5.0, RiskLevel: types.RiskLow},
		{Condition: types.ConditionDrySkin, Confidence: 39.9, RiskLevel: types.RiskLow},
		{Condition: types.ConditionInflammatoryRash, Confidence: 8.1, RiskLevel: types.RiskLow},
		{Condition: types.ConditionSeborrheicDermatitis, Confidence: 20.0, RiskLevel: types.RiskLow},
		{Condition: types.ConditionAgeSpots, Confidence: 0, RiskLevel: types.RiskLow},
	}
}

func TestEngine_Generate_AllLow(t *testing.T) {
	bundle := NewEngine().Generate(lowFindings())

	assert.Equal(t, generalTemplate.Lifestyle[:2], bundle.Lifestyle)
	assert.Equal(t, generalTemplate.Diet[:2], bundle.Diet)
	assert.Equal(t, generalTemplate.Medical[:2], bundle.Medical)
	assert.NotNil(t, bundle.ActionItems)
	assert.Empty(t, bundle.ActionItems)
}

func TestEngine_Generate_MediumAddsConditionAdvice(t *testing.T) {
	findings := lowFindings()
	findings[2] = Finding{Condition: types.ConditionDrySkin, Confidence: 45.0, RiskLevel: types.RiskMedium}

	bundle := NewEngine().Generate(findings)
	dry := conditionTemplates[types.ConditionDrySkin]

	for _, rec := range dry.Lifestyle[:2] {
		assert.Contains(t, bundle.Lifestyle, rec)
	}
	assert.NotContains(t, bundle.Lifestyle, dry.Lifestyle[2])
	for _, rec := range dry.Diet[:3] {
		assert.Contains(t, bundle.Diet, rec)
	}
	assert.NotContains(t, bundle.Diet, dry.Diet[3])
	for _, rec := range dry.Medical {
		assert.Contains(t, bundle.Medical, rec)
	}
	assert.Len(t, bundle.Lifestyle, 4)
	assert.Len(t, bundle.Diet, 5)
	assert.Len(t, bundle.Medical, len(dry.Medical)+2)
	assert.Empty(t, bundle.ActionItems)
}

func TestEngine_Generate_ActionItems(t *testing.T) {
	tests := []struct {
		name     string
		findings []Finding
		expected []string
	}{
		{
			name: "acanthosis at high confidence",
			findings: []Finding{
				{Condition: types.ConditionAcanthosisNigricans, Confidence: 72.4, RiskLevel: types.RiskHigh},
			},
			expected: []string{
				"Schedule blood glucose testing within 2 weeks (detected 72.4% confidence insulin-related changes)",
				closingActionItems[0],
				closingActionItems[1],
			},
		},
		{
			name: "whole number confidence keeps one decimal",
			findings: []Finding{
				{Condition: types.ConditionXanthelasma, Confidence: 65, RiskLevel: types.RiskMedium},
			},
			expected: []string{
				"Request lipid panel from your physician (detected 65.0% confidence cholesterol deposits)",
				closingActionItems[0],
				closingActionItems[1],
			},
		},
		{
			name: "inflammatory rash below high tier only closes",
			findings: []Finding{
				{Condition: types.ConditionInflammatoryRash, Confidence: 65.0, RiskLevel: types.RiskMedium},
			},
			expected: closingActionItems,
		},
		{
			name: "inflammatory rash at high tier",
			findings: []Finding{
				{Condition: types.ConditionInflammatoryRash, Confidence: 80.5, RiskLevel: types.RiskHigh},
			},
			expected: []string{
				"Schedule dermatologist appointment within 1-2 weeks for 80.5% confidence inflammatory condition",
				closingActionItems[0],
				closingActionItems[1],
			},
		},
		{
			name: "age spots need seventy",
			findings: []Finding{
				{Condition: types.ConditionAgeSpots, Confidence: 69.9, RiskLevel: types.RiskMedium},
			},
			expected: closingActionItems,
		},
		{
			name: "ordered by descending confidence",
			findings: []Finding{
				{Condition: types.ConditionAcanthosisNigricans, Confidence: 61.0, RiskLevel: types.RiskMedium},
				{Condition: types.ConditionAgeSpots, Confidence: 90.0, RiskLevel: types.RiskHigh},
				{Condition: types.ConditionDrySkin, Confidence: 95.0, RiskLevel: types.RiskHigh},
			},
			expected: []string{
				"Schedule skin cancer screening with dermatologist (significant sun damage detected)",
				"Schedule blood glucose testing within 2 weeks (detected 61.0% confidence insulin-related changes)",
				closingActionItems[0],
				closingActionItems[1],
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := NewEngine().Generate(tt.findings)
			assert.Equal(t, tt.expected, bundle.ActionItems)
		})
	}
}

func TestEngine_Generate_Deduplicates(t *testing.T) {
	findings := []Finding{
		{Condition: types.ConditionAcanthosisNigricans, Confidence: 50, RiskLevel: types.RiskMedium},
		{Condition: types.ConditionXanthelasma, Confidence: 50, RiskLevel: types.RiskMedium},
		{Condition: types.ConditionDrySkin, Confidence: 50, RiskLevel: types.RiskMedium},
		{Condition: types.ConditionInflammatoryRash, Confidence: 50, RiskLevel: types.RiskMedium},
		{Condition: types.ConditionSeborrheicDermatitis, Confidence: 50, RiskLevel: types.RiskMedium},
		{Condition: types.ConditionAgeSpots, Confidence: 50, RiskLevel: types.RiskMedium},
	}

	bundle := NewEngine().Generate(findings)
	for _, list := range [][]string{bundle.Lifestyle, bundle.Diet, bundle.Medical} {
		seen := map[string]bool{}
		for _, item := range list {
			require.False(t, seen[item], "duplicate recommendation %q", item)
			seen[item] = true
		}
	}
}

func TestEngine_Generate_UnknownConditionIgnored(t *testing.T) {
	bundle := NewEngine().Generate([]Finding{
		{Condition: types.ConditionID("unknown"), Confidence: 90, RiskLevel: types.RiskHigh},
	})

	assert.Len(t, bundle.Lifestyle, 2)
	assert.Equal(t, closingActionItems, bundle.ActionItems)
}
