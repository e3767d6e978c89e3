package analysis

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/kgarg2468/Skintel/internal/recommend"
	"github.com/kgarg2468/Skintel/internal/types"
)

// ConditionResult is the scored outcome for one condition
type ConditionResult struct {
	ID               types.ConditionID  `json:"id"`
	Name             string             `json:"name"`
	Confidence       float64            `json:"confidence"`
	RiskLevel        types.RiskLevel    `json:"risk_level"`
	Description      string             `json:"description"`
	DetectedFeatures map[string]float64 `json:"detected_features"`
}

// Results keeps the fixed condition order. It serializes as an object keyed
// by display name, with members in that same order.
type Results []ConditionResult

func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ByConfidence returns a copy sorted by confidence, highest first. Ties keep
// table order.
func (r Results) ByConfidence() Results {
	sorted := make(Results, len(r))
	copy(sorted, r)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// Top returns the highest-confidence result
func (r Results) Top() (ConditionResult, bool) {
	if len(r) == 0 {
		return ConditionResult{}, false
	}
	return r.ByConfidence()[0], true
}

// Findings converts results into recommendation engine input
func (r Results) Findings() []recommend.Finding {
	findings := make([]recommend.Finding, 0, len(r))
	for _, c := range r {
		findings = append(findings, recommend.Finding{
			Condition:  c.ID,
			Confidence: c.Confidence,
			RiskLevel:  c.RiskLevel,
		})
	}
	return findings
}

// UploadInfo describes the analyzed upload without carrying its content
type UploadInfo struct {
	SizeBytes   int     `json:"size_bytes"`
	SizeMB      float64 `json:"size_mb"`
	Format      string  `json:"format,omitempty"`
	Fingerprint string  `json:"fingerprint"`
}

type Report struct {
	ID                string                  `json:"report_id"`
	CreatedAt         time.Time               `json:"created_at"`
	Upload            UploadInfo              `json:"upload"`
	PreprocessingInfo types.PreprocessingInfo `json:"preprocessing_info"`
	ColorStatistics   types.ColorStats        `json:"color_statistics"`
	AnalysisResults   Results                 `json:"analysis_results"`
	Recommendations   recommend.Bundle        `json:"recommendations"`
	Duration          time.Duration           `json:"-"`
}
