package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgarg2468/Skintel/internal/recommend"
	"github.com/kgarg2468/Skintel/internal/types"
)

type fakeExtractor struct {
	features types.FeatureSet
	info     types.PreprocessingInfo
	colors   types.ColorStats
	err      error
	panicMsg string
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (types.FeatureSet, types.ColorStats, types.PreprocessingInfo, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.features, f.colors, f.info, f.err
}

func newTestAnalyzer(ext Extractor) *Analyzer {
	return NewAnalyzer(ext, NewScorer(DefaultScorerConfig()), recommend.NewEngine(), 5*1024*1024)
}

func TestAnalyzer_Analyze(t *testing.T) {
	ext := &fakeExtractor{
		features: sampleFeatures(),
		info: types.PreprocessingInfo{
			OriginalSize:  types.Size{Width: 640, Height: 480},
			ProcessedSize: types.Size{Width: 224, Height: 224},
			SkinCoverage:  42.5,
			Normalization: "Applied [0,1] scaling",
		},
	}
	analyzer := newTestAnalyzer(ext)

	report, err := analyzer.Analyze(context.Background(), types.Upload{Data: []byte("image-bytes"), ContentType: "image/png"})

	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, ext.info, report.PreprocessingInfo)
	assert.Len(t, report.AnalysisResults, 6)
	assert.Equal(t, "image/png", report.Upload.Format)
	assert.Len(t, report.Upload.Fingerprint, 12)
	assert.NotNil(t, report.Recommendations.ActionItems)
}

func TestAnalyzer_RejectsOversizeBeforeExtraction(t *testing.T) {
	ext := &fakeExtractor{features: sampleFeatures()}
	analyzer := NewAnalyzer(ext, NewScorer(DefaultScorerConfig()), recommend.NewEngine(), 16)

	_, err := analyzer.Analyze(context.Background(), types.Upload{Data: make([]byte, 17)})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInputTooLarge)
	var sizeErr *types.SizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(17), sizeErr.Size)
	assert.Equal(t, 0, ext.calls)
}

func TestAnalyzer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		ext    *fakeExtractor
		target error
	}{
		{
			name:   "decode failures pass through",
			ext:    &fakeExtractor{err: fmt.Errorf("%w: corrupt header", types.ErrDecodeFailure)},
			target: types.ErrDecodeFailure,
		},
		{
			name:   "other extractor errors become analysis failures",
			ext:    &fakeExtractor{err: errors.New("opencv exploded")},
			target: ErrAnalysisFailed,
		},
		{
			name:   "panics become analysis failures",
			ext:    &fakeExtractor{panicMsg: "index out of range"},
			target: ErrAnalysisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestAnalyzer(tt.ext).Analyze(context.Background(), types.Upload{Data: []byte("x")})
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestAnalyzer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer(&fakeExtractor{features: sampleFeatures()}).Analyze(ctx, types.Upload{Data: []byte("x")})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestReport_JSONShape(t *testing.T) {
	colors := types.ColorStats{RGB: types.ChannelStats{Mean: [3]float64{120.12345, 98, 87}}}
	analyzer := newTestAnalyzer(&fakeExtractor{features: sampleFeatures(), colors: colors})
	report, err := analyzer.Analyze(context.Background(), types.Upload{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, 120.123, report.ColorStatistics.RGB.Mean[0])

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"report_id", "preprocessing_info", "color_statistics", "analysis_results", "recommendations", "upload"} {
		assert.Contains(t, decoded, key)
	}

	var results map[string]ConditionResult
	require.NoError(t, json.Unmarshal(decoded["analysis_results"], &results))
	assert.Len(t, results, 6)
	assert.Contains(t, results, "Dry/Dehydrated Skin")
}

func TestResults_MarshalJSONKeepsTableOrder(t *testing.T) {
	results := NewScorer(DefaultScorerConfig()).Score(sampleFeatures())

	data, err := json.Marshal(results)
	require.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}

	want := make([]string, 0, len(results))
	for _, m := range Conditions() {
		want = append(want, m.Name)
	}
	assert.Equal(t, want, keys)
	assert.Equal(t, "{}", mustMarshal(t, Results{}))
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestResults_ByConfidence(t *testing.T) {
	results := Results{
		{Name: "a", Confidence: 10},
		{Name: "b", Confidence: 50},
		{Name: "c", Confidence: 50},
		{Name: "d", Confidence: 30},
	}

	sorted := results.ByConfidence()

	assert.Equal(t, []string{"b", "c", "d", "a"}, []string{sorted[0].Name, sorted[1].Name, sorted[2].Name, sorted[3].Name})
	assert.Equal(t, "a", results[0].Name)

	top, ok := results.Top()
	require.True(t, ok)
	assert.Equal(t, "b", top.Name)
}
