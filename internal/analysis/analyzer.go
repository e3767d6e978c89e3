package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kgarg2468/Skintel/internal/privacy"
	"github.com/kgarg2468/Skintel/internal/recommend"
	"github.com/kgarg2468/Skintel/internal/types"
)

// ErrAnalysisFailed wraps any failure past decoding that the pipeline could
// not recover from.
var ErrAnalysisFailed = errors.New("analysis failed")

// Extractor turns encoded image bytes into features and color statistics
type Extractor interface {
	Extract(ctx context.Context, data []byte) (types.FeatureSet, types.ColorStats, types.PreprocessingInfo, error)
}

// Analyzer orchestrates the full analysis pipeline
type Analyzer struct {
	extractor      Extractor
	scorer         *Scorer
	recommender    *recommend.Engine
	maxUploadBytes int64
	now            func() time.Time
}

// NewAnalyzer creates a new analyzer with all components. maxUploadBytes <= 0
// disables the size check.
func NewAnalyzer(extractor Extractor, scorer *Scorer, recommender *recommend.Engine, maxUploadBytes int64) *Analyzer {
	return &Analyzer{
		extractor:      extractor,
		scorer:         scorer,
		recommender:    recommender,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
	}
}

func (a *Analyzer) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

// Analyze runs extract, score and recommend over one upload. Size violations
// are rejected before the extractor sees any bytes.
func (a *Analyzer) Analyze(ctx context.Context, upload types.Upload) (report *Report, err error) {
	size := int64(len(upload.Data))
	if a.maxUploadBytes > 0 && size > a.maxUploadBytes {
		return nil, &types.SizeError{Size: size, Limit: a.maxUploadBytes}
	}

	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = fmt.Errorf("%w: %v", ErrAnalysisFailed, r)
		}
	}()

	start := a.now()
	features, colors, info, err := a.extractor.Extract(ctx, upload.Data)
	if err != nil {
		if errors.Is(err, types.ErrInputTooLarge) || errors.Is(err, types.ErrDecodeFailure) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: extract features: %v", ErrAnalysisFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := a.scorer.Score(features)
	bundle := a.recommender.Generate(results.Findings())

	return &Report{
		ID:        uuid.NewString(),
		CreatedAt: start.UTC(),
		Upload: UploadInfo{
			SizeBytes:   len(upload.Data),
			SizeMB:      types.RoundTo(float64(len(upload.Data))/(1024*1024), 2),
			Format:      upload.ContentType,
			Fingerprint: privacy.Fingerprint(upload.Data),
		},
		PreprocessingInfo: info,
		ColorStatistics:   colors.Rounded(3),
		AnalysisResults:   results,
		Recommendations:   bundle,
		Duration:          a.now().Sub(start),
	}, nil
}
