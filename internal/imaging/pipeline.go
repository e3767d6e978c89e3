package imaging

import (
	"context"

	"github.com/kgarg2468/Skintel/internal/types"
)

// Pipeline chains preprocessing and extraction for encoded uploads
type Pipeline struct {
	pre *Preprocessor
	ext *Extractor
}

func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		pre: NewPreprocessor(opts),
		ext: NewExtractor(),
	}
}

func (p *Pipeline) MaxUploadBytes() int64 {
	return p.pre.opts.MaxUploadBytes
}

// Extract decodes data and returns its features together with the
// auxiliary color statistics.
func (p *Pipeline) Extract(ctx context.Context, data []byte) (types.FeatureSet, types.ColorStats, types.PreprocessingInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.FeatureSet{}, types.ColorStats{}, types.PreprocessingInfo{}, err
	}
	pre, info, err := p.pre.Preprocess(data)
	if err != nil {
		return types.FeatureSet{}, types.ColorStats{}, info, err
	}
	if err := ctx.Err(); err != nil {
		return types.FeatureSet{}, types.ColorStats{}, info, err
	}
	fs, stats, err := p.ext.Extract(pre)
	if err != nil {
		return types.FeatureSet{}, types.ColorStats{}, info, err
	}
	return fs, stats, info, nil
}
