package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"gocv.io/x/gocv"

	"github.com/kgarg2468/Skintel/internal/types"
)

const (
	DefaultMaxUploadBytes int64 = 5 * 1024 * 1024
	DefaultAnalysisSize         = 224
	// DefaultMaxPixels matches the decompression-bomb threshold of common
	// imaging libraries
	DefaultMaxPixels int64 = 89_478_485
	defaultBlurKernel           = 3

	normalizationDescription = "Applied [0,1] scaling"
)

// Options configures preprocessing. Skin bounds are OpenCV 8-bit HSV, where
// hue runs 0..180.
type Options struct {
	MaxUploadBytes int64
	AnalysisSize   int
	MaxPixels      int64 // largest width*height accepted for decoding
	BlurKernel     int
	SkinLower      [3]float64
	SkinUpper      [3]float64
}

func DefaultOptions() Options {
	return Options{
		MaxUploadBytes: DefaultMaxUploadBytes,
		AnalysisSize:   DefaultAnalysisSize,
		MaxPixels:      DefaultMaxPixels,
		BlurKernel:     defaultBlurKernel,
		SkinLower:      [3]float64{0, 20, 70},
		SkinUpper:      [3]float64{20, 255, 255},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = d.MaxUploadBytes
	}
	if o.AnalysisSize <= 0 {
		o.AnalysisSize = d.AnalysisSize
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = d.MaxPixels
	}
	if o.BlurKernel <= 0 || o.BlurKernel%2 == 0 {
		o.BlurKernel = d.BlurKernel
	}
	if o.SkinLower == ([3]float64{}) && o.SkinUpper == ([3]float64{}) {
		o.SkinLower, o.SkinUpper = d.SkinLower, d.SkinUpper
	}
	return o
}

// Preprocessed is a square, blurred image in BGR order with every sample
// scaled to [0,1].
type Preprocessed struct {
	Width  int
	Height int
	Pixels []float32
}

// bytes converts the normalized samples back to 8-bit BGR
func (p *Preprocessed) bytes() []byte {
	out := make([]byte, len(p.Pixels))
	for i, v := range p.Pixels {
		out[i] = toByte(float64(v) * 255)
	}
	return out
}

type Preprocessor struct {
	opts Options
}

func NewPreprocessor(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts.withDefaults()}
}

// CheckSize rejects payloads over the upload cap
func (p *Preprocessor) CheckSize(n int64) error {
	if n > p.opts.MaxUploadBytes {
		return &types.SizeError{Size: n, Limit: p.opts.MaxUploadBytes}
	}
	return nil
}

// Preprocess decodes, resizes, measures skin coverage, blurs and normalizes
// an encoded JPEG or PNG. Alpha is dropped and grayscale is promoted to three
// channels by the decoder.
func (p *Preprocessor) Preprocess(data []byte) (*Preprocessed, types.PreprocessingInfo, error) {
	var info types.PreprocessingInfo
	if err := p.CheckSize(int64(len(data))); err != nil {
		return nil, info, err
	}
	if len(data) == 0 {
		return nil, info, fmt.Errorf("%w: empty upload", types.ErrDecodeFailure)
	}

	if err := p.checkDimensions(data); err != nil {
		return nil, info, err
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, info, fmt.Errorf("%w: %v", types.ErrDecodeFailure, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, info, fmt.Errorf("%w: unrecognized image data", types.ErrDecodeFailure)
	}
	info.OriginalSize = types.Size{Width: img.Cols(), Height: img.Rows()}

	size := p.opts.AnalysisSize
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	info.ProcessedSize = types.Size{Width: resized.Cols(), Height: resized.Rows()}

	info.SkinCoverage = p.skinCoverage(resized)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := p.opts.BlurKernel
	gocv.GaussianBlur(resized, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	raw := blurred.ToBytes()
	pixels := make([]float32, len(raw))
	for i, b := range raw {
		pixels[i] = float32(b) / 255
	}
	info.Normalization = normalizationDescription

	return &Preprocessed{Width: blurred.Cols(), Height: blurred.Rows(), Pixels: pixels}, info, nil
}

// checkDimensions reads only the image header so that a small file declaring
// huge dimensions is refused before OpenCV allocates the full bitmap
func (p *Preprocessor) checkDimensions(data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: read image header: %v", types.ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s has no pixels", types.ErrDecodeFailure, format)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.opts.MaxPixels {
		return fmt.Errorf("%w: %dx%d %s exceeds %d pixels", types.ErrDecodeFailure,
			cfg.Width, cfg.Height, format, p.opts.MaxPixels)
	}
	return nil
}

// skinCoverage is the percentage of pixels inside the HSV skin range
func (p *Preprocessor) skinCoverage(bgr gocv.Mat) float64 {
	total := bgr.Rows() * bgr.Cols()
	if total == 0 {
		return 0
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lo, hi := p.opts.SkinLower, p.opts.SkinUpper
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(lo[0], lo[1], lo[2], 0),
		gocv.NewScalar(hi[0], hi[1], hi[2], 0),
		&mask)

	return clip(float64(gocv.CountNonZero(mask))/float64(total)*100, 0, 100)
}
