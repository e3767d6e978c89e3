package imaging

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kgarg2468/Skintel/internal/types"
)

const (
	cannyLow  = 50
	cannyHigh = 150
	sobelSize = 3
)

// Extractor computes the scoring features and auxiliary color statistics
// from a preprocessed image.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(p *Preprocessed) (types.FeatureSet, types.ColorStats, error) {
	var stats types.ColorStats
	if p == nil || p.Width <= 0 || p.Height <= 0 || len(p.Pixels) != p.Width*p.Height*3 {
		return types.FeatureSet{}, stats, fmt.Errorf("%w: malformed preprocessed image", types.ErrDecodeFailure)
	}

	bgrBytes := p.bytes()
	bgr, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV8UC3, bgrBytes)
	if err != nil {
		return types.FeatureSet{}, stats, fmt.Errorf("build matrix: %w", err)
	}
	defer bgr.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	labBytes := lab.ToBytes()
	grayBytes := gray.ToBytes()

	stats.RGB = channelStats(bgrBytes, [3]int{2, 1, 0})
	stats.HSV = channelStats(hsv.ToBytes(), [3]int{0, 1, 2})
	stats.Lab = channelStats(labBytes, [3]int{0, 1, 2})

	brightness, contrast := meanStd(grayBytes)
	values := map[types.FeatureKey]float64{
		types.FeatureBrightness:       brightness,
		types.FeatureContrast:         contrast,
		types.FeatureEdgeDensity:      clip(edgeDensity(gray), 0, 1),
		types.FeatureColorVariance:    pooledVariance(bgrBytes),
		types.FeatureDarkPixelRatio:   clip(darkRatio(grayBytes), 0, 1),
		types.FeatureRednessIndex:     clip(rednessIndex(bgrBytes), 0, 1),
		types.FeatureTextureRoughness: clip(roughness(gray), 0, 1),
	}
	if y, ok := yellowness(labBytes); ok {
		values[types.FeatureYellowness] = y
	}

	return types.NewFeatureSet(values), stats, nil
}

// edgeDensity is the fraction of Canny edge pixels
func edgeDensity(gray gocv.Mat) float64 {
	total := gray.Rows() * gray.Cols()
	if total == 0 {
		return 0
	}
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)
	return float64(gocv.CountNonZero(edges)) / float64(total)
}

// roughness is the mean Sobel gradient magnitude scaled by full intensity
func roughness(gray gocv.Mat) float64 {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, sobelSize, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, sobelSize, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)
	return finite(mag.Mean().Val1 / 255)
}
