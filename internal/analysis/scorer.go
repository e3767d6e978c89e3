package analysis

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kgarg2468/Skintel/internal/types"
)

// SeedMode controls how the noise generator is seeded
type SeedMode string

const (
	// SeedModeProcess keeps one stream for the lifetime of the Scorer
	SeedModeProcess SeedMode = "process"
	// SeedModePerRequest restarts the stream on every Score call
	SeedModePerRequest SeedMode = "per_request"
)

const (
	DefaultSeed        uint64  = 42
	DefaultNoiseStdDev float64 = 0.05
)

type ScorerConfig struct {
	Seed        uint64
	Mode        SeedMode
	NoiseStdDev float64
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Seed:        DefaultSeed,
		Mode:        SeedModeProcess,
		NoiseStdDev: DefaultNoiseStdDev,
	}
}

// ParseSeedMode accepts the configuration spelling of a seed mode
func ParseSeedMode(s string) (SeedMode, error) {
	switch SeedMode(s) {
	case SeedModeProcess, "":
		return SeedModeProcess, nil
	case SeedModePerRequest:
		return SeedModePerRequest, nil
	default:
		return "", fmt.Errorf("unknown seed mode %q", s)
	}
}

// Scorer turns a FeatureSet into per-condition results. It is safe for
// concurrent use.
type Scorer struct {
	cfg    ScorerConfig
	models []ConditionModel

	mu  sync.Mutex
	rng *rand.Rand
}

func NewScorer(cfg ScorerConfig) *Scorer {
	if cfg.Mode == "" {
		cfg.Mode = SeedModeProcess
	}
	if cfg.NoiseStdDev < 0 {
		cfg.NoiseStdDev = 0
	}
	return &Scorer{
		cfg:    cfg,
		models: Conditions(),
		rng:    newNoiseSource(cfg.Seed),
	}
}

func newNoiseSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func (s *Scorer) Config() ScorerConfig {
	return s.cfg
}

// Score evaluates every condition in table order, drawing one noise sample
// per condition.
func (s *Scorer) Score(fs types.FeatureSet) Results {
	rng := s.rng
	if s.cfg.Mode == SeedModePerRequest {
		rng = newNoiseSource(s.cfg.Seed)
	} else {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	results := make(Results, 0, len(s.models))
	for _, m := range s.models {
		noise := rng.NormFloat64() * s.cfg.NoiseStdDev
		confidence := types.RoundTo(probability(fs, m, noise)*100, 1)
		results = append(results, ConditionResult{
			ID:               m.ID,
			Name:             m.Name,
			Confidence:       confidence,
			RiskLevel:        RiskLevelFor(confidence),
			Description:      m.Description,
			DetectedFeatures: fs.Subset(m.Features, 3),
		})
	}
	return results
}
