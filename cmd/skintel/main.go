// Command skintel analyzes skin photos from the command line using the same
// pipeline as the server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/encoding"
	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/imaging"
	"github.com/kgarg2468/Skintel/internal/monitoring"
	"github.com/kgarg2468/Skintel/internal/recommend"
	"github.com/kgarg2468/Skintel/internal/security"
	"github.com/kgarg2468/Skintel/internal/types"
)

const version = "1.0.0"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	prettyFlag := &cli.BoolFlag{Name: "pretty", Usage: "indent JSON output"}

	return &cli.App{
		Name:    "skintel",
		Usage:   "screen skin photos for common conditions",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
				return cli.Exit(fmt.Sprintf("invalid log level %q", c.String("log-level")), 2)
			}
			slog.SetDefault(monitoring.NewLoggerWithWriter(c.App.ErrWriter, level).Logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "print the JSON report for each photo",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "seed", Value: analysis.DefaultSeed, Usage: "noise seed", EnvVars: []string{"SCORER_SEED"}},
					&cli.StringFlag{Name: "seed-mode", Value: string(analysis.SeedModeProcess), Usage: "process or per_request", EnvVars: []string{"SCORER_SEED_MODE"}},
					&cli.Int64Flag{Name: "max-bytes", Value: imaging.DefaultMaxUploadBytes, Usage: "largest accepted file", EnvVars: []string{"MAX_UPLOAD_BYTES"}},
					prettyFlag,
				},
				Action: runAnalyze,
			},
			{
				Name:   "conditions",
				Usage:  "print the screened conditions and their scoring rules",
				Flags:  []cli.Flag{prettyFlag},
				Action: runConditions,
			},
		},
	}
}

func runAnalyze(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("analyze needs at least one image file", 2)
	}

	mode, err := analysis.ParseSeedMode(c.String("seed-mode"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	opts := imaging.DefaultOptions()
	opts.MaxUploadBytes = c.Int64("max-bytes")
	scorerCfg := analysis.DefaultScorerConfig()
	scorerCfg.Seed = c.Uint64("seed")
	scorerCfg.Mode = mode

	analyzer := analysis.NewAnalyzer(
		imaging.NewPipeline(opts),
		analysis.NewScorer(scorerCfg),
		recommend.NewEngine(),
		opts.MaxUploadBytes,
	)

	failed := 0
	for _, path := range c.Args().Slice() {
		report, err := analyzeFile(c, analyzer, path)
		if err != nil {
			failed++
			appErr := apperrors.ToAppError(err)
			slog.Warn("Analysis failed", "file", path, "category", appErr.Category, "error", err)
			fmt.Fprintf(c.App.ErrWriter, "%s: %s\n", path, appErr.UserMessage)
			continue
		}
		if err := encoding.Encode(c.App.Writer, report, c.Bool("pretty")); err != nil {
			return err
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, c.NArg()), 1)
	}
	return nil
}

func analyzeFile(c *cli.Context, analyzer *analysis.Analyzer, path string) (*analysis.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewValidationError("Cannot read "+path, err.Error())
	}
	if limit := analyzer.MaxUploadBytes(); info.Size() > limit {
		return nil, &types.SizeError{Size: info.Size(), Limit: limit}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError("Cannot read "+path, err.Error())
	}
	contentType, err := security.DetectImageType(data)
	if err != nil {
		return nil, err
	}

	return analyzer.Analyze(c.Context, types.Upload{
		Data:        data,
		Filename:    security.SanitizeFilename(path),
		ContentType: contentType,
	})
}

func runConditions(c *cli.Context) error {
	return encoding.Encode(c.App.Writer, analysis.Conditions(), c.Bool("pretty"))
}
