package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cinedata/filmset-cli/internal/model"
	"github.com/cinedata/filmset-cli/internal/pipeline"
	"github.com/cinedata/filmset-cli/internal/resilience"
	"github.com/cinedata/filmset-cli/pkg/mediawiki"
	"github.com/cinedata/filmset-cli/pkg/wikidata"
)

var (
	runSteps     []string
	runGroup     string
	runCleanOnly bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the collection pipeline",
	Long:  "Runs the pipeline for the requested category groups. Without --steps the run resumes, reusing existing checkpoints and computing only missing steps; --steps forces the named steps to be recomputed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		steps, err := model.ParseSteps(runSteps)
		if err != nil {
			return err
		}

		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		// The single admission gate every outbound call shares: no two
		// requests closer together than the configured interval.
		limiter := rate.NewLimiter(rate.Every(cfg.Rate.MinInterval()), 1)

		retry := resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
		}

		mw := mediawiki.NewClient(
			mediawiki.WithBaseURL(cfg.MediaWiki.BaseURL),
			mediawiki.WithRESTBaseURL(cfg.MediaWiki.RESTBaseURL),
			mediawiki.WithBatchSize(cfg.MediaWiki.BatchSize),
			mediawiki.WithUserAgent(cfg.HTTP.UserAgent),
			mediawiki.WithLimiter(limiter),
			mediawiki.WithRetry(retry),
		)
		wd := wikidata.NewClient(
			wikidata.WithEndpoint(cfg.Wikidata.Endpoint),
			wikidata.WithUserAgent(cfg.HTTP.UserAgent),
			wikidata.WithLimiter(limiter),
			wikidata.WithRetry(retry),
		)

		stages := pipeline.NewStages(mw, wd,
			cfg.Wikidata.BatchSize,
			cfg.Summaries.Concurrency,
			cfg.Pipeline.FatalAfterConsecutive,
		)
		driver := pipeline.New(cfg, st, stages)

		results, err := driver.Run(ctx, pipeline.RunOpts{
			Steps:     steps,
			Group:     runGroup,
			CleanOnly: runCleanOnly,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		aborted := 0
		for _, r := range results {
			if r.Aborted() {
				aborted++
			}
			zap.L().Info("group finished",
				zap.String("group", r.Group),
				zap.Bool("aborted", r.Aborted()),
				zap.Int("failures", r.Failures()),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		if aborted > 0 {
			return eris.Errorf("%d of %d groups aborted", aborted, len(results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runSteps, "steps", nil,
		"steps to force-recompute: subcats,films,qids,metadata,summaries,csv,clean (default: resume, reusing existing checkpoints)")
	runCmd.Flags().StringVar(&runGroup, "group", "", "process only this category group")
	runCmd.Flags().BoolVar(&runCleanOnly, "clean-only", false,
		"skip fetch stages and re-clean existing output files")
	rootCmd.AddCommand(runCmd)
}
