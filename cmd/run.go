package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/store"
)

var (
	runLimit       int
	runSample      int
	runSeed        uint64
	runConcurrency int
	runSave        bool
)

// runOutput is what the run command prints.
type runOutput struct {
	RunID      string            `json:"run_id,omitempty"`
	Properties []*model.Property `json:"properties"`
	Summary    model.RunSummary  `json:"summary"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one aggregation pass and print the scored properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		env, err := initPipeline(cfg, nil)
		if err != nil {
			return err
		}

		var st store.Store
		if runSave {
			if st, err = initStore(ctx); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		out, err := executeRun(ctx, env, st)
		if err != nil {
			return err
		}
		return writeIndented(os.Stdout, out)
	},
}

func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("limit") {
		cfg.Pipeline.Limit = runLimit
	}
	if f.Changed("sample") {
		cfg.Pipeline.SampleSize = runSample
	}
	if f.Changed("seed") {
		cfg.Pipeline.Seed = runSeed
	}
	if f.Changed("concurrency") {
		cfg.Pipeline.Concurrency = runConcurrency
	}
}

// executeRun runs the pipeline once. When st is non-nil the run and its
// properties are persisted; a failed pass is recorded as a failed run.
func executeRun(ctx context.Context, env *pipelineEnv, st store.Store) (*runOutput, error) {
	var run *model.Run
	if st != nil {
		var err error
		run, err = st.CreateRun(ctx, model.RunParams{
			Limit:      cfg.Pipeline.Limit,
			SampleSize: cfg.Pipeline.SampleSize,
			Seed:       cfg.Pipeline.Seed,
			Sources:    env.Sources.Names(),
		})
		if err != nil {
			return nil, eris.Wrap(err, "create run")
		}
	}

	res, err := env.Pipeline.Run(ctx)
	if err != nil {
		env.Metrics.RunFinished(string(model.RunStatusFailed), 0, 0)
		if run != nil {
			// The caller's context may be done; record the failure regardless.
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				zap.L().Error("record failed run", zap.String("run_id", run.ID), zap.Error(ferr))
			}
		}
		return nil, eris.Wrap(err, "pipeline run")
	}

	out := &runOutput{Properties: res.Properties, Summary: res.Summary}
	if out.Properties == nil {
		out.Properties = []*model.Property{}
	}
	if run != nil {
		out.RunID = run.ID
		if err := saveResult(ctx, st, run.ID, res); err != nil {
			return nil, err
		}
	}
	env.Metrics.RunFinished(string(model.RunStatusComplete), res.Summary.Properties, res.Summary.Recommended)

	zap.L().Info("run complete",
		zap.String("run_id", out.RunID),
		zap.Int("properties", res.Summary.Properties),
		zap.Int("recommended", res.Summary.Recommended),
	)
	return out, nil
}

func saveResult(ctx context.Context, st store.Store, runID string, res *pipeline.Result) error {
	if err := st.SaveProperties(ctx, runID, res.Properties); err != nil {
		_ = st.FailRun(ctx, runID, err.Error())
		return eris.Wrap(err, "save properties")
	}
	summary := res.Summary
	return eris.Wrap(st.CompleteRun(ctx, runID, &summary), "complete run")
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max properties to return (default from config)")
	runCmd.Flags().IntVar(&runSample, "sample", 0, "number of market units to query (default from config)")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "random seed; 0 seeds from the clock")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "units searched in parallel (default from config)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "persist the run and its properties")
	rootCmd.AddCommand(runCmd)
}
