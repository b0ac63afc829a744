package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/metrics"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")},
		Pipeline: config.PipelineConfig{
			Limit:               10,
			SampleSize:          2,
			CandidateMultiplier: 3,
			Concurrency:         1,
			Seed:                7,
			PricePolicy:         config.PricePolicyReject,
			RepairPolicy:        config.RepairPolicyAgeTiered,
			PastAuctionPolicy:   config.PastAuctionExclude,
		},
		Market: config.MarketConfig{
			ActiveRegions: map[string][]string{"Oregon": {"*"}},
			MaxPrice:      1_000_000,
		},
		Scoring: metrics.DefaultScoringConfig(),
		Alerts:  config.AlertConfig{HotMargin: 40, ExcellentMargin: 35, GoodMargin: 30},
	}
}

func TestExecuteRun_NoSourcesSaved(t *testing.T) {
	cfg = testConfig(t)
	ctx := context.Background()

	env, err := initPipeline(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, env.Sources.Sources)

	st, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	out, err := executeRun(ctx, env, st)
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)
	assert.Empty(t, out.Properties)
	assert.NotNil(t, out.Properties)
	assert.Equal(t, pipeline.NoSourcesMessage, out.Summary.Message)

	run, err := st.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, uint64(7), run.Params.Seed)
	require.NotNil(t, run.Summary)
	assert.Equal(t, pipeline.NoSourcesMessage, run.Summary.Message)
}

func TestExecuteRun_Unsaved(t *testing.T) {
	cfg = testConfig(t)

	env, err := initPipeline(cfg, nil)
	require.NoError(t, err)

	out, err := executeRun(context.Background(), env, nil)
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
}

func TestApplyRunFlags(t *testing.T) {
	cfg = testConfig(t)
	t.Cleanup(func() {
		for _, name := range []string{"limit", "seed"} {
			runCmd.Flags().Lookup(name).Changed = false
		}
	})

	require.NoError(t, runCmd.Flags().Set("limit", "25"))
	require.NoError(t, runCmd.Flags().Set("seed", "99"))
	applyRunFlags(runCmd)

	assert.Equal(t, 25, cfg.Pipeline.Limit)
	assert.Equal(t, uint64(99), cfg.Pipeline.Seed)
	assert.Equal(t, 2, cfg.Pipeline.SampleSize, "unchanged flags keep config values")
}
