package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/auction-cli/internal/analyzer"
)

var (
	analyzeRunID  string
	analyzeFilter bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the properties of a stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		props, err := st.ListProperties(ctx, analyzeRunID)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		if analyzeFilter {
			props = analyzer.DefaultFilter(cfg).Apply(props)
		}

		res, err := analyzer.New(cfg.Alerts).Analyze(props, time.Now())
		if err != nil {
			return eris.Wrapf(err, "analyze run %s", analyzeRunID)
		}
		return writeIndented(os.Stdout, res)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRunID, "run", "", "run id (required)")
	analyzeCmd.Flags().BoolVar(&analyzeFilter, "filter", false, "apply the configured market filter first")
	_ = analyzeCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(analyzeCmd)
}
