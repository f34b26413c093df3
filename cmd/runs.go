package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"risk_service/internal/domain/repository"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := repository.NewSQLTrainingRecorder(st.DB).ListTrainingRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCORPUS\tSAMPLES\tMSE\tR2\tARTIFACT\tRECORDED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.4f\t%s\t%s\n",
					r.ID, r.CorpusRunID, r.Samples, r.MSE, r.R2, r.ArtifactPath,
					r.RecordedAt.UTC().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
