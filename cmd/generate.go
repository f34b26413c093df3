package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"risk_service/internal/core"
	"risk_service/internal/domain/model"
	"risk_service/internal/domain/repository"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		n     int
		seed  int64
		out   string
		store bool
		runID string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic incident corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" && !store {
				return fmt.Errorf("nothing to do: pass --out and/or --store")
			}
			gen, err := core.NewGenerator(opts.cfg.Generator)
			if err != nil {
				return err
			}
			records := gen.Generate(n, seed)
			if len(records) == 0 {
				return fmt.Errorf("%w: --count must be positive", model.ErrInsufficientData)
			}

			s := core.Summarize(records, opts.cfg.Generator.Hotspot)
			logrus.Infof("Generated %d records (night %.1f%%, mean score %.1f, high risk %d)",
				s.Records, s.NightShare*100, s.MeanScore, s.HighRisk)

			if out != "" {
				if err := writeCorpusFile(out, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "corpus written to %s\n", out)
			}
			if store {
				if runID == "" {
					runID = uuid.NewString()
				}
				st, err := opts.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.SaveCorpus(cmd.Context(), runID, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "corpus stored as run %s\n", runID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 10000, "number of records")
	cmd.Flags().Int64Var(&seed, "seed", 42, "master random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the corpus to this CSV file")
	cmd.Flags().BoolVar(&store, "store", false, "save the corpus to the configured store")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id for --store (default: random UUID)")
	return cmd
}

func writeCorpusFile(path string, records []model.IncidentRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus file: %w", err)
	}
	if err := repository.WriteCorpusCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readCorpusFile(path string) ([]model.IncidentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()
	return repository.ReadCorpusCSV(f)
}
