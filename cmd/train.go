package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"risk_service/internal/config"
	"risk_service/internal/core"
	"risk_service/internal/domain/model"
	"risk_service/internal/domain/repository"
)

type trainOptions struct {
	corpusFile string
	corpusRun  string
	n          int
	seed       int64
	record     bool
}

func newTrainCmd(opts *rootOptions) *cobra.Command {
	to := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the risk model and write the artifact",
		Long: "Trains on a CSV corpus (--corpus), a stored corpus run (--corpus-run), " +
			"or a freshly generated corpus when neither is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), opts, to, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&to.corpusFile, "corpus", "", "train on this CSV corpus")
	cmd.Flags().StringVar(&to.corpusRun, "corpus-run", "", "train on a corpus stored under this run id")
	cmd.Flags().IntVarP(&to.n, "count", "n", 10000, "records to generate when no corpus is given")
	cmd.Flags().Int64Var(&to.seed, "seed", 42, "generator seed when no corpus is given")
	cmd.Flags().BoolVar(&to.record, "record", true, "record the run in the configured store")
	cmd.MarkFlagsMutuallyExclusive("corpus", "corpus-run")
	return cmd
}

func runTrain(ctx context.Context, opts *rootOptions, to *trainOptions, out io.Writer) error {
	cfg := opts.cfg

	var st *repository.IncidentStore
	if cfg.Store.Enabled() && (to.corpusRun != "" || to.record) {
		var err error
		if st, err = opts.openStore(ctx); err != nil {
			return err
		}
		defer st.Close()
	}

	corpus, corpusID, err := loadTrainingCorpus(ctx, cfg, st, to)
	if err != nil {
		return err
	}

	trainer, err := core.NewTrainer(cfg.Trainer)
	if err != nil {
		return err
	}
	metrics, info, err := trainer.Run(ctx, corpus)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "MSE: %.2f\nR2: %.4f\ntrain/test: %d/%d\nartifact: %s (%d bytes)\n",
		metrics.MSE, metrics.R2, metrics.TrainSize, metrics.TestSize, info.Path, info.Bytes)

	if st != nil && to.record {
		run := repository.TrainingRun{
			ID:            uuid.NewString(),
			CorpusRunID:   corpusID,
			ForestSeed:    cfg.Trainer.Forest.Seed,
			Samples:       len(corpus),
			TrainSize:     metrics.TrainSize,
			TestSize:      metrics.TestSize,
			MSE:           metrics.MSE,
			R2:            metrics.R2,
			ArtifactPath:  info.Path,
			ArtifactBytes: info.Bytes,
		}
		if err := repository.NewSQLTrainingRecorder(st.DB).SaveTrainingRun(ctx, run); err != nil {
			// The artifact is already written; a ledger failure is not fatal.
			logrus.Warnf("Warning: %v", err)
		} else {
			fmt.Fprintf(out, "training run: %s\n", run.ID)
		}
	}
	return nil
}

// loadTrainingCorpus returns the corpus and a label identifying where it
// came from.
func loadTrainingCorpus(ctx context.Context, cfg *config.Config, st *repository.IncidentStore, to *trainOptions) ([]model.IncidentRecord, string, error) {
	switch {
	case to.corpusFile != "":
		records, err := readCorpusFile(to.corpusFile)
		return records, "file:" + to.corpusFile, err
	case to.corpusRun != "":
		if st == nil {
			return nil, "", fmt.Errorf("--corpus-run needs a configured store")
		}
		records, err := st.LoadCorpus(ctx, to.corpusRun)
		return records, to.corpusRun, err
	default:
		gen, err := core.NewGenerator(cfg.Generator)
		if err != nil {
			return nil, "", err
		}
		logrus.Infof("Generating %d training records (seed %d)", to.n, to.seed)
		return gen.Generate(to.n, to.seed), fmt.Sprintf("generated:%d", to.seed), nil
	}
}
