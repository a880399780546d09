package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/forecast"
)

var (
	retrainRegion string
	retrainCrop   string
)

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Re-fit the model for one region and crop synchronously",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		artifacts, err := openArtifacts()
		if err != nil {
			return err
		}

		trainer := forecast.NewTrainer(st, artifacts, catalog, cfg.Retrain.MinTrainSamples)
		if err := trainer.Retrain(ctx, retrainRegion, retrainCrop); err != nil {
			return eris.Wrap(err, "retrain")
		}

		zap.L().Info("retrain complete",
			zap.String("region", retrainRegion),
			zap.String("crop", retrainCrop),
		)
		return nil
	},
}

func init() {
	retrainCmd.Flags().StringVar(&retrainRegion, "region", "", "region to retrain (required)")
	retrainCmd.Flags().StringVar(&retrainCrop, "crop", "", "crop to retrain (required)")
	_ = retrainCmd.MarkFlagRequired("region")
	_ = retrainCmd.MarkFlagRequired("crop")
	rootCmd.AddCommand(retrainCmd)
}
