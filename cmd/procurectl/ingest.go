package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"procurement/internal/app"
	"procurement/internal/ingest"
)

var (
	ingestCSV       string
	ingestDrop      bool
	ingestBatchSize int
	ingestStartFrom int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load purchase orders from a CSV export",
	Long: `Load a California state purchase order CSV export into MongoDB.

Currency and number columns are cleaned, MM/DD/YYYY dates are parsed and
calendar and fiscal (July to June) periods are derived from the creation date.
Indexes are created after the load.`,
	Example: `  procurectl ingest --csv data/PURCHASE_ORDER_DATA_EXTRACT_2012-2015_0.csv --drop`,
	RunE:    runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSV, "csv", "", "Path to the CSV file (required)")
	ingestCmd.Flags().BoolVar(&ingestDrop, "drop", false, "Drop the collection before loading")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", ingest.DefaultBatchSize, "Documents per insert")
	ingestCmd.Flags().IntVar(&ingestStartFrom, "start-from", 0, "Skip data rows before this row number")
	_ = ingestCmd.MarkFlagRequired("csv")
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.Connect(cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	loader := ingest.NewLoader(application.Store, logger)
	stats, err := loader.LoadFile(ctx, ingestCSV, ingest.Options{
		BatchSize: ingestBatchSize,
		Drop:      ingestDrop,
		StartFrom: ingestStartFrom,
		Progress: func(rows int) {
			logger.WithField("rows", rows).Info("Batch inserted")
		},
	})
	if err != nil {
		return err
	}

	if err := application.Mongo.Initialize(ctx, cfg.MongoCollection); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"collection": cfg.MongoCollection,
		"processed":  stats.Processed,
		"inserted":   stats.Inserted,
		"skipped":    stats.Skipped,
	}).Info("Load complete")
	return nil
}
