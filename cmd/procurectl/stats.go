package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"procurement/internal/app"
	"procurement/internal/services"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := services.NewStatsService(application.Store, 0).Refresh(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("📊 %s.%s\n", application.Mongo.Name(), cfg.MongoCollection)
	fmt.Println()
	fmt.Printf("   Documents:     %d\n", stats.TotalDocuments)
	if stats.OldestCreation != "" {
		fmt.Printf("   Date range:    %s to %s\n", stats.OldestCreation, stats.NewestCreation)
	}
	fmt.Printf("   Total spend:   $%.2f\n", stats.TotalSpending)
	fmt.Printf("   Suppliers:     %d\n", stats.UniqueSuppliers)
	fmt.Printf("   Departments:   %d\n", stats.Departments)
	fmt.Printf("   Items:         %d\n", stats.UniqueItems)
	return nil
}
