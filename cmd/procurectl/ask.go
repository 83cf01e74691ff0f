package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"procurement/internal/app"
)

var askSession string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Run one question through the assistant",
	Example: `  procurectl ask "How many orders were created in fiscal year 2013-2014?"
  procurectl ask -v "Which supplier received the most spending?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id to continue")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer application.Close()

	resp, err := application.Assistant.Ask(ctx, askSession, strings.Join(args, " "))
	if err != nil {
		return err
	}
	result := resp.Result

	fmt.Println(result.Response)
	fmt.Println()
	status := "✅"
	switch {
	case !result.Success:
		status = "❌"
	case result.Exhausted:
		status = "⚠️"
	}
	fmt.Printf("%s %d iteration(s) in %.2fs\n", status, result.Iterations, result.ExecutionTime)
	if len(result.ToolsUsed) > 0 {
		fmt.Printf("🔧 Tools: %s\n", strings.Join(result.ToolsUsed, ", "))
	}
	fmt.Printf("🔢 Tokens: %d in / %d out / %d total\n",
		result.TokenUsage.Input, result.TokenUsage.Output, result.TokenUsage.Total)
	fmt.Printf("🧵 Session: %s  Interaction: %s\n", resp.SessionID, resp.InteractionID)

	if !result.Success {
		return fmt.Errorf("run failed: %s", result.Error)
	}
	return nil
}
