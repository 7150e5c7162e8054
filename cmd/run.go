package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/internal/agent"
	"github.com/xkilldash9x/webpilot-cli/internal/browser"
	"github.com/xkilldash9x/webpilot-cli/internal/observability"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a browsing task",
		Long:  "Launches the browser and drives it with the configured vision model until the task completes or the round budget runs out.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("agent.max_rounds", cmd.Flags().Lookup("max-rounds")); err != nil {
				return err
			}
			return viper.BindPFlag("llm.model", cmd.Flags().Lookup("model"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			task, _ := cmd.Flags().GetString("task")
			startURL, _ := cmd.Flags().GetString("url")
			headful, _ := cmd.Flags().GetBool("headful")

			cfg := appConfig
			// Re-read the sections the bound flags may have overridden.
			cfg.Agent.MaxRounds = viper.GetInt("agent.max_rounds")
			cfg.LLM.Model = viper.GetString("llm.model")
			if headful {
				cfg.Browser.Headless = false
			}

			logger := observability.GetLogger()
			ctx := cmd.Context()

			controller := browser.New(cfg.Browser, logger)
			if err := controller.Start(ctx); err != nil {
				return fmt.Errorf("failed to start browser: %w", err)
			}
			defer func() {
				if err := controller.Close(context.Background()); err != nil {
					logger.Warn("Browser shutdown failed", zap.Error(err))
				}
			}()

			if startURL != "" {
				if err := controller.Goto(ctx, startURL); err != nil {
					return fmt.Errorf("failed to open start URL: %w", err)
				}
			}

			model := agent.DefaultModelCaller(cfg.LLM, logger)
			observer := agent.NewMultiObserver(agent.NewLoggingObserver(logger))
			pilot := agent.New(cfg, controller, model, observer, logger)

			result, err := pilot.Run(ctx, task)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return fmt.Errorf("run failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s after %d rounds)\n", result.Summary, result.Reason, result.Rounds)
			for _, fact := range result.Facts {
				fmt.Fprintf(cmd.OutOrStdout(), "  fact: %s\n", fact)
			}
			return nil
		},
	}

	runCmd.Flags().StringP("task", "t", "", "Task for the model to carry out (required)")
	runCmd.Flags().StringP("url", "u", "", "URL to open before the first round")
	runCmd.Flags().Bool("headful", false, "Run the browser with a visible window")
	runCmd.Flags().Int("max-rounds", 15, "Maximum number of rounds before giving up")
	runCmd.Flags().String("model", "", "Model name to request from the endpoint (overrides config)")
	_ = runCmd.MarkFlagRequired("task")

	return runCmd
}
