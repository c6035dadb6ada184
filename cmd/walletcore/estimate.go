package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethaccount/walletcore/src/app"
	"github.com/ethaccount/walletcore/src/service"
	"github.com/spf13/cobra"
)

var (
	estimateInput string
	planOption    int
	planSponsored bool
)

// estimateCmd runs one estimation against the configured networks and
// prints the result, which is handy when debugging a failing account op.
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate an account op read from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, err := readEstimateInput()
		if err != nil {
			return err
		}
		return withApplication(func(ctx context.Context, application *app.Application) error {
			out, err := application.AccountOps.Estimate(ctx, *in)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		})
	},
}

// planCmd estimates the op and then plans the broadcast for one of the
// resulting fee options.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Estimate an account op and plan its broadcast for a fee option",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, err := readEstimateInput()
		if err != nil {
			return err
		}
		return withApplication(func(ctx context.Context, application *app.Application) error {
			out, err := application.AccountOps.Estimate(ctx, *in)
			if err != nil {
				return err
			}
			options := out.Summary.FeePaymentOptions
			if planOption < 0 || planOption >= len(options) {
				return fmt.Errorf("fee option %d out of range, estimation returned %d", planOption, len(options))
			}

			planIn := service.PlanInput{
				AccountOpInput: in.AccountOpInput,
				FeeOption:      options[planOption],
				IsSponsored:    planSponsored,
			}
			planIn.SessionID = out.SessionID
			plan, err := application.AccountOps.Plan(ctx, planIn)
			if err != nil {
				return err
			}
			return printJSON(cmd, plan)
		})
	},
}

func readEstimateInput() (*service.EstimateInput, error) {
	if estimateInput == "" {
		return nil, fmt.Errorf("--input must be provided")
	}
	raw, err := os.ReadFile(estimateInput)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	var in service.EstimateInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return &in, nil
}

func withApplication(fn func(ctx context.Context, application *app.Application) error) error {
	config := app.NewAppConfig()
	logger := app.InitLogger(*config)
	ctx := logger.WithContext(context.Background())

	application, err := app.NewApplication(ctx, *config)
	if err != nil {
		return err
	}
	defer application.Shutdown(ctx)
	return fn(ctx, application)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{estimateCmd, planCmd} {
		c.Flags().StringVar(&estimateInput, "input", "", "Path of a JSON encoded estimate request")
	}
	planCmd.Flags().IntVar(&planOption, "option", 0, "Index of the fee option to plan for")
	planCmd.Flags().BoolVar(&planSponsored, "sponsored", false, "Plan as a sponsored operation")
}
