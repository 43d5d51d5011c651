package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huangsam/exprora/internal/datastore"
	"github.com/huangsam/exprora/internal/outwriter"
	"github.com/huangsam/exprora/schema"
	"github.com/spf13/cobra"
)

// accountFlag reads the required --account flag.
func accountFlag(cmd *cobra.Command) (int64, error) {
	id, err := cmd.Flags().GetInt64("account")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("--account is required")
	}
	return id, nil
}

// parseID parses a positive numeric identifier argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id '%s'", what, s)
	}
	return id, nil
}

// experimentCmd groups experiment management.
var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Manage experiments and their variants",
}

// experimentCreateCmd creates a draft experiment.
var experimentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft experiment",
	Long: `Create an experiment in draft status. Add variants with 'experiment variant-add'
and start it with 'experiment status <id> running'.

Examples:
  exprora experiment create --account 1 --name "Checkout button" --goal purchase`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		expType, _ := cmd.Flags().GetString("type")
		traffic, _ := cmd.Flags().GetInt("traffic")
		goal, _ := cmd.Flags().GetString("goal")

		name = strings.TrimSpace(name)
		if name == "" || len(name) > 255 {
			return errors.New("--name must be between 1 and 255 characters")
		}
		t := schema.ExperimentType(schema.NormalizeKey(expType))
		if _, ok := schema.ValidExperimentTypes[t]; !ok {
			return fmt.Errorf("invalid experiment type '%s'. must be ab_test, multivariate, split_url", expType)
		}
		if traffic < 1 || traffic > 100 {
			return fmt.Errorf("--traffic must be between 1 and 100 (received %d)", traffic)
		}

		exp, err := datastore.Manager.GetStore().CreateExperiment(rootCtx, schema.Experiment{
			AccountID:         accountID,
			Name:              name,
			Description:       description,
			Type:              t,
			TrafficAllocation: traffic,
			PrimaryGoal:       goal,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created experiment %d (%s, %s)\n", exp.ID, exp.Name, exp.Status)
		return nil
	},
}

// experimentListCmd lists an account's experiments.
var experimentListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List experiments of an account",
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		statusStr, _ := cmd.Flags().GetString("status")
		status := schema.ExperimentStatus(schema.NormalizeKey(statusStr))
		if status != "" {
			if _, ok := schema.ValidExperimentStatuses[status]; !ok {
				return fmt.Errorf("invalid status '%s'. must be draft, running, paused, completed", statusStr)
			}
		}

		experiments, err := datastore.Manager.GetStore().ListExperiments(rootCtx, accountID, status)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteExperiments(experiments, cfg)
	},
}

// experimentStatusCmd moves an experiment through its lifecycle.
var experimentStatusCmd = &cobra.Command{
	Use:   "status <experiment-id> <status>",
	Short: "Change the status of an experiment",
	Long: `Allowed transitions: draft to running, running to paused or completed,
paused to running or completed. Completed is terminal.

Examples:
  exprora experiment status 7 running --account 1`,
	Args:    cobra.ExactArgs(2),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		expID, err := parseID("experiment", args[0])
		if err != nil {
			return err
		}
		status := schema.ExperimentStatus(schema.NormalizeKey(args[1]))
		if _, ok := schema.ValidExperimentStatuses[status]; !ok {
			return fmt.Errorf("invalid status '%s'. must be draft, running, paused, completed", args[1])
		}

		exp, err := datastore.Manager.GetStore().UpdateExperimentStatus(rootCtx, accountID, expID, status)
		if err != nil {
			return err
		}
		fmt.Printf("Experiment %d is now %s\n", exp.ID, exp.Status)
		return nil
	},
}

// experimentVariantAddCmd adds a variant to an experiment.
var experimentVariantAddCmd = &cobra.Command{
	Use:   "variant-add <experiment-id>",
	Short: "Add a variant to an experiment",
	Long: `Add a weighted variant. Weights are relative and need not sum to 100.

Examples:
  exprora experiment variant-add 7 --account 1 --name control --control
  exprora experiment variant-add 7 --account 1 --name green --weight 50 --payload '{"color":"green"}'`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := accountFlag(cmd)
		if err != nil {
			return err
		}
		expID, err := parseID("experiment", args[0])
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		weight, _ := cmd.Flags().GetInt("weight")
		isControl, _ := cmd.Flags().GetBool("control")
		payload, _ := cmd.Flags().GetString("payload")

		name = strings.TrimSpace(name)
		if name == "" || len(name) > 255 {
			return errors.New("--name must be between 1 and 255 characters")
		}
		if weight < 0 || weight > 100 {
			return fmt.Errorf("--weight must be between 0 and 100 (received %d)", weight)
		}
		v := schema.Variant{ExperimentID: expID, Name: name, TrafficPercentage: weight, IsControl: isControl}
		if payload != "" {
			if !json.Valid([]byte(payload)) {
				return errors.New("--payload must be valid JSON")
			}
			v.Payload = json.RawMessage(payload)
		}

		added, err := datastore.Manager.GetStore().AddVariant(rootCtx, accountID, v)
		if err != nil {
			return err
		}
		fmt.Printf("Added variant %d (%s, weight %d) to experiment %d\n", added.ID, added.Name, added.TrafficPercentage, expID)
		return nil
	},
}
