package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/datastore"
	"github.com/spf13/cobra"
)

// accountCmd groups tenant management.
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts (tenants)",
}

// accountCreateCmd creates an account and prints its API key.
var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account and print its API key",
	Long: `Create a tenant. The generated key authenticates SDK and admin requests
through the X-API-Key header. It is printed once.

Examples:
  exprora account create --name acme`,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("--name is required")
		}

		acct, err := datastore.Manager.GetStore().CreateAccount(rootCtx, name, contract.NewAPIKey())
		if err != nil {
			return err
		}
		fmt.Printf("Account: %d (%s)\n", acct.ID, acct.Name)
		fmt.Printf("API key: %s\n", acct.APIKey)
		return nil
	},
}
