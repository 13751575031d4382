package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	userName     string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account and print its API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContainer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		if c.AccountService == nil {
			return errors.New("account storage is not configured")
		}

		account, err := c.AccountService.Register(cmd.Context(), userName, userPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s, API key: %s\n", account.Username, account.APIKey)
		return nil
	},
}

var userRotateCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Issue a new API key for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContainer(true)
		if err != nil {
			return err
		}
		defer c.Close()
		if c.AccountService == nil {
			return errors.New("account storage is not configured")
		}

		key, err := c.AccountService.RotateAPIKey(cmd.Context(), userName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "New API key for %s: %s\n", userName, key)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVarP(&userName, "username", "u", "", "Account name (required)")
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Account password (required)")
	userAddCmd.MarkFlagRequired("username")
	userAddCmd.MarkFlagRequired("password")

	userRotateCmd.Flags().StringVarP(&userName, "username", "u", "", "Account name (required)")
	userRotateCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userAddCmd, userRotateCmd)
	rootCmd.AddCommand(userCmd)
}
