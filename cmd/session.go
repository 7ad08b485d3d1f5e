package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pingCmd represents the ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test connection to Zymmr",
	Long:  `Log in to your Zymmr instance and check that the session works.`,
	RunE:  runPing,
}

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Long:  `Print the User document of the account the CLI logs in with.`,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(pingCmd, whoamiCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	fmt.Printf("Testing connection to Zymmr at %s...\n", client.BaseURL())

	ok, err := client.Ping(cmd.Context())
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("✗ could not log in to %s as %s", client.BaseURL(), cfg.Zymmr.Username)
	}

	fmt.Println("✓ Connection successful!")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	user, err := client.UserInfo(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get user info: %w", err)
	}

	printer, err := newPrinter([]string{"name", "full_name", "email", "user_type", "enabled", "last_login"})
	if err != nil {
		return err
	}
	return printer.PrintDocument(user)
}
