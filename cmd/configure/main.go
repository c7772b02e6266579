package main

import (
	"fmt"
	"os"

	"github.com/benvon/smart-forms/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "smart-forms-configure",
		Short:         "Administration tool for Smart Forms accounts and sessions",
		Long:          "CLI tool for managing users, revoking sessions, generating signing secrets and inspecting the route table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewUsersCmd())
	rootCmd.AddCommand(commands.NewSessionsCmd())
	rootCmd.AddCommand(commands.NewSecretCmd())
	rootCmd.AddCommand(commands.NewRoutesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
