package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor bool
	asUser  string
)

var rootCmd = &cobra.Command{
	Use:           "dishcover",
	Short:         "Personalized restaurant discovery",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&asUser, "user", "", "act as this user id (default: mcp.user_id)")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(recommendCmd, searchCmd, interactCmd, interactionsCmd)
	rootCmd.AddCommand(listsCmd, prefsCmd, summaryCmd)
	rootCmd.AddCommand(configCmd, tokenCmd)
}

func main() {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
