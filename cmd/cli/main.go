package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authToken string
	apiURL    string = "http://localhost:8787"
	output    string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "arbctl",
	Short: "ARB CLI - inspect museum progress and manage the AR backend",
	Long: `arbctl talks to the ARB backend API.
Look up visit progress, promo codes and stats, redeem codes at the desk,
and manage AR accounts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if authToken == "" {
			authToken = os.Getenv("ARB_TOKEN")
		}
		if v := os.Getenv("ARB_API_URL"); v != "" && !cmd.Flags().Changed("api") {
			apiURL = v
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to ARB_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL (defaults to ARB_API_URL env var)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	// Add command groups
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(promoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(promoteAdminCmd)
}

func requireToken() error {
	if authToken == "" {
		return fmt.Errorf("ARB_TOKEN environment variable not set (export ARB_TOKEN=<token> or pass --token)")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
