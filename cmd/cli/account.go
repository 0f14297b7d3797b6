package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with an AR account and print the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginPassword == "" {
			loginPassword = os.Getenv("ARB_PASSWORD")
		}
		if loginEmail == "" || loginPassword == "" {
			return fmt.Errorf("--email and --password (or ARB_PASSWORD) are required")
		}

		var resp struct {
			AccessToken string `json:"access_token"`
		}
		raw, err := call(cmd.Context(), http.MethodPost, "/api/v1/auth/login", nil, map[string]string{
			"email":    loginEmail,
			"password": loginPassword,
		}, &resp)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}
		fmt.Println(resp.AccessToken)
		return nil
	},
}

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin <account-id>",
	Short: "Grant admin rights to an AR account (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}

		var account struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			IsAdmin bool   `json:"is_admin"`
		}
		raw, err := call(cmd.Context(), http.MethodPost, "/api/v1/auth/promote/"+args[0], nil, nil, &account)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}
		fmt.Printf("✓ %s (%s) is now an admin\n", account.Email, account.ID)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
}
