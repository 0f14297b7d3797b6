package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	sessionID string
	userID    string
	email     string
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show visit progress for a session or identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		switch {
		case userID != "":
			q.Set("user_id", userID)
		case sessionID != "":
			q.Set("session_id", sessionID)
		default:
			return fmt.Errorf("--session or --user is required")
		}

		var p struct {
			TotalAssets     int64 `json:"total_assets"`
			ViewedAssets    int64 `json:"viewed_assets"`
			RemainingAssets int64 `json:"remaining_assets"`
			TotalScore      int   `json:"total_score"`
		}
		raw, err := call(cmd.Context(), http.MethodGet, "/api/v1/progress", q, nil, &p)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}

		fmt.Printf("Viewed:    %d / %d\n", p.ViewedAssets, p.TotalAssets)
		fmt.Printf("Remaining: %d\n", p.RemainingAssets)
		fmt.Printf("Score:     %d\n", p.TotalScore)
		return nil
	},
}

var promoCmd = &cobra.Command{
	Use:   "promo",
	Short: "Look up (or issue) the promo code for a session, identity or email",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if sessionID != "" {
			q.Set("session_id", sessionID)
		}
		if userID != "" {
			q.Set("user_id", userID)
		}
		if email != "" {
			q.Set("email", email)
		}
		if len(q) == 0 {
			return fmt.Errorf("one of --session, --user or --email is required")
		}

		var res struct {
			PromoCode string `json:"promo_code"`
			Result    string `json:"result"`
			Sent      bool   `json:"sent"`
		}
		raw, err := call(cmd.Context(), http.MethodGet, "/api/v1/promo", q, nil, &res)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}

		fmt.Printf("%s (%s", res.PromoCode, res.Result)
		if res.Sent {
			fmt.Print(", emailed")
		}
		fmt.Println(")")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show view counts and today's most interesting asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		var s struct {
			BestAsset *struct {
				Slug string `json:"slug"`
				Name string `json:"name"`
			} `json:"best_asset"`
			ViewsToday   int64 `json:"views_today"`
			ViewsAllTime int64 `json:"views_all_time"`
		}
		raw, err := call(cmd.Context(), http.MethodGet, "/api/v1/stats", nil, nil, &s)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}

		fmt.Printf("Views today:    %d\n", s.ViewsToday)
		fmt.Printf("Views all time: %d\n", s.ViewsAllTime)
		if s.BestAsset != nil {
			fmt.Printf("Best asset:     %s (%s)\n", s.BestAsset.Name, s.BestAsset.Slug)
		} else {
			fmt.Println("Best asset:     -")
		}
		return nil
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume <code>",
	Short: "Redeem a promo code (admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		raw, err := call(cmd.Context(), http.MethodPost, "/api/v1/admin/promo/"+url.PathEscape(args[0])+"/consume", nil, nil, nil)
		if err != nil {
			return err
		}
		if printJSON(raw) {
			return nil
		}
		fmt.Printf("✓ %s redeemed\n", args[0])
		return nil
	},
}

func init() {
	progressCmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	progressCmd.Flags().StringVar(&userID, "user", "", "User ID")

	promoCmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	promoCmd.Flags().StringVar(&userID, "user", "", "User ID")
	promoCmd.Flags().StringVar(&email, "email", "", "Visitor email")
}
