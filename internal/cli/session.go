package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
	loginCode     string
	whoamiRefresh bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("P2PCLIENT_PASSWORD")
		}
		if loginEmail == "" || password == "" {
			return errors.New("--email and --password (or P2PCLIENT_PASSWORD) are required")
		}
		return getApp().Login(cmd.Context(), loginEmail, password, loginCode)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session and cached profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Logout(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WhoAmI(cmd.Context(), whoamiRefresh)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect the cached user profile",
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the profile from the API and update the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().WhoAmI(cmd.Context(), true)
	},
}

func init() {
	profileCmd.AddCommand(profileRefreshCmd)

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "Two-factor code, when enabled")

	whoamiCmd.Flags().BoolVar(&whoamiRefresh, "refresh", false, "Fetch the profile from the API first")
}
