package main

import (
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/clutchdesk/internal/session"
)

var (
	loginToken   string
	loginRefresh string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token (and optional refresh token) for the console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := storeTokens(cmd.Context(), loginToken, loginRefresh); err != nil {
			return err
		}
		cmd.Println("Signed in.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer closeStore()
		if err := session.NewStore(store).Clear(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Signed out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "access token")
	loginCmd.Flags().StringVar(&loginRefresh, "refresh-token", "", "refresh token")
	_ = loginCmd.MarkFlagRequired("token")
}
