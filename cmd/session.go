package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/ledger-console/internal/auth"
	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/pkg/logger"
)

const passwordEnv = "LEDGER_PASSWORD"

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the remote ledger service and keep the session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv(passwordEnv)
		}

		lg := logger.LoggerWrapper()
		store, closeStore, err := openStore(cmd.Context(), appConfig.Session, lg)
		if err != nil {
			return err
		}
		defer closeStore()

		client := gateway.NewClient(gateway.Config{
			BaseURL:              appConfig.API.BaseURL,
			Timeout:              appConfig.API.Timeout,
			AssignPermissionPath: appConfig.API.AssignPermissionPath,
			PermissionField:      appConfig.API.PermissionField,
		}, lg)

		svc := auth.NewService(client, store, validation.NewValidator(), lg)
		snap, err := svc.Submit(cmd.Context(), gateway.Credentials{Email: loginEmail, Password: password})
		if err != nil {
			if snap.Message != "" {
				return errors.New(snap.Message)
			}
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context(), appConfig.Session, logger.LoggerWrapper())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session without contacting the server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore(cmd.Context(), appConfig.Session, logger.LoggerWrapper())
		if err != nil {
			return err
		}
		defer closeStore()

		info, err := auth.Describe(cmd.Context(), store)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "account password (or set "+passwordEnv+")")
	_ = loginCmd.MarkFlagRequired("email")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
