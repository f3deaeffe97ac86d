package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"micli/config"
	"micli/ui"
	"micli/xiaoai"
)

func newLoginCommand(rt *Runtime, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the Xiaomi account and save credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := ui.PromptText("Account:")
			if err != nil {
				return err
			}
			password, err := ui.PromptPassword("Password:")
			if err != nil {
				return err
			}

			client, err := xiaoai.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			store, err := openAuthStore(cfg)
			if err != nil {
				return err
			}
			if store.Exists() {
				overwrite, err := ui.Confirm(fmt.Sprintf("%s exists, overwrite?", store.Path()))
				if err != nil {
					return err
				}
				if !overwrite {
					return nil
				}
			}
			if err := store.Save(client.Auth()); err != nil {
				return err
			}

			fmt.Printf("Credentials saved to %s\n", store.Path())
			return nil
		},
	}
}
