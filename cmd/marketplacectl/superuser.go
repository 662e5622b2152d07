package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/marketplace-backend/internal/services/account"
)

func newCreateSuperuserCmd(e *env) *cobra.Command {
	var email, name, password string
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create a verified administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			// Уведомления и токены суперпользователю при создании не нужны.
			svc := account.NewAccountService(db, nil, nil, nil, nil, nil, account.Options{}, e.log)
			u, err := svc.CreateSuperuser(cmd.Context(), email, name, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "superuser %s created (id %d)\n", u.Email, u.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "superuser email")
	cmd.Flags().StringVar(&name, "name", "", "superuser full name")
	cmd.Flags().StringVar(&password, "password", "", "superuser password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
