package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RowanDark/cipherlab/internal/api"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the cipherd bootstrap token",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash [token]",
		Short: "Print a bcrypt hash to store as static_token",
		Long: "Hashes the bootstrap token so the daemon configuration never holds it in plain text.\n" +
			"The token is read from the argument or, when omitted, from stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				text, err := inputText(cmd)
				if err != nil {
					return err
				}
				token = text
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token must not be empty")
			}
			hash, err := api.HashStaticToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}
