package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"marketplace/internal/api"
	"marketplace/internal/queue"
	"marketplace/internal/store"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStores(func(st *store.Store, _ *queue.Store) error {
				user, err := st.GetUser(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("user %d: %w", id, err)
				}
				token, err := api.IssueToken(cfg, user.ID, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}
