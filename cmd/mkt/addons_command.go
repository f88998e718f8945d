package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"marketplace/internal/api"
	"marketplace/internal/queue"
	"marketplace/internal/store"
)

func newAddonsCommand(ctx *commandContext) *cobra.Command {
	addonsCmd := &cobra.Command{
		Use:   "addons",
		Short: "Inspect listed addons and web apps",
	}
	addonsCmd.AddCommand(newAddonsListCommand(ctx))
	return addonsCmd
}

func newAddonsListCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List addons ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var addonType store.AddonType
			switch typeFlag {
			case "", "all":
			case "app":
				addonType = store.TypeWebapp
			case "extension":
				addonType = store.TypeExtension
			case "theme":
				addonType = store.TypeTheme
			default:
				return fmt.Errorf("unknown addon type %q (use all, app, extension, or theme)", typeFlag)
			}
			return ctx.withStores(func(st *store.Store, _ *queue.Store) error {
				addons, err := st.ListAddons(cmd.Context(), addonType)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromAddons(addons))
				}
				if len(addons) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No addons")
					return nil
				}
				rows := make([][]string, 0, len(addons))
				for _, a := range addons {
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10),
						a.Name,
						a.URLPath(),
						a.Status.String(),
						yesNo(a.IsPremium()),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{{"ID", true}, {"Name", false}, {"URL", false}, {"Status", false}, {"Premium", false}},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "all", "Filter by type: all, app, extension, theme")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print addons as JSON")
	return cmd
}
