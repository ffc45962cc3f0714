package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) entitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the registered entity schemas",
		Args:  cobraArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := a.openShelf()
			if err != nil {
				return err
			}
			defer a.closeShelf()

			for _, name := range sh.Entities() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <entity>",
		Short: "Print an entity's schema",
		Args:  cobraArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := a.openShelf()
			if err != nil {
				return err
			}
			defer a.closeShelf()

			sc, err := sh.Schema(args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), sc)
		},
	}
}
