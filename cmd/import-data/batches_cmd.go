package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
	"github.com/iota-uz/iota-import/modules/imports/services"
)

func newBatchesCmd(env *cliEnv) *cobra.Command {
	var tenant string
	var tenantID uuid.UUID
	var params services.ListParams

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List import batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, err := env.dbContext(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			defer pool.Close()

			batches, err := env.newService().ListBatches(ctx, params)
			if err != nil {
				return classify(err, exitDB)
			}
			for _, b := range batches {
				if err := writeJSONLine(cmd.OutOrStdout(), mappers.ImportBatchToViewModel(b)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&params.IncludeUndone, "include-undone", false, "Include undone batches")
	cmd.Flags().StringVar(&params.EntityType, "entity", "", "Only batches of this entity type")
	cmd.Flags().IntVar(&params.Limit, "limit", 50, "Maximum number of batches")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "Number of batches to skip")
	tenantFlag(cmd, &tenant, &tenantID)
	return cmd
}
