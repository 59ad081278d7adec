package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
)

func newUndoCmd(env *cliEnv) *cobra.Command {
	var tenant string
	var tenantID uuid.UUID
	var apply, yes bool

	cmd := &cobra.Command{
		Use:   "undo <batch-id>",
		Short: "Soft-delete every record a batch created (default is dry-run)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			ctx, pool, err := env.dbContext(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			defer pool.Close()
			svc := env.newService()

			batch, err := svc.GetBatch(ctx, batchID)
			if err != nil {
				return classify(err, exitDB)
			}
			if !apply {
				return writeJSONLine(cmd.OutOrStdout(), map[string]any{
					"mode":  modeDryRun,
					"batch": mappers.ImportBatchToViewModel(batch),
				})
			}
			if !yes {
				return withCode(exitUsage, fmt.Errorf("refusing to undo without --yes"))
			}
			if err := svc.Undo(ctx, batchID); err != nil {
				return classify(err, exitDBWrite)
			}
			if batch, err = svc.GetBatch(ctx, batchID); err != nil {
				return classify(err, exitDB)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{
				"mode":  modeApplied,
				"batch": mappers.ImportBatchToViewModel(batch),
			})
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the undo (default is dry-run)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the undo")
	tenantFlag(cmd, &tenant, &tenantID)
	return cmd
}
