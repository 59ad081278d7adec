package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
)

func newSchemasCmd(_ *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "Print the importable entity schemas, one JSON line each",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := schema.Default()
			for _, entityType := range registry.EntityTypes() {
				s, err := registry.Get(entityType)
				if err != nil {
					return err
				}
				if err := writeJSONLine(cmd.OutOrStdout(), mappers.SchemaToViewModel(s)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
