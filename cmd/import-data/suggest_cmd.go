package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/parsers"
	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
	"github.com/iota-uz/iota-import/modules/imports/services"
)

func readHeaders(data []byte, format string) ([]string, error) {
	table, err := parsers.Parse(data, importbatch.Format(format))
	if err != nil {
		return nil, err
	}
	return table.Headers, nil
}

func newSuggestCmd(_ *cliEnv) *cobra.Command {
	var entityType, file, format string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print a suggested column mapping for a file's header row",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := schema.Default().Get(schema.EntityType(entityType))
			if err != nil {
				return classify(err, exitUsage)
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("read --file: %w", err))
			}
			if format == "" {
				format = formatFromPath(file)
			}
			headers, err := readHeaders(data, format)
			if err != nil {
				return classify(err, exitValidation)
			}
			mapping := services.SuggestMapping(sch, headers)
			return writeJSONLine(cmd.OutOrStdout(), mappers.ColumnMappingsToViewModel(mapping))
		},
	}

	cmd.Flags().StringVar(&entityType, "entity", "", "Entity type (required)")
	cmd.Flags().StringVar(&file, "file", "", "Path to the source file (required)")
	cmd.Flags().StringVar(&format, "format", "", "Source format: csv or ledger (default: from file extension)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
