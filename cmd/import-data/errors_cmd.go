package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
)

func newErrorsCmd(env *cliEnv) *cobra.Command {
	var tenant, format, output string
	var tenantID uuid.UUID

	cmd := &cobra.Command{
		Use:   "errors <batch-id>",
		Short: "Export the row errors of a batch as JSON lines, CSV or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			if format != "json" && format != "csv" && format != "xlsx" {
				return withCode(exitUsage, fmt.Errorf("unsupported --format: %s", format))
			}
			if format == "xlsx" && output == "" {
				return withCode(exitUsage, fmt.Errorf("--output is required for --format xlsx"))
			}
			ctx, pool, err := env.dbContext(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			defer pool.Close()
			svc := env.newService()

			var data []byte
			switch format {
			case "json":
				errs, err := svc.GetErrors(ctx, batchID)
				if err != nil {
					return classify(err, exitDB)
				}
				w, closeOut, err := openOutput(cmd.OutOrStdout(), output)
				if err != nil {
					return err
				}
				defer closeOut()
				for _, e := range errs {
					if err := writeJSONLine(w, mappers.ImportErrorToViewModel(e)); err != nil {
						return err
					}
				}
				return nil
			case "csv":
				data, err = svc.ExportErrorsCSV(ctx, batchID)
			case "xlsx":
				data, err = svc.ExportErrorsXLSX(ctx, batchID)
			default:
				return withCode(exitUsage, fmt.Errorf("unsupported --format: %s", format))
			}
			if err != nil {
				return classify(err, exitDB)
			}
			w, closeOut, err := openOutput(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			defer closeOut()
			if _, err := w.Write(data); err != nil {
				return withCode(exitDB, fmt.Errorf("write errors: %w", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, csv or xlsx")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: stdout)")
	tenantFlag(cmd, &tenant, &tenantID)
	return cmd
}

func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, withCode(exitUsage, fmt.Errorf("create --output: %w", err))
	}
	return f, func() { _ = f.Close() }, nil
}
