package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/modules/imports/presentation/mappers"
	"github.com/iota-uz/iota-import/modules/imports/presentation/viewmodels"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/composables"
)

const (
	modeApplied = "applied"
	modeDryRun  = "dry_run"
	modeOffline = "offline"
)

type runOptions struct {
	tenantID   uuid.UUID
	entityType string
	format     string
	file       string
	pairs      []string
	suggest    bool
	apply      bool
	offline    bool
	progress   bool
}

type runLine struct {
	Event    string                     `json:"event"`
	Mode     string                     `json:"mode,omitempty"`
	Result   *viewmodels.RunResult      `json:"result,omitempty"`
	Mapping  []viewmodels.ColumnMapping `json:"mapping,omitempty"`
	Error    *viewmodels.ImportError    `json:"error,omitempty"`
	Progress *progressView              `json:"progress,omitempty"`
}

type progressView struct {
	BatchID      string `json:"batch_id"`
	Processed    int    `json:"processed"`
	Total        int    `json:"total"`
	SuccessCount int    `json:"success_count"`
	ErrorCount   int    `json:"error_count"`
}

func newRunCmd(env *cliEnv) *cobra.Command {
	var opts runOptions
	var tenant string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Import one file (default is dry-run inside a rolled back transaction)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), env, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.entityType, "entity", "", "Entity type: customer, contact, job, invoice, estimate (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path to the source file (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Source format: csv or ledger (default: from file extension)")
	cmd.Flags().StringArrayVar(&opts.pairs, "map", nil, "Column mapping as \"Source Column=fieldKey\" (repeatable)")
	cmd.Flags().BoolVar(&opts.suggest, "suggest", false, "Suggest a mapping from the header row when --map is not given")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Commit the import (default is dry-run)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Dry-run against an empty in-memory store, without a database")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Print a progress line after every chunk")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	tenantFlag(cmd, &tenant, &opts.tenantID)

	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".iif", ".ledger":
		return string(importbatch.FormatLedger)
	default:
		return string(importbatch.FormatCSV)
	}
}

func runImport(ctx context.Context, env *cliEnv, opts runOptions, out io.Writer) error {
	if opts.apply && opts.offline {
		return withCode(exitUsage, fmt.Errorf("--apply and --offline are mutually exclusive"))
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read --file: %w", err))
	}
	if opts.format == "" {
		opts.format = formatFromPath(opts.file)
	}

	mapping, err := services.ParseMappingPairs(opts.pairs)
	if err != nil {
		return classify(err, exitUsage)
	}
	if len(mapping) == 0 {
		if !opts.suggest {
			return withCode(exitUsage, fmt.Errorf("either --map or --suggest is required"))
		}
		sch, err := schema.Default().Get(schema.EntityType(opts.entityType))
		if err != nil {
			return classify(err, exitUsage)
		}
		headers, err := readHeaders(data, opts.format)
		if err != nil {
			return classify(err, exitValidation)
		}
		mapping = services.SuggestMapping(sch, headers)
		if err := writeJSONLine(out, runLine{Event: "mapping", Mapping: mappers.ColumnMappingsToViewModel(mapping)}); err != nil {
			return err
		}
	}

	dto := services.RunImportDTO{
		EntityType: opts.entityType,
		FileName:   filepath.Base(opts.file),
		Format:     opts.format,
		Data:       data,
		Mapping:    mapping,
	}
	if opts.progress {
		dto.OnProgress = func(p services.Progress) {
			_ = writeJSONLine(out, runLine{Event: "progress", Progress: &progressView{
				BatchID:      p.BatchID.String(),
				Processed:    p.Processed,
				Total:        p.Total,
				SuccessCount: p.SuccessCount,
				ErrorCount:   p.ErrorCount,
			}})
		}
	}

	if opts.offline {
		store := persistence.NewMemoryStore()
		svc := services.NewImportService(schema.Default(), store, store, progress.NewMemoryStore(0), nil, env.config)
		ctx = composables.WithTenantID(ctx, opts.tenantID)
		ctx = composables.WithLogger(ctx, env.logger.WithField("tenant_id", opts.tenantID.String()))
		return report(ctx, svc, dto, modeOffline, out, 1)
	}

	ctx, pool, err := env.dbContext(ctx, opts.tenantID)
	if err != nil {
		return err
	}
	defer pool.Close()
	svc := env.newService()

	if opts.apply {
		return report(ctx, svc, dto, modeApplied, out, exitDBWrite)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("begin dry-run transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()
	return report(composables.WithTx(ctx, tx), svc, dto, modeDryRun, out, exitDB)
}

// report runs the import and prints its outcome. Outside applied mode the batch does not
// survive the command, so its row errors are printed as well.
func report(ctx context.Context, svc *services.ImportService, dto services.RunImportDTO, mode string, out io.Writer, fallback int) error {
	res, runErr := svc.RunImport(ctx, dto)
	if res == nil {
		return classify(runErr, fallback)
	}
	if mode != modeApplied {
		errs, err := svc.GetErrors(ctx, res.BatchID)
		if err != nil {
			return classify(err, fallback)
		}
		for _, e := range errs {
			if err := writeJSONLine(out, runLine{Event: "row_error", Error: mappers.ImportErrorToViewModel(e)}); err != nil {
				return err
			}
		}
	}
	if err := writeJSONLine(out, runLine{Event: "result", Mode: mode, Result: mappers.RunResultToViewModel(res)}); err != nil {
		return err
	}
	return classify(runErr, fallback)
}
