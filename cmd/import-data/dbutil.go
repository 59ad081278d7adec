package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

func connectDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

// newService builds an import service on Postgres storage with the import outbox as its sink.
func (e *cliEnv) newService() *services.ImportService {
	return services.NewImportService(
		schema.Default(),
		persistence.NewPgStorage(),
		outbox.NewPublisher(imports.OutboxTable),
		progress.NewMemoryStore(0),
		nil,
		e.config,
	)
}

// dbContext connects to the database and returns a tenant-scoped context that carries the pool.
func (e *cliEnv) dbContext(ctx context.Context, tenantID uuid.UUID) (context.Context, *pgxpool.Pool, error) {
	pool, err := connectDB(ctx, e.dsn)
	if err != nil {
		return nil, nil, withCode(exitDB, err)
	}
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTenantID(ctx, tenantID)
	ctx = composables.WithLogger(ctx, e.logger.WithField("tenant_id", tenantID.String()))
	return ctx, pool, nil
}

func tenantFlag(cmd *cobra.Command, tenant *string, target *uuid.UUID) {
	cmd.Flags().StringVar(tenant, "tenant", "", "Tenant UUID (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(strings.TrimSpace(*tenant))
		if err != nil || id == uuid.Nil {
			return withCode(exitUsage, fmt.Errorf("invalid --tenant: %q", *tenant))
		}
		*target = id
		return nil
	}
}

func parseBatchID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid batch id: %w", err))
	}
	return id, nil
}
