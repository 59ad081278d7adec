package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/repo"
)

func tenantAndTx(ctx context.Context) (uuid.UUID, repo.Tx, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return tenantID, tx, nil
}

// toDBValue converts coerced field values into pgx-encodable values.
func toDBValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: val.Coefficient(), Exp: val.Exponent(), Valid: true}
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	default:
		return v
	}
}

// insertError turns a storage failure into a row-level InsertError, naming the field
// when Postgres reports the offending column.
func insertError(s *schema.Schema, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &importerrs.InsertError{Err: err}
	}
	msg := pgErr.Message
	if pgErr.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, pgErr.Detail)
	}
	return &importerrs.InsertError{Field: fieldForColumn(s, pgErr.ColumnName), Err: errors.New(msg)}
}

func fieldForColumn(s *schema.Schema, column string) string {
	if column == "" {
		return ""
	}
	for _, f := range s.Fields {
		if f.Column == column {
			return f.Key
		}
	}
	return ""
}
