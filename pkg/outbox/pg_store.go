package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/iota-import/pkg/repo"
)

// PgStore leases rows with FOR UPDATE SKIP LOCKED so several relays can share a table.
type PgStore struct {
	db    repo.Tx
	table pgx.Identifier
}

func NewPgStore(db repo.Tx, table pgx.Identifier) (*PgStore, error) {
	if db == nil {
		return nil, invalidConfig("db is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	return &PgStore{db: db, table: table}, nil
}

func (s *PgStore) Table() string {
	return TableLabel(s.table)
}

func (s *PgStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Claim(ctx context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]Claimed, error) {
	var items []Claimed
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		q := fmt.Sprintf(
			`SELECT id, tenant_id, topic, payload, event_id, sequence, attempts
			   FROM %s
			  WHERE published_at IS NULL
			    AND available_at <= $1
			    AND attempts < $2
			    AND (locked_at IS NULL OR locked_at < $3)
			  ORDER BY available_at, sequence
			  LIMIT $4
			  FOR UPDATE SKIP LOCKED`,
			s.table.Sanitize(),
		)
		rows, err := tx.Query(ctx, q, now, maxAttempts, lockCutoff, limit)
		if err != nil {
			return errors.Wrap(err, "outbox claim select")
		}
		var ids []uuid.UUID
		for rows.Next() {
			var c Claimed
			if err := rows.Scan(&c.ID, &c.TenantID, &c.Topic, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
				rows.Close()
				return errors.Wrap(err, "outbox claim scan")
			}
			c.Attempts++
			items = append(items, c)
			ids = append(ids, c.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "outbox claim rows")
		}
		if len(ids) == 0 {
			return nil
		}
		update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE id = ANY($2)`, s.table.Sanitize())
		if _, err := tx.Exec(ctx, update, now, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
			return errors.Wrap(err, "outbox claim update")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PgStore) Ack(ctx context.Context, id uuid.UUID) error {
	q := fmt.Sprintf(
		`UPDATE %s SET published_at = now(), locked_at = NULL, last_error = NULL
		  WHERE id = $1 AND published_at IS NULL`,
		s.table.Sanitize(),
	)
	if _, err := s.db.Exec(ctx, q, id); err != nil {
		return errors.Wrap(err, "outbox ack")
	}
	return nil
}

func (s *PgStore) Nack(ctx context.Context, id uuid.UUID, lastError string, nextAvailable time.Time) error {
	q := fmt.Sprintf(
		`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = $3
		  WHERE id = $1 AND published_at IS NULL`,
		s.table.Sanitize(),
	)
	if _, err := s.db.Exec(ctx, q, id, lastError, nextAvailable); err != nil {
		return errors.Wrap(err, "outbox nack")
	}
	return nil
}

// Dead leaves the row unpublished; attempts >= max keeps it out of future claims.
func (s *PgStore) Dead(ctx context.Context, id uuid.UUID, lastError string) error {
	q := fmt.Sprintf(
		`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = now()
		  WHERE id = $1 AND published_at IS NULL`,
		s.table.Sanitize(),
	)
	if _, err := s.db.Exec(ctx, q, id, lastError); err != nil {
		return errors.Wrap(err, "outbox dead")
	}
	return nil
}

func (s *PgStore) Depth(ctx context.Context) (int64, int64, error) {
	q := fmt.Sprintf(
		`SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL) FROM %s WHERE published_at IS NULL`,
		s.table.Sanitize(),
	)
	var pending, locked int64
	if err := s.db.QueryRow(ctx, q).Scan(&pending, &locked); err != nil {
		return 0, 0, errors.Wrap(err, "outbox depth")
	}
	return pending, locked, nil
}
