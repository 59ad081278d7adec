package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/events"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/parsers"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/constants"
	"github.com/iota-uz/iota-import/pkg/eventbus"
	"github.com/iota-uz/iota-import/pkg/outbox"
)

var tracer = otel.Tracer("iota-import/imports")

// Storage groups the repositories an import touches with the transaction boundary they share.
type Storage interface {
	Batches() importbatch.Repository
	Errors() importerror.Repository
	Records() record.Repository
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// EventSink stores integration events in the same transaction as the change that caused them.
type EventSink interface {
	Enqueue(ctx context.Context, msg outbox.Message) (int64, error)
}

type Config struct {
	ChunkSize      int
	ErrorFlushSize int
	MappingWorkers int
	MaxFileBytes   int64
}

var DefaultConfig = Config{
	ChunkSize:      25,
	ErrorFlushSize: 100,
	MappingWorkers: 4,
	MaxFileBytes:   20 << 20,
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultConfig.ChunkSize
	}
	if c.ErrorFlushSize <= 0 {
		c.ErrorFlushSize = DefaultConfig.ErrorFlushSize
	}
	if c.MappingWorkers <= 0 {
		c.MappingWorkers = DefaultConfig.MappingWorkers
	}
	return c
}

type ImportService struct {
	registry *schema.Registry
	store    Storage
	sink     EventSink
	progress progress.Store
	bus      eventbus.EventBus
	cfg      Config
	now      func() time.Time
}

func NewImportService(
	registry *schema.Registry,
	store Storage,
	sink EventSink,
	progressStore progress.Store,
	bus eventbus.EventBus,
	cfg Config,
) *ImportService {
	return &ImportService{
		registry: registry,
		store:    store,
		sink:     sink,
		progress: progressStore,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Progress is reported to the caller after every chunk.
type Progress struct {
	BatchID      uuid.UUID
	Processed    int
	Total        int
	SuccessCount int
	ErrorCount   int
}

type RunImportDTO struct {
	EntityType string                      `validate:"required"`
	FileName   string                      `validate:"required,max=255"`
	Format     string                      `validate:"required,oneof=csv ledger"`
	Data       []byte                      `validate:"-"`
	Mapping    []importbatch.ColumnMapping `validate:"required,min=1"`
	OnProgress func(Progress)              `validate:"-"`
}

func (d *RunImportDTO) Ok(maxBytes int64) error {
	if err := constants.Validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &importerrs.ValidationError{Field: verrs[0].Field(), Reason: "failed on " + verrs[0].Tag()}
		}
		return &importerrs.ValidationError{Reason: err.Error()}
	}
	if maxBytes > 0 && int64(len(d.Data)) > maxBytes {
		return &importerrs.ValidationError{Field: "Data", Reason: "file exceeds the upload limit"}
	}
	return nil
}

type RunResult struct {
	BatchID      uuid.UUID
	TotalRows    int
	SuccessCount int
	ErrorCount   int
	Status       importbatch.Status
}

func resultOf(b *importbatch.ImportBatch) *RunResult {
	return &RunResult{
		BatchID:      b.ID(),
		TotalRows:    b.TotalRows(),
		SuccessCount: b.SuccessCount(),
		ErrorCount:   b.ErrorCount(),
		Status:       b.Status(),
	}
}

// importRun is the mutable state of one RunImport call.
type importRun struct {
	tenantID uuid.UUID
	batch    *importbatch.ImportBatch
	schema   *schema.Schema
	mapping  []importbatch.ColumnMapping
	resolver *DuplicateResolver
	pending  []*importerror.ImportError
	fields   logrus.Fields

	onProgress func(Progress)
}

func (r *importRun) fail(row parsers.Row, err error) {
	var rowErr importerrs.RowError
	if !errors.As(err, &rowErr) {
		rowErr = &importerrs.InsertError{Err: err}
	}
	r.pending = append(r.pending, importerror.FromRowError(r.batch.ID(), row.Number, row.Snapshot(), rowErr))
	recordRow(string(r.schema.EntityType), string(rowErr.Kind()), 1)
}

// RunImport parses data, maps and persists it chunk by chunk, and finalizes the batch.
// Row-level problems are recorded as ImportErrors; only validation, parse and batch
// bookkeeping failures are returned. A ParseError is returned together with the failed batch.
func (s *ImportService) RunImport(ctx context.Context, dto RunImportDTO) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "imports.RunImport")
	defer span.End()

	if err := dto.Ok(s.cfg.MaxFileBytes); err != nil {
		return nil, err
	}
	sch, err := s.registry.Get(schema.EntityType(dto.EntityType))
	if err != nil {
		return nil, &importerrs.ValidationError{Field: "EntityType", Reason: err.Error()}
	}
	if err := ValidateMapping(sch, dto.Mapping); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	batch := importbatch.New(tenantID, sch.EntityType, dto.FileName, importbatch.Format(dto.Format), dto.Mapping)
	if err := s.store.Batches().Create(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "create import batch")
	}
	if err := batch.Start(s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Batches().Update(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "start import batch")
	}

	run := &importRun{
		tenantID:   tenantID,
		batch:      batch,
		schema:     sch,
		mapping:    batch.ColumnMapping(),
		resolver:   NewDuplicateResolver(s.store.Records()),
		onProgress: dto.OnProgress,
		fields: logrus.Fields{
			"component":   "imports",
			"batch_id":    batch.ID().String(),
			"entity_type": string(sch.EntityType),
			"tenant_id":   tenantID.String(),
		},
	}
	span.SetAttributes(
		attribute.String("import.batch_id", batch.ID().String()),
		attribute.String("import.entity_type", string(sch.EntityType)),
	)
	importBatchesStarted.WithLabelValues(string(sch.EntityType)).Inc()
	logWithFields(ctx, logrus.InfoLevel, "imports.batch.started", run.fields)

	table, parseErr := parsers.Parse(dto.Data, batch.SourceFormat())
	if parseErr != nil {
		span.RecordError(parseErr)
		span.SetStatus(codes.Error, "parse failed")
		if err := batch.Fail(s.now()); err != nil {
			return nil, err
		}
		if err := s.finalize(ctx, run); err != nil {
			return resultOf(batch), errors.Join(parseErr, err)
		}
		return resultOf(batch), parseErr
	}

	rows := table.Rows
	batch.SetTotalRows(len(rows))
	span.SetAttributes(attribute.Int("import.total_rows", len(rows)))

	// Chunks already started run to completion; cancellation only stops scheduling new ones.
	work := context.WithoutCancel(ctx)
	for start := 0; start < len(rows); start += s.cfg.ChunkSize {
		if ctx.Err() != nil {
			s.abort(run, rows[start:])
			logWithFields(ctx, logrus.WarnLevel, "imports.batch.aborted", withField(run.fields, "unprocessed_rows", len(rows)-start))
			break
		}
		end := min(start+s.cfg.ChunkSize, len(rows))
		s.processChunk(work, run, rows[start:end])
		if err := s.flushErrors(work, run, false); err != nil {
			logWithFields(ctx, logrus.WarnLevel, "imports.errors.flush_deferred", withError(withField(run.fields, "pending", len(run.pending)), err))
		}
	}
	flushErr := s.flushErrors(work, run, true)

	if err := batch.Finalize(s.now()); err != nil {
		return resultOf(batch), err
	}
	if err := s.finalize(work, run); err != nil {
		return resultOf(batch), errors.Join(flushErr, err)
	}
	if flushErr != nil {
		return resultOf(batch), flushErr
	}
	return resultOf(batch), nil
}

func (s *ImportService) processChunk(ctx context.Context, run *importRun, rows []parsers.Row) {
	ctx, span := tracer.Start(ctx, "imports.chunk")
	defer span.End()
	started := time.Now()
	errorsBefore := len(run.pending)

	type mapped struct {
		values record.Values
		err    error
	}
	results := make([]mapped, len(rows))
	opts := s.registry.CoercionOptions(run.schema.EntityType)
	var g errgroup.Group
	g.SetLimit(s.cfg.MappingWorkers)
	for i, row := range rows {
		g.Go(func() error {
			values, err := ApplyMapping(row, run.mapping, run.schema, opts)
			results[i] = mapped{values: values, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		recs    []*record.Record
		recRows []parsers.Row
	)
	for i, res := range results {
		row := rows[i]
		if res.err != nil {
			run.fail(row, res.err)
			continue
		}
		match, err := run.resolver.FindDuplicate(ctx, res.values, run.schema)
		if err != nil {
			run.fail(row, err)
			continue
		}
		if match != nil {
			run.fail(row, match.asError(run.schema))
			continue
		}
		run.resolver.Remember(res.values, run.schema, row.Number)
		recs = append(recs, record.New(run.tenantID, run.batch.ID(), row.Number, res.values))
		recRows = append(recRows, row)
	}

	success, fallback := s.persist(ctx, run, recs, recRows)
	failed := len(run.pending) - errorsBefore
	run.batch.RecordOutcome(success, failed)
	recordRow(string(run.schema.EntityType), "success", success)
	recordChunk(string(run.schema.EntityType), fallback, time.Since(started))

	if err := s.store.Batches().Update(ctx, run.batch); err != nil {
		logWithFields(ctx, logrus.ErrorLevel, "imports.batch.progress_update_failed", withError(run.fields, err))
	}
	s.reportProgress(ctx, run)
}

// persist tries the whole chunk at once and falls back to one transaction per row when the
// bulk insert is rejected. It reports how many records were stored.
func (s *ImportService) persist(ctx context.Context, run *importRun, recs []*record.Record, rows []parsers.Row) (int, bool) {
	if len(recs) == 0 {
		return 0, false
	}
	bulkErr := s.store.Records().InsertMany(ctx, run.schema, recs)
	if bulkErr == nil {
		return len(recs), false
	}
	logWithFields(ctx, logrus.DebugLevel, "imports.chunk.bulk_insert_failed", withError(run.fields, bulkErr))

	success := 0
	for i, rec := range recs {
		if err := s.store.Records().Insert(ctx, run.schema, rec); err != nil {
			run.resolver.Forget(rec.Values, run.schema, rec.RowNumber)
			run.fail(rows[i], err)
			continue
		}
		success++
	}
	return success, true
}

func (s *ImportService) abort(run *importRun, rows []parsers.Row) {
	for _, row := range rows {
		run.fail(row, &importerrs.AbortedError{})
	}
	run.batch.RecordOutcome(0, len(rows))
}

// flushErrors persists pending errors in sub-chunks once enough have accumulated, or
// unconditionally when final is set. Records that fail to persist stay pending for the next
// flush; a failed final flush is returned.
func (s *ImportService) flushErrors(ctx context.Context, run *importRun, final bool) error {
	size := s.cfg.ErrorFlushSize
	for len(run.pending) >= size || (final && len(run.pending) > 0) {
		n := min(size, len(run.pending))
		if err := s.store.Errors().CreateMany(ctx, run.pending[:n]); err != nil {
			logWithFields(ctx, logrus.ErrorLevel, "imports.errors.flush_failed", withError(withField(run.fields, "errors", n), err))
			return errors.Wrapf(err, "persist %d import errors", len(run.pending))
		}
		run.pending = run.pending[n:]
	}
	return nil
}

func (s *ImportService) reportProgress(ctx context.Context, run *importRun) {
	b := run.batch
	p := Progress{
		BatchID:      b.ID(),
		Processed:    b.SuccessCount() + b.ErrorCount(),
		Total:        b.TotalRows(),
		SuccessCount: b.SuccessCount(),
		ErrorCount:   b.ErrorCount(),
	}
	if run.onProgress != nil {
		run.onProgress(p)
	}
	s.saveProgress(ctx, b)
	if s.bus != nil {
		s.bus.Publish(&events.BatchProgressed{
			TenantID:     run.tenantID,
			BatchID:      p.BatchID,
			Processed:    p.Processed,
			Total:        p.Total,
			SuccessCount: p.SuccessCount,
			ErrorCount:   p.ErrorCount,
		})
	}
}

func (s *ImportService) saveProgress(ctx context.Context, b *importbatch.ImportBatch) {
	if s.progress == nil {
		return
	}
	err := s.progress.Save(ctx, progress.Snapshot{
		BatchID:      b.ID(),
		Processed:    b.SuccessCount() + b.ErrorCount(),
		Total:        b.TotalRows(),
		SuccessCount: b.SuccessCount(),
		ErrorCount:   b.ErrorCount(),
		Status:       string(b.Status()),
		UpdatedAt:    s.now(),
	})
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "imports.progress.save_failed", logrus.Fields{"batch_id": b.ID().String(), "error": err.Error()})
	}
}

// finalize stores the closed batch and its outbox event atomically. It never observes cancellation.
func (s *ImportService) finalize(ctx context.Context, run *importRun) error {
	ctx = context.WithoutCancel(ctx)
	b := run.batch
	evt := events.BatchFinalized{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		TenantID:     run.tenantID,
		BatchID:      b.ID(),
		EntityType:   string(b.EntityType()),
		Status:       string(b.Status()),
		TotalRows:    b.TotalRows(),
		SuccessCount: b.SuccessCount(),
		ErrorCount:   b.ErrorCount(),
		OccurredAt:   s.now(),
	}
	err := s.store.InTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Batches().Update(txCtx, b); err != nil {
			return errors.Wrap(err, "finalize import batch")
		}
		return s.enqueue(txCtx, run.tenantID, events.TopicBatchFinalizedV1, evt.EventID, evt)
	})
	if err != nil {
		logWithFields(ctx, logrus.ErrorLevel, "imports.batch.finalize_failed", withError(run.fields, err))
		return err
	}

	importBatchesFinalized.WithLabelValues(string(b.EntityType()), string(b.Status())).Inc()
	s.saveProgress(ctx, b)
	if s.bus != nil {
		s.bus.Publish(&evt)
	}
	logWithFields(ctx, logrus.InfoLevel, "imports.batch.finalized", withField(withField(withField(run.fields,
		"status", string(b.Status())), "success_count", b.SuccessCount()), "error_count", b.ErrorCount()))
	return nil
}

func (s *ImportService) enqueue(ctx context.Context, tenantID uuid.UUID, topic string, eventID uuid.UUID, payload any) error {
	if s.sink == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	_, err = s.sink.Enqueue(ctx, outbox.Message{TenantID: tenantID, Topic: topic, EventID: eventID, Payload: raw})
	return err
}

func withField(fields logrus.Fields, key string, value any) logrus.Fields {
	out := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

func withError(fields logrus.Fields, err error) logrus.Fields {
	return withField(fields, "error", err.Error())
}
