package services_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/iota-import/modules/imports/domain/aggregates/importbatch"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/importerror"
	"github.com/iota-uz/iota-import/modules/imports/domain/entities/record"
	"github.com/iota-uz/iota-import/modules/imports/domain/events"
	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/eventbus"
)

type fixture struct {
	svc      *services.ImportService
	store    *persistence.MemoryStore
	progress *progress.MemoryStore
	bus      eventbus.EventBus
	ctx      context.Context
	tenantID uuid.UUID
}

func newFixture(t *testing.T, cfg services.Config) *fixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	prog := progress.NewMemoryStore(0)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bus := eventbus.NewEventPublisher(log)
	tenantID := uuid.New()
	ctx := composables.WithTenantID(context.Background(), tenantID)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(log))
	return &fixture{
		svc:      services.NewImportService(schema.Default(), store, store, prog, bus, cfg),
		store:    store,
		progress: prog,
		bus:      bus,
		ctx:      ctx,
		tenantID: tenantID,
	}
}

// seedContact stores a contact created outside any import.
func (f *fixture) seedContact(t *testing.T, values record.Values) *record.Record {
	t.Helper()
	rec := record.New(f.tenantID, uuid.Nil, 0, values)
	rec.ImportBatchID = nil
	require.NoError(t, f.store.Records().Insert(f.ctx, mustSchema(t, "contact"), rec))
	return rec
}

func contactsDTO(data string) services.RunImportDTO {
	return services.RunImportDTO{
		EntityType: "contact",
		FileName:   "contacts.csv",
		Format:     "csv",
		Data:       []byte(data),
		Mapping:    pairs("Name", "name", "Email", "email", "Phone", "phone"),
	}
}

func liveRecords(recs []record.Record) []record.Record {
	var out []record.Record
	for _, r := range recs {
		if r.DeletedAt == nil {
			out = append(out, r)
		}
	}
	return out
}

func TestRunImport_DuplicateThenUndoEndToEnd(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	existing := f.seedContact(t, record.Values{"name": "Jane", "email": "jane@example.com"})

	data := "Name,Email,Phone\n" +
		"Ann,ann@example.com,555-0100\n" +
		"Jane Again,JANE@example.com,\n" +
		"Bob,bob@example.com,555-0101\n"
	res, err := f.svc.RunImport(f.ctx, contactsDTO(data))
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalRows)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Equal(t, importbatch.StatusCompleted, res.Status)

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, 2, errs[0].RowNumber())
	require.Equal(t, "email/phone", *errs[0].FieldName())
	require.Equal(t, importerrs.KindDuplicate, errs[0].Kind())
	require.Contains(t, errs[0].Message(), "JANE@example.com")
	require.Equal(t, "Jane Again", errs[0].RowData()[0].Value)

	require.NoError(t, f.svc.Undo(f.ctx, res.BatchID))

	all := f.store.AllRecords("contact")
	require.Len(t, all, 3)
	live := liveRecords(all)
	require.Len(t, live, 1)
	require.Equal(t, existing.ID, live[0].ID)
	require.Nil(t, live[0].ImportBatchID)

	batch, err := f.svc.GetBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusUndone, batch.Status())
	require.NotNil(t, batch.UndoneAt())

	errs, err = f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 1, "undo leaves import errors untouched")

	err = f.svc.Undo(f.ctx, res.BatchID)
	var stateErr *importerrs.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, "undone", stateErr.From)

	topics := []string{}
	for _, m := range f.store.Outbox() {
		topics = append(topics, m.Topic)
	}
	require.Equal(t, []string{events.TopicBatchFinalizedV1, events.TopicBatchUndoneV1}, topics)
}

func TestRunImport_DuplicateByPhoneDigits(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	f.seedContact(t, record.Values{"name": "Jane", "phone": "(555) 010-0000"})

	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nJ,,555.010.0000\n"))
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount)
	require.Equal(t, importbatch.StatusFailed, res.Status)
}

func TestRunImport_DuplicateWithinFile(t *testing.T) {
	f := newFixture(t, services.Config{ChunkSize: 2})
	data := "Name,Email,Phone\nA,a@example.com,\nB,b@example.com,\nA2,A@Example.com,\n"

	res, err := f.svc.RunImport(f.ctx, contactsDTO(data))
	require.NoError(t, err)
	require.Equal(t, 2, res.SuccessCount)
	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, 3, errs[0].RowNumber())
	require.Contains(t, errs[0].Message(), "row 1")
}

func TestRunImport_OneBadRowAmongTen(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	var b strings.Builder
	b.WriteString("Name,Email,Phone\n")
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("Person %d", i)
		if i == 4 {
			name = ""
		}
		fmt.Fprintf(&b, "%s,p%d@example.com,\n", name, i)
	}

	res, err := f.svc.RunImport(f.ctx, contactsDTO(b.String()))
	require.NoError(t, err)
	require.Equal(t, 9, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Len(t, f.store.AllRecords("contact"), 9)

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, 4, errs[0].RowNumber())
	require.Equal(t, "Missing required field: Name", errs[0].Message())
}

func TestRunImport_BulkFailureFallsBackToSingleRows(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	f.store.SetReject(func(_ *schema.Schema, rec *record.Record) error {
		if rec.Values["email"] == "p5@example.com" {
			return &importerrs.InsertError{Field: "email", Err: errors.New("value violates check constraint")}
		}
		return nil
	})
	var b strings.Builder
	b.WriteString("Name,Email,Phone\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "Person %d,p%d@example.com,\n", i, i)
	}

	res, err := f.svc.RunImport(f.ctx, contactsDTO(b.String()))
	require.NoError(t, err)
	require.Equal(t, 9, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Len(t, f.store.AllRecords("contact"), 9, "no row is inserted twice")

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, 5, errs[0].RowNumber())
	require.Equal(t, importerrs.KindInsert, errs[0].Kind())
	require.Equal(t, "email", *errs[0].FieldName())
	require.Equal(t, "value violates check constraint", errs[0].Message())
}

func TestRunImport_CountsAddUpAcrossChunks(t *testing.T) {
	f := newFixture(t, services.Config{ChunkSize: 25, ErrorFlushSize: 7, MappingWorkers: 3})
	var b strings.Builder
	b.WriteString("Name,Email,Phone\n")
	for i := 1; i <= 60; i++ {
		name := fmt.Sprintf("P%d", i)
		if i%6 == 0 {
			name = ""
		}
		fmt.Fprintf(&b, "%s,x%d@example.com,\n", name, i)
	}
	var reports []services.Progress
	dto := contactsDTO(b.String())
	dto.OnProgress = func(p services.Progress) { reports = append(reports, p) }

	res, err := f.svc.RunImport(f.ctx, dto)
	require.NoError(t, err)
	require.Equal(t, 60, res.TotalRows)
	require.Equal(t, 50, res.SuccessCount)
	require.Equal(t, 10, res.ErrorCount)
	require.Equal(t, res.TotalRows, res.SuccessCount+res.ErrorCount)

	require.Len(t, reports, 3)
	require.Equal(t, 25, reports[0].Processed)
	require.Equal(t, 50, reports[1].Processed)
	require.Equal(t, 60, reports[2].Processed)
	for _, p := range reports {
		require.Equal(t, p.Processed, p.SuccessCount+p.ErrorCount)
		require.Equal(t, 60, p.Total)
	}

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 10)

	snap, err := f.svc.Progress(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, "completed", snap.Status)
	require.Equal(t, 60, snap.Processed)
}

func TestRunImport_EmptyFileCompletes(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO(""))
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusCompleted, res.Status)
	require.Zero(t, res.TotalRows)
	require.Zero(t, res.SuccessCount)
	require.Zero(t, res.ErrorCount)
}

func TestRunImport_AllRowsFailedMarksBatchFailed(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,a@example.com,\n,b@example.com,\n"))
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusFailed, res.Status)
	require.Equal(t, 2, res.ErrorCount)
}

func TestRunImport_ParseErrorFailsBatch(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	dto := contactsDTO(string([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}))

	res, err := f.svc.RunImport(f.ctx, dto)
	var parseErr *importerrs.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.NotNil(t, res)
	require.Equal(t, importbatch.StatusFailed, res.Status)

	batch, err := f.svc.GetBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusFailed, batch.Status())
	require.Zero(t, batch.TotalRows())
}

func TestRunImport_CancellationRecordsAbortedRows(t *testing.T) {
	f := newFixture(t, services.Config{ChunkSize: 25})
	var b strings.Builder
	b.WriteString("Name,Email,Phone\n")
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "P%d,c%d@example.com,\n", i, i)
	}
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	dto := contactsDTO(b.String())
	dto.OnProgress = func(services.Progress) { cancel() }

	res, err := f.svc.RunImport(ctx, dto)
	require.NoError(t, err)
	require.Equal(t, 25, res.SuccessCount)
	require.Equal(t, 35, res.ErrorCount)
	require.Equal(t, importbatch.StatusCompleted, res.Status)

	batch, err := f.svc.GetBatch(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusCompleted, batch.Status())

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 35)
	require.Equal(t, 26, errs[0].RowNumber())
	require.Equal(t, importerrs.KindAborted, errs[0].Kind())
	require.Equal(t, "import aborted before row was processed", errs[0].Message())
}

func TestRunImport_ValidationHappensBeforeBatchCreation(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	cases := map[string]services.RunImportDTO{
		"unknown entity": {EntityType: "spaceship", FileName: "a.csv", Format: "csv", Mapping: pairs("A", "name")},
		"bad format":     {EntityType: "contact", FileName: "a.csv", Format: "xlsx", Mapping: pairs("Name", "name")},
		"no mapping":     {EntityType: "contact", FileName: "a.csv", Format: "csv"},
		"unknown target": {EntityType: "contact", FileName: "a.csv", Format: "csv", Mapping: pairs("Name", "name", "X", "salary")},
	}
	for name, dto := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.RunImport(f.ctx, dto)
			var vErr *importerrs.ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}
	batches, err := f.svc.ListBatches(f.ctx, services.ListParams{IncludeUndone: true})
	require.NoError(t, err)
	require.Empty(t, batches)
}

func TestRunImport_PublishesProgressAndFinalizedEvents(t *testing.T) {
	f := newFixture(t, services.Config{ChunkSize: 1})
	var progressed []*events.BatchProgressed
	var finalized *events.BatchFinalized
	f.bus.Subscribe(func(e *events.BatchProgressed) { progressed = append(progressed, e) })
	f.bus.Subscribe(func(e *events.BatchFinalized) { finalized = e })

	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nA,,\nB,,\n"))
	require.NoError(t, err)
	require.Len(t, progressed, 2)
	require.NotNil(t, finalized)
	require.Equal(t, res.BatchID, finalized.BatchID)
	require.Equal(t, "completed", finalized.Status)
}

func TestListBatches_HidesUndoneByDefault(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	first, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nA,,\n"))
	require.NoError(t, err)
	_, err = f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nB,,\n"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Undo(f.ctx, first.BatchID))

	visible, err := f.svc.ListBatches(f.ctx, services.ListParams{})
	require.NoError(t, err)
	require.Len(t, visible, 1)

	all, err := f.svc.ListBatches(f.ctx, services.ListParams{IncludeUndone: true})
	require.NoError(t, err)
	require.Len(t, all, 2)

	undone, err := f.svc.GetBatch(f.ctx, first.BatchID)
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusUndone, undone.Status())
}

func TestUndo_NotFoundAndOtherTenant(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	var notFound *importerrs.NotFoundError
	require.ErrorAs(t, f.svc.Undo(f.ctx, uuid.New()), &notFound)

	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nA,,\n"))
	require.NoError(t, err)
	other := composables.WithTenantID(context.Background(), uuid.New())
	require.ErrorAs(t, f.svc.Undo(other, res.BatchID), &notFound)
	_, err = f.svc.GetErrors(other, res.BatchID)
	require.ErrorAs(t, err, &notFound)
}

func TestUndo_FailedBatchCanBeUndone(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,,\n"))
	require.NoError(t, err)
	require.Equal(t, importbatch.StatusFailed, res.Status)
	require.NoError(t, f.svc.Undo(f.ctx, res.BatchID))
}

func TestUndo_ConcurrentCallsExactlyOneWins(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nA,a@example.com,\nB,b@example.com,\n"))
	require.NoError(t, err)

	const callers = 8
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.svc.Undo(f.ctx, res.BatchID)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var stateErr *importerrs.InvalidStateError
		require.ErrorAs(t, err, &stateErr)
	}
	require.Equal(t, 1, wins)
	require.Empty(t, liveRecords(f.store.AllRecords("contact")))

	undoneEvents := 0
	for _, m := range f.store.Outbox() {
		if m.Topic == events.TopicBatchUndoneV1 {
			undoneEvents++
		}
	}
	require.Equal(t, 1, undoneEvents)
}

func TestExportErrorsCSV(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	f.seedContact(t, record.Values{"name": "Jane", "email": "jane@example.com"})
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,x@example.com,\n\"Doe, Jane\",jane@example.com,\n"))
	require.NoError(t, err)

	out, err := f.svc.ExportErrorsCSV(f.ctx, res.BatchID)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Row", "Field", "Error"},
		{"1", "name", "Missing required field: Name"},
		{"2", "email/phone", `Duplicate: contact with email "jane@example.com" already exists`},
	}, records)
	require.Contains(t, string(out), `"Duplicate: contact with email ""jane@example.com"" already exists"`)
}

func TestExportErrorsXLSX(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,x@example.com,\n"))
	require.NoError(t, err)

	out, err := f.svc.ExportErrorsXLSX(f.ctx, res.BatchID)
	require.NoError(t, err)
	wb, err := excelize.OpenReader(strings.NewReader(string(out)))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	rows, err := wb.GetRows("Errors")
	require.NoError(t, err)
	require.Equal(t, []string{"Row", "Field", "Error"}, rows[0])
	require.Equal(t, []string{"1", "name", "Missing required field: Name"}, rows[1])
}

func TestSchemasAndSuggest(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	schemas := f.svc.Schemas()
	require.Len(t, schemas, 5)
	require.Equal(t, schema.EntityType("customer"), schemas[0].EntityType)

	got, err := f.svc.SuggestMapping("invoice", []string{"Invoice #", "Amount", "Balance Due"})
	require.NoError(t, err)
	require.Equal(t, pairs("Invoice #", "invoiceNumber", "Amount", "total", "Balance Due", "amountDue"), got)

	_, err = f.svc.SuggestMapping("spaceship", nil)
	require.ErrorIs(t, err, schema.ErrUnknownEntityType)
}

type flakyErrors struct {
	importerror.Repository
	failures int
}

func (r *flakyErrors) CreateMany(ctx context.Context, errs []*importerror.ImportError) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset by peer")
	}
	return r.Repository.CreateMany(ctx, errs)
}

type flakyErrorStore struct {
	*persistence.MemoryStore
	errs *flakyErrors
}

func (s *flakyErrorStore) Errors() importerror.Repository { return s.errs }

func newFlakyErrorService(f *fixture, failures int, cfg services.Config) *services.ImportService {
	store := &flakyErrorStore{
		MemoryStore: f.store,
		errs:        &flakyErrors{Repository: f.store.Errors(), failures: failures},
	}
	return services.NewImportService(schema.Default(), store, f.store, f.progress, nil, cfg)
}

func TestRunImport_ErrorFlushFailureKeepsRecordsForRetry(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	svc := newFlakyErrorService(f, 1, services.Config{ChunkSize: 1, ErrorFlushSize: 1})

	res, err := svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,a@example.com,\nBob,bob@example.com,\n,c@example.com,\n"))
	require.NoError(t, err)
	require.Equal(t, 2, res.ErrorCount)
	require.Equal(t, importbatch.StatusCompleted, res.Status)

	errs, err := svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 2)
	require.Equal(t, 1, errs[0].RowNumber())
	require.Equal(t, 3, errs[1].RowNumber())
}

func TestRunImport_FinalErrorFlushFailureIsReturned(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	svc := newFlakyErrorService(f, 1000, services.DefaultConfig)

	res, err := svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\n,a@example.com,\nBob,bob@example.com,\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "persist 1 import errors")
	require.NotNil(t, res)
	require.Equal(t, 1, res.ErrorCount)
	require.Equal(t, importbatch.StatusCompleted, res.Status, "the batch is still finalized")

	batch, getErr := svc.GetBatch(f.ctx, res.BatchID)
	require.NoError(t, getErr)
	require.Equal(t, importbatch.StatusCompleted, batch.Status())
}

func TestRunImport_RowOfEmptyFieldsIsCountedAndNumbered(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	res, err := f.svc.RunImport(f.ctx, contactsDTO("Name,Email,Phone\nAnn,ann@example.com,\n,,\n\nBob,bob@example.com,\n"))
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalRows)
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 1, res.ErrorCount)

	errs, err := f.svc.GetErrors(f.ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, 2, errs[0].RowNumber())
	require.Equal(t, "Missing required field: Name", errs[0].Message())

	var bob *record.Record
	for _, r := range f.store.AllRecords("contact") {
		if r.Values["name"] == "Bob" {
			bob = &r
		}
	}
	require.NotNil(t, bob)
	require.Equal(t, 3, bob.RowNumber)
}

func TestRunImport_UnmappedRequiredFieldCreatesNoBatch(t *testing.T) {
	f := newFixture(t, services.DefaultConfig)
	dto := contactsDTO("Name,Email,Phone\nAnn,ann@example.com,\n")
	dto.Mapping = pairs("Email", "email")

	res, err := f.svc.RunImport(f.ctx, dto)
	require.Nil(t, res)
	var vErr *importerrs.ValidationError
	require.ErrorAs(t, err, &vErr)

	batches, err := f.svc.ListBatches(f.ctx, services.ListParams{IncludeUndone: true})
	require.NoError(t, err)
	require.Empty(t, batches)
}
