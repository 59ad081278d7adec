package importbatch

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

func newBatch() *ImportBatch {
	return New(uuid.New(), "contact", "contacts.csv", FormatCSV, []ColumnMapping{
		{SourceColumn: "Name", TargetField: "name"},
	})
}

func TestLifecycle_CompletedThenUndone(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	b := newBatch()
	require.Equal(t, StatusPending, b.Status())

	require.NoError(t, b.Start(now))
	require.Equal(t, StatusProcessing, b.Status())
	require.Equal(t, now, *b.StartedAt())

	b.SetTotalRows(3)
	b.RecordOutcome(2, 0)
	b.RecordOutcome(0, 1)
	require.NoError(t, b.Finalize(now.Add(time.Second)))
	require.Equal(t, StatusCompleted, b.Status())
	require.Equal(t, b.TotalRows(), b.SuccessCount()+b.ErrorCount())

	require.NoError(t, b.MarkUndone(now.Add(time.Minute)))
	require.Equal(t, StatusUndone, b.Status())
	require.NotNil(t, b.UndoneAt())

	err := b.MarkUndone(now.Add(2 * time.Minute))
	var stateErr *importerrs.InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, "undone", stateErr.From)
}

func TestFinalize_AllRowsFailed(t *testing.T) {
	b := newBatch()
	require.NoError(t, b.Start(time.Now()))
	b.SetTotalRows(2)
	b.RecordOutcome(0, 2)
	require.NoError(t, b.Finalize(time.Now()))
	require.Equal(t, StatusFailed, b.Status())
}

func TestFinalize_EmptyFileCompletes(t *testing.T) {
	b := newBatch()
	require.NoError(t, b.Start(time.Now()))
	require.NoError(t, b.Finalize(time.Now()))
	require.Equal(t, StatusCompleted, b.Status())
}

func TestFinalize_RejectsMismatchedCounts(t *testing.T) {
	b := newBatch()
	require.NoError(t, b.Start(time.Now()))
	b.SetTotalRows(5)
	b.RecordOutcome(3, 1)
	require.ErrorIs(t, b.Finalize(time.Now()), ErrCountsMismatch)
	require.Equal(t, StatusProcessing, b.Status())
}

func TestIllegalTransitions(t *testing.T) {
	b := newBatch()
	require.Error(t, b.MarkUndone(time.Now()), "pending batch cannot be undone")
	require.Error(t, b.Finalize(time.Now()), "pending batch cannot be finalized")

	require.NoError(t, b.Start(time.Now()))
	require.Error(t, b.Start(time.Now()))
	require.Error(t, b.MarkUndone(time.Now()), "processing batch cannot be undone")

	require.False(t, CanTransition(StatusUndone, StatusCompleted))
	require.False(t, CanTransition(StatusCompleted, StatusProcessing))
	require.True(t, CanTransition(StatusFailed, StatusUndone))
	require.ElementsMatch(t, []Status{StatusCompleted, StatusFailed}, Sources(StatusUndone))
}

func TestFail_ParseFailure(t *testing.T) {
	b := newBatch()
	require.NoError(t, b.Start(time.Now()))
	require.NoError(t, b.Fail(time.Now()))
	require.Equal(t, StatusFailed, b.Status())
	require.Zero(t, b.TotalRows())
}

func TestColumnMapping_IsSnapshot(t *testing.T) {
	mapping := []ColumnMapping{{SourceColumn: "Name", TargetField: "name"}}
	b := New(uuid.New(), "contact", "c.csv", FormatCSV, mapping)
	mapping[0].TargetField = "email"

	got := b.ColumnMapping()
	require.Equal(t, "name", got[0].TargetField)
	got[0].TargetField = "phone"
	require.Equal(t, "name", b.ColumnMapping()[0].TargetField)
}
