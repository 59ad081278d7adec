package importerrs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDuplicateError_FieldNameJoinsKeys(t *testing.T) {
	err := &DuplicateError{EntityType: "contact", Key: "email", Value: "a@x.com", Keys: []string{"email", "phone"}}
	require.Equal(t, "email/phone", err.FieldName())
	require.Equal(t, `Duplicate: contact with email "a@x.com" already exists`, err.Error())

	inFile := &DuplicateError{EntityType: "contact", Key: "phone", Value: "555", Keys: []string{"email", "phone"}, DuplicateOfRow: 2}
	require.Contains(t, inFile.Error(), "row 2 of this file")
}

func TestRowErrors_AreDiscoverableThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("chunk 3: %w", &MappingError{Field: "name", Label: "Name"})

	var rowErr RowError
	require.True(t, errors.As(wrapped, &rowErr))
	require.Equal(t, KindMapping, rowErr.Kind())
	require.Equal(t, "name", rowErr.FieldName())
	require.Equal(t, "Missing required field: Name", rowErr.Error())
}

func TestParseError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected NUL byte")
	err := &ParseError{Format: "csv", Reason: "binary content", Err: cause}
	require.ErrorIs(t, err, cause)
	require.Equal(t, "parse csv file: binary content: unexpected NUL byte", err.Error())
}
