package main

import (
	"errors"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
	"github.com/iota-uz/iota-import/modules/imports/domain/schema"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitConflict   = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// classify assigns an exit code to an error coming out of the import service.
// fallback is used for anything outside the import error taxonomy.
func classify(err error, fallback int) error {
	if err == nil {
		return nil
	}
	var (
		validation   *importerrs.ValidationError
		parseErr     *importerrs.ParseError
		notFound     *importerrs.NotFoundError
		invalidState *importerrs.InvalidStateError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &parseErr), errors.Is(err, schema.ErrUnknownEntityType):
		return withCode(exitValidation, err)
	case errors.As(err, &notFound):
		return withCode(exitUsage, err)
	case errors.As(err, &invalidState):
		return withCode(exitConflict, err)
	}
	return withCode(fallback, err)
}
