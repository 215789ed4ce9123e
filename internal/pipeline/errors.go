package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal errors abort the run.
var (
	ErrInsufficientYears = errors.New("not enough CBP years in the requested range")
	ErrInsufficientData  = errors.New("need at least two years with data")
	ErrDuplicateRecord   = errors.New("duplicate municipality/year record")
)

// Per-year errors skip the year and the run continues.
var (
	ErrEmptyResponse = errors.New("empty response array")
	ErrNoRows        = errors.New("response has no data rows")
	ErrMissingColumn = errors.New("response header is missing a required column")
	ErrMalformedRow  = errors.New("malformed data row")
)

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	Year       int
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %d", e.StatusCode, e.Year)
}
