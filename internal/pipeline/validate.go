package pipeline

import (
	"github.com/pkg/errors"
)

const (
	fieldName           = "NAME"
	fieldEstablishments = "ESTAB"
)

// requiredFields are the columns every CBP response must carry.
var requiredFields = []string{fieldName, fieldEstablishments}

// headerIndex maps column names to their positions and checks that the
// required fields are present.
func headerIndex(header []interface{}) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name, ok := h.(string)
		if !ok {
			continue
		}
		idx[name] = i
	}
	for _, field := range requiredFields {
		if _, ok := idx[field]; !ok {
			return nil, errors.Wrapf(ErrMissingColumn, "missing required field: %s", field)
		}
	}
	return idx, nil
}

// validateRow checks a data row is long enough for every indexed field.
func validateRow(row []interface{}, idx map[string]int, rowNum int) error {
	for _, field := range requiredFields {
		if idx[field] >= len(row) {
			return errors.Wrapf(ErrMalformedRow, "row %d has %d cells, field %s at %d", rowNum, len(row), field, idx[field])
		}
	}
	if _, ok := row[idx[fieldName]].(string); !ok {
		return errors.Wrapf(ErrMalformedRow, "row %d: field %s must be a string, got %T", rowNum, fieldName, row[idx[fieldName]])
	}
	return nil
}
