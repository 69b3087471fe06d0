package dataset

import "errors"

var (
	// ErrBadIDX is returned when an IDX file has a wrong magic number,
	// unexpected dimensions or is truncated.
	ErrBadIDX = errors.New("malformed IDX file")

	// ErrBadLabel is returned when a label is outside [0, 9].
	ErrBadLabel = errors.New("label out of range [0, 9]")

	// ErrBadCSV is returned for malformed CSV rows.
	ErrBadCSV = errors.New("malformed CSV record")
)
