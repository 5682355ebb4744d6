package graph

import "errors"

var (
	// ErrFeedUnavailable is returned when the finding feed could not be read.
	// The caller treats the investigation as having zero findings until the
	// next successful fetch.
	ErrFeedUnavailable = errors.New("finding feed unavailable")

	ErrNodeNotFound = errors.New("node not found")

	// ErrNotSearchable is returned when a pivot is requested on a node that
	// carries no searchable identifier.
	ErrNotSearchable = errors.New("node is not a searchable identifier")

	ErrInvalidDepth = errors.New("traversal depth must be at least 1")
)
