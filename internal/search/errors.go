package search

import (
	"errors"

	"sizefit/internal/codec"
)

var (
	// ErrInvalidTarget is returned for a negative target or an out of range
	// base quality. No search is performed.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrNoCandidateFound is returned when every encode attempt failed.
	ErrNoCandidateFound = errors.New("no candidate could be encoded")
	// ErrUnsupportedCombination is returned when the requested strategy does
	// not fit the codec.
	ErrUnsupportedCombination = codec.ErrUnsupportedCombination
)
