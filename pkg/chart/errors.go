package chart

import (
	"errors"
	"fmt"
)

// ErrUnknownKey is returned when a caller passes an entity-dimension key
// that is not in the current key index. Keys must always be obtained from
// the index itself; an unknown key is a caller bug, not a degraded state.
var ErrUnknownKey = errors.New("unknown entity-dimension key")

func NewUnknownKeyError(key EntityDimensionKey) error {
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

type ErrFetch = error

func NewFetchError(variableIDs []int, err error) ErrFetch {
	return fmt.Errorf("failed to fetch variables %v: %w", variableIDs, err)
}
