package pivot

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyInput           = errors.New("empty input")
	ErrMalformedKey         = errors.New("malformed observation")
	ErrDuplicateObservation = errors.New("duplicate observation")
	ErrKeyCollision         = errors.New("composite key collision")
)

// KeyError reports a data-integrity failure tied to one observation key.
type KeyError struct {
	Kind     error
	Key      string
	PlayType string
	Row      int // zero-based position in the long-form input
	// FirstRow is the earlier row a duplicate or collision conflicts with.
	FirstRow int
}

func (e *KeyError) Error() string {
	at := fmt.Sprintf("row %d", e.Row)
	if e.paired() {
		at = fmt.Sprintf("rows %d and %d", e.FirstRow, e.Row)
	}
	if e.PlayType == "" {
		return fmt.Sprintf("%v at %s: %q", e.Kind, at, e.Key)
	}
	return fmt.Sprintf("%v at %s: %q / %q", e.Kind, at, e.Key, e.PlayType)
}

func (e *KeyError) paired() bool {
	return errors.Is(e.Kind, ErrDuplicateObservation) || errors.Is(e.Kind, ErrKeyCollision)
}

func (e *KeyError) Unwrap() error { return e.Kind }
