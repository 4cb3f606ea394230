package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors for store and strategy construction.
var (
	ErrUnknownKind      = errors.New("unknown memory strategy kind")
	ErrMissingCompactor = errors.New("strategy requires a compactor")
	ErrInvalidWindow    = errors.New("window size must be at least 1")
)

// CompactionError reports a failed remote compaction during Write. The
// generation that triggered the write already succeeded and the strategy's
// previously committed state is intact, so callers treat this as non-fatal:
// log it and move on with slightly staler context.
type CompactionError struct {
	Kind Kind
	Err  error
}

func (e *CompactionError) Error() string {
	return fmt.Sprintf("%s compaction failed: %v", e.Kind, e.Err)
}

func (e *CompactionError) Unwrap() error {
	return e.Err
}
