package insidetz

import (
	"errors"
	"fmt"
)

// ErrInvalidSnapshot is matched by every SnapshotError.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// SnapshotError reports a malformed snapshot rejected at construction time.
type SnapshotError struct {
	// Op is the builder rejecting the snapshot, eg "exactindex"
	Op string
	// Index is the position of the offending timezone or tile key, -1 when not relevant
	Index  int
	Reason string
}

func (e *SnapshotError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: invalid snapshot: %s", e.Op, e.Reason)
	}

	return fmt.Sprintf("%s: invalid snapshot at #%d: %s", e.Op, e.Index, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidSnapshot) true.
func (e *SnapshotError) Is(target error) bool {
	return target == ErrInvalidSnapshot
}
