package ledger

import (
	"errors"
	"fmt"

	"github.com/danangw/duitku/internal/domain"
)

// ErrMissingContext marks a request rejected before any write: an
// unresolvable account, an absent investment symbol, or similar.
var ErrMissingContext = errors.New("missing required context")

// ErrUnknownKind is returned for a transaction kind outside the five
// recognized values.
var ErrUnknownKind = errors.New("unknown transaction kind")

// PartialWriteError reports a multi-entry sequence that failed after some
// entries were already written. The written entries are listed so manual
// reconciliation is possible; the sequence is never auto-retried, since a
// retry could double-write what already succeeded.
type PartialWriteError struct {
	Written []domain.Entry
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial ledger write: %d entries written before failure: %v", len(e.Written), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
