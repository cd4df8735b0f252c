// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"fmt"

	"github.com/momentics/hioload-ev/api"
)

// CallbackError reports a callback failure surfaced by the dispatch loop.
// Events processed before the failure are fully accounted for; events still
// queued run on the next loop call.
type CallbackError struct {
	ID   uint64
	Fd   int
	What api.Condition
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("event %d (fd %d, %s): callback: %v", e.ID, e.Fd, e.What, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

func opError(op string, code api.ErrorCode, err error) error {
	return api.OpError(op, code, err)
}

func invalidArgument(op, msg string) error {
	e := api.NewError(api.ErrCodeInvalidArgument, msg)
	e.Op = op
	return e
}
