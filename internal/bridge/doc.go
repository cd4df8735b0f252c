// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package bridge hands ready events from the dispatch goroutine to callbacks.
//
// It owns two process-level concerns:
//   - the callback sink: a named target resolved once per process and cached
//     after the first successful lookup
//   - the blocking section: the host runtime lock is released while the
//     dispatch goroutine is parked in the multiplexer and reacquired before
//     any callback runs
package bridge
