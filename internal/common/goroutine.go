// -----------------------------------------------------------------------
// Safe execution - panic-protected wrappers for scheduled work
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// recoveredPanics counts panics absorbed by SafeRun
var recoveredPanics int64

// GetRecoveredPanicCount returns the number of panics recovered by SafeRun
func GetRecoveredPanicCount() int64 {
	return atomic.LoadInt64(&recoveredPanics)
}

// SafeRun runs fn on the calling goroutine with panic recovery.
// Panics are logged and reported as false; they never crash the process.
//
// Example:
//
//	common.SafeRun(logger, "watch-tick", func() {
//	    runner.Run(ctx)
//	})
func SafeRun(logger arbor.ILogger, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&recoveredPanics, 1)
			ok = false

			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			stackTrace := string(buf[:n])

			if logger != nil {
				logger.Error().
					Str("task", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stackTrace).
					Msg("Recovered from panic - continuing")
			} else {
				fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stackTrace)
			}
		}
	}()

	fn()
	return true
}
