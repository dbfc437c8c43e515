package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when truth is false. Use it for programmer-error invariants
// only, never for data that arrives off the wire - malformed packets are
// handled (dropped) by the transport, not asserted on.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if !truth {
		msg := fmt.Sprintf("assertion failed(%s)", msg)
		// include the assertion location; with panic recovery it is
		// otherwise buried in the middle of the panicking stack.
		if _, file, line, ok := runtime.Caller(1); ok {
			msg = fmt.Sprintf("%s:%d: %s", file, line, msg)
		}
		panic(msg)
	}
}
