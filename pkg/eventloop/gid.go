package eventloop

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID extracts the current goroutine id from the stack header
// ("goroutine 12 [running]:"). It is the only way to tell "am I on the
// loop goroutine" without threading a marker through every callable, and
// it is cheap enough for dispatch-time checks.
func curGoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i >= 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// CurrentGoroutineID exposes the goroutine id for the signal package's
// re-entrant disconnect bookkeeping.
func CurrentGoroutineID() uint64 { return curGoroutineID() }
