package utils

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenRowID generates a unique row ID from the current UTC nanosecond
// timestamp and an atomic sequence number, formatted "row-<ts>-<seq>".
func GenRowID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("row-%d-%d", n, s)
}

// GenMessageID generates a unique server-side message ID, formatted
// "msg-<ts>-<seq>". Client-generated ids (UUIDs) win when present.
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}
