package logging

import (
	"bytes"
	"os"
	"sync"
)

// RingBuffer retains the tail of the log stream in memory so a crash
// handler can dump recent context. It implements io.Writer; whole write
// records are evicted oldest-first once the byte cap is exceeded.
type RingBuffer struct {
	mu      sync.Mutex
	records [][]byte
	total   int
	cap     int
}

// NewRingBuffer creates a ring buffer capped at the given byte size.
func NewRingBuffer(capBytes int) *RingBuffer {
	if capBytes <= 0 {
		capBytes = 1 * 1024 * 1024
	}
	return &RingBuffer{cap: capBytes}
}

// Write implements io.Writer. Each call is kept as one record.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rec := make([]byte, len(p))
	copy(rec, p)

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.records = append(rb.records, rec)
	rb.total += len(rec)
	for rb.total > rb.cap && len(rb.records) > 1 {
		rb.total -= len(rb.records[0])
		rb.records[0] = nil
		rb.records = rb.records[1:]
	}
	return len(p), nil
}

// Bytes returns the retained records in write order.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var buf bytes.Buffer
	buf.Grow(rb.total)
	for _, rec := range rb.records {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// DumpToFile writes the retained log tail to a file.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
