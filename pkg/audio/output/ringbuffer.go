// ABOUTME: Byte ring buffer for callback-driven audio playback
// ABOUTME: Decouples the writer's pacing from the device's pull rate
package output

import "sync"

// RingBuffer provides thread-safe circular buffer for PCM bytes
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	size     int
	count    int // Number of bytes currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in bytes)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, capacity),
		size:   capacity,
	}
}

// Write copies as much of p as fits, in whole units of align bytes
func (rb *RingBuffer) Write(p []byte, align int) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), rb.size-rb.count)
	if align > 1 {
		n -= n % align
	}

	first := min(n, rb.size-rb.writePos)
	copy(rb.buffer[rb.writePos:], p[:first])
	copy(rb.buffer, p[first:n])

	rb.writePos = (rb.writePos + n) % rb.size
	rb.count += n
	return n
}

// Read fills p from the buffer and returns the number of bytes read.
// The remainder of p is zero-filled on underrun.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), rb.count)
	first := min(n, rb.size-rb.readPos)
	copy(p, rb.buffer[rb.readPos:rb.readPos+first])
	copy(p[first:n], rb.buffer)

	rb.readPos = (rb.readPos + n) % rb.size
	rb.count -= n

	clear(p[n:])
	return n
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free bytes in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Reset discards all buffered data
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}
