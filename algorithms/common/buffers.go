package common

// CircularBuffer is a fixed-capacity FIFO of float64 samples. Writing into a full
// buffer overwrites the oldest data, so it doubles as a sliding window over a stream.
type CircularBuffer struct {
	buffer   []float64
	size     int
	writePos int
	count    int
}

// NewCircularBuffer creates a new circular buffer
func NewCircularBuffer(size int) *CircularBuffer {
	if size < 1 {
		size = 1
	}
	return &CircularBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Push appends one sample, dropping the oldest one when full.
func (cb *CircularBuffer) Push(sample float64) {
	cb.buffer[cb.writePos] = sample
	cb.writePos = (cb.writePos + 1) % cb.size
	if cb.count < cb.size {
		cb.count++
	}
}

// Write appends data and returns the number of samples written
func (cb *CircularBuffer) Write(data []float64) int {
	for _, sample := range data {
		cb.Push(sample)
	}
	return len(data)
}

// Latest copies the newest min(len(dst), Len()) samples into dst in chronological
// order and returns how many were copied. The buffer is not consumed.
func (cb *CircularBuffer) Latest(dst []float64) int {
	n := len(dst)
	if n > cb.count {
		n = cb.count
	}
	start := (cb.writePos - n + cb.size) % cb.size
	for i := 0; i < n; i++ {
		dst[i] = cb.buffer[(start+i)%cb.size]
	}
	return n
}

// Len returns number of samples held
func (cb *CircularBuffer) Len() int {
	return cb.count
}

// Cap returns the fixed capacity
func (cb *CircularBuffer) Cap() int {
	return cb.size
}

// Clear empties the buffer
func (cb *CircularBuffer) Clear() {
	cb.writePos = 0
	cb.count = 0
}

// IsFull returns true if buffer is full
func (cb *CircularBuffer) IsFull() bool {
	return cb.count == cb.size
}

// IsEmpty returns true if buffer is empty
func (cb *CircularBuffer) IsEmpty() bool {
	return cb.count == 0
}
