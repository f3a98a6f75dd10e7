package capture

import "time"

// Device is the exclusively owned handle to a granted capture source.
type Device interface {
	// Flush drains encoded chunks buffered by the device but not yet delivered.
	Flush() [][]byte
	Release() error
}

// Clock supplies wall-clock instants for elapsed accounting.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
