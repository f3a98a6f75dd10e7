package device

import "sync"

// Remote stands in for a capture stream encoded by the client. The client
// keeps its own encoder buffer and hands unsent chunks over as pending_chunks
// on pause and stop, so Flush has nothing to drain.
type Remote struct {
	mu       sync.Mutex
	released bool
}

// NewRemote creates a remote device.
func NewRemote() *Remote {
	return &Remote{}
}

// Flush returns no chunks.
func (d *Remote) Flush() [][]byte { return nil }

// Release marks the stream handed back. It is safe to call more than once.
func (d *Remote) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	return nil
}

// Released reports whether Release has been called.
func (d *Remote) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
