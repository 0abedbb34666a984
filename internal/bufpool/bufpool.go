// Package bufpool provides tiered byte-slice pools for MTP container I/O.
//
// Three size classes cover the traffic a responder sees:
//   - Container buffers (default 512B): command, response and event
//     containers and small datasets such as ObjectInfo.
//   - Transfer buffers (default 16KB): one transport transfer unit, used by
//     the codec to read from and write to the transport.
//   - Bulk buffers (default 256KB): file streaming during GetObject and
//     SendObject.
//
// Larger requests are allocated directly and never pooled.
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

const (
	DefaultContainerSize = 512
	DefaultTransferSize  = 16 << 10
	DefaultBulkSize      = 256 << 10
)

// Pool hands out byte slices from the smallest size class that fits.
type Pool struct {
	classes [3]class
}

type class struct {
	size int
	pool sync.Pool
}

// Config overrides the size classes. Zero values keep the defaults.
type Config struct {
	ContainerSize int
	TransferSize  int
	BulkSize      int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		ContainerSize: DefaultContainerSize,
		TransferSize:  DefaultTransferSize,
		BulkSize:      DefaultBulkSize,
	}
}

// NewPool creates a pool. A nil config uses the defaults.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.ContainerSize > 0 {
			c.ContainerSize = cfg.ContainerSize
		}
		if cfg.TransferSize > 0 {
			c.TransferSize = cfg.TransferSize
		}
		if cfg.BulkSize > 0 {
			c.BulkSize = cfg.BulkSize
		}
	}

	p := &Pool{}
	for i, size := range []int{c.ContainerSize, c.TransferSize, c.BulkSize} {
		cl := &p.classes[i]
		cl.size = size
		cl.pool.New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// Get returns a slice of exactly size bytes. Its capacity may be larger.
// Return it with Put when done.
func (p *Pool) Get(size int) []byte {
	for i := range p.classes {
		cl := &p.classes[i]
		if size <= cl.size {
			buf := *(cl.pool.Get().(*[]byte))
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the class matching its capacity. Slices that did not
// come from the pool are dropped.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for i := range p.classes {
		cl := &p.classes[i]
		if cap(buf) == cl.size {
			full := buf[:cl.size]
			cl.pool.Put(&full)
			return
		}
	}
}

var globalPool = NewPool(nil)

// Get returns a buffer from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
