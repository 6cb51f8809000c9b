package protocol

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoPort is returned when every port in the range is handed out.
var ErrNoPort = errors.New("no free port")

// PortAllocator hands out ports from a fixed range. It is shared by all
// concurrent runs and never hands out a port twice before it is released.
type PortAllocator struct {
	mu    sync.Mutex
	min   int
	max   int
	next  int
	inUse map[int]struct{}
}

// NewPortAllocator creates an allocator over [min, max].
func NewPortAllocator(min, max int) (*PortAllocator, error) {
	if min <= 0 || max > 65535 || min > max {
		return nil, fmt.Errorf("protocol: invalid port range %d-%d", min, max)
	}
	return &PortAllocator{min: min, max: max, next: min, inUse: make(map[int]struct{})}, nil
}

// Acquire reserves the next free port, scanning round-robin from the last one handed out.
func (a *PortAllocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	size := a.max - a.min + 1
	for i := 0; i < size; i++ {
		port := a.next
		a.next++
		if a.next > a.max {
			a.next = a.min
		}
		if _, busy := a.inUse[port]; !busy {
			a.inUse[port] = struct{}{}
			return port, nil
		}
	}
	return 0, ErrNoPort
}

// Release returns port to the pool. Releasing a free port is a no-op.
func (a *PortAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, port)
}

// InUse returns the number of reserved ports.
func (a *PortAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

// Size returns the number of ports in the range.
func (a *PortAllocator) Size() int {
	return a.max - a.min + 1
}
