package height

import (
	"sync"

	"go.dedis.ch/sequencer/core/ordering"
)

// InMemory is a volatile height ledger. The height is lost when the process
// stops.
//
// - implements ordering.HeightLedger
type InMemory struct {
	sync.Mutex

	height uint64
	saves  []uint64
}

// MemOption is the type of option to create an in-memory ledger.
type MemOption func(*InMemory)

// WithHeight is an option to start the ledger at the given height.
func WithHeight(height uint64) MemOption {
	return func(l *InMemory) {
		l.height = height
	}
}

// NewInMemory creates a new in-memory ledger starting at zero.
func NewInMemory(opts ...MemOption) *InMemory {
	l := &InMemory{}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load implements ordering.HeightLedger. It returns the last saved height.
func (l *InMemory) Load() (uint64, error) {
	l.Lock()
	defer l.Unlock()

	return l.height, nil
}

// Save implements ordering.HeightLedger. It stores the height.
func (l *InMemory) Save(height uint64) error {
	l.Lock()
	l.height = height
	l.saves = append(l.saves, height)
	l.Unlock()

	return nil
}

// GetSaves returns the list of heights saved since the creation of the ledger.
func (l *InMemory) GetSaves() []uint64 {
	l.Lock()
	defer l.Unlock()

	return append([]uint64{}, l.saves...)
}

var (
	_ ordering.HeightLedger = DiskLedger{}
	_ ordering.HeightLedger = (*InMemory)(nil)
)
