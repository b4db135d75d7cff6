package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryBackend keeps the blob in process memory. Read and write failures
// can be injected.
type MemoryBackend struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	readErr  error
	writeErr error
}

// NewMemoryBackend returns a backend preloaded with initial, which may be nil.
func NewMemoryBackend(initial []byte) *MemoryBackend {
	return &MemoryBackend{data: slices.Clone(initial)}
}

func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	return slices.Clone(b.data), nil
}

func (b *MemoryBackend) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = slices.Clone(data)
	return nil
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Close() error { return nil }

// FailReads makes every Read return err until cleared with nil.
func (b *MemoryBackend) FailReads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readErr = err
}

// FailWrites makes every Write return err until cleared with nil.
func (b *MemoryBackend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// Data returns a copy of the stored blob.
func (b *MemoryBackend) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.data)
}

// Writes returns how many writes were attempted.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
