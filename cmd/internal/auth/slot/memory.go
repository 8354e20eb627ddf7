package slot

import (
	"context"
	"log/slog"
	"sync"
)

// Memory is a process-local Slot. Raw lets tests plant arbitrary bytes.
type Memory struct {
	*codecSlot
	b *memoryBackend
}

type memoryBackend struct {
	mu  sync.Mutex
	val []byte
	ok  bool
}

// NewMemory returns an empty in-memory Slot.
func NewMemory(log *slog.Logger) *Memory {
	b := &memoryBackend{}
	return &Memory{codecSlot: newCodecSlot(log, DefaultKey, b), b: b}
}

// Raw replaces the stored bytes without validation.
func (m *Memory) Raw(b []byte) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.val = append([]byte(nil), b...)
	m.b.ok = true
}

// Stored reports whether any value is present.
func (m *Memory) Stored() bool {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	return m.b.ok
}

func (b *memoryBackend) get(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ok {
		return nil, false, nil
	}
	return append([]byte(nil), b.val...), true, nil
}

func (b *memoryBackend) set(ctx context.Context, v []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.val = append([]byte(nil), v...)
	b.ok = true
	return nil
}

func (b *memoryBackend) del(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.val = nil
	b.ok = false
	return nil
}

func (b *memoryBackend) describe() string { return "memory" }
