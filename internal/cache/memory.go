package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a rendered figure stays cached.
const DefaultTTL = 60 * time.Second

type memoryEntry struct {
	createdAt time.Time
	image     []byte
}

// Memory is an in-process figure cache with a fixed TTL.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory returns an empty cache; a non-positive ttl means DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{entries: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		if m.now().Before(entry.createdAt.Add(m.ttl)) {
			img := make([]byte, len(entry.image))
			copy(img, entry.image)
			return img, true, nil
		}
		delete(m.entries, key)
	}
	return nil, false, nil
}

func (m *Memory) Set(_ context.Context, key string, img []byte) error {
	stored := make([]byte, len(img))
	copy(stored, img)
	m.mu.Lock()
	m.entries[key] = memoryEntry{createdAt: m.now(), image: stored}
	m.mu.Unlock()
	return nil
}
