// Package realtime fans bus updates out to browsers and keeps the latest position per bus.
package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/ukydev/bus-tracker/internal/models"
	"github.com/ukydev/bus-tracker/internal/sim"
)

// Latest remembers the newest update of every bus. It is a broadcaster so it can sit
// next to the hub and the broker in a sim.Fanout.
type Latest struct {
	topics sim.Topics

	mu      sync.RWMutex
	updates map[string]models.BusUpdate
}

// NewLatest creates an empty cache listening on the global topic.
func NewLatest(topics sim.Topics) *Latest {
	return &Latest{topics: topics, updates: make(map[string]models.BusUpdate)}
}

// Publish records payload when it is a bus update on the global topic.
func (l *Latest) Publish(_ context.Context, topic string, payload any) error {
	if topic != l.topics.Global() {
		return nil
	}
	u, ok := payload.(models.BusUpdate)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, seen := l.updates[u.BusID]; seen && prev.Timestamp.After(u.Timestamp) {
		return nil
	}
	l.updates[u.BusID] = u
	return nil
}

// Latest returns the newest update of one bus.
func (l *Latest) Latest(busID string) (models.BusUpdate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.updates[busID]
	return u, ok
}

// All returns the newest update of every bus ordered by bus id.
func (l *Latest) All() []models.BusUpdate {
	l.mu.RLock()
	out := make([]models.BusUpdate, 0, len(l.updates))
	for _, u := range l.updates {
		out = append(out, u)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BusID < out[j].BusID })
	return out
}
