package messages

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Insert(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, m)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.rows))
	copy(out, r.rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateSent.After(out[j].DateSent) })
	return out, nil
}

func (r *MemoryRepo) ListByCounterparty(ctx context.Context, counterparty string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.rows {
		if m.From == counterparty || m.To == counterparty {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateSent.Before(out[j].DateSent) })
	return out, nil
}
