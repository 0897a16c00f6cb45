package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/hatchmark-backend/internal/types"
)

type memoryMsg struct {
	job       types.WatermarkJob
	receives  int
	visibleAt time.Time
	inflight  bool
}

// MemoryQueue mirrors the redis queue semantics in-process. Used by
// tests and by local runs without a broker.
type MemoryQueue struct {
	mu          sync.Mutex
	maxReceives int
	order       []string
	msgs        map[string]*memoryMsg
	dead        []types.WatermarkJob
}

func NewMemoryQueue(maxReceives int) *MemoryQueue {
	if maxReceives <= 0 {
		maxReceives = 5
	}
	return &MemoryQueue{
		maxReceives: maxReceives,
		msgs:        make(map[string]*memoryMsg),
	}
}

func (q *MemoryQueue) Send(_ context.Context, job types.WatermarkJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.msgs[id] = &memoryMsg{job: job}
	q.order = append(q.order, id)
	return nil
}

func (q *MemoryQueue) Receive(_ context.Context, maxCount int, visibility time.Duration) ([]Delivery, error) {
	if maxCount <= 0 {
		maxCount = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var out []Delivery
	var keep []string
	for _, id := range q.order {
		m, ok := q.msgs[id]
		if !ok {
			continue
		}
		if m.inflight && now.Before(m.visibleAt) {
			keep = append(keep, id)
			continue
		}
		// Expired redeliveries hit the receive budget here, same as
		// the redis reclaim pass.
		if m.inflight && m.receives >= q.maxReceives {
			q.dead = append(q.dead, m.job)
			delete(q.msgs, id)
			continue
		}
		if len(out) >= maxCount {
			keep = append(keep, id)
			continue
		}
		m.receives++
		m.inflight = true
		m.visibleAt = now.Add(visibility)
		keep = append(keep, id)
		out = append(out, Delivery{Job: m.job, Receipt: id, ReceiveCount: m.receives})
	}
	q.order = keep
	return out, nil
}

func (q *MemoryQueue) Delete(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.msgs, receipt)
	return nil
}

// Len reports messages still tracked, inflight included.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// DeadLetters returns a copy of the jobs that exhausted their budget.
func (q *MemoryQueue) DeadLetters() []types.WatermarkJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.WatermarkJob, len(q.dead))
	copy(out, q.dead)
	return out
}
