package report

import (
	"fmt"

	"github.com/neuroplastio/rmi4touch/rmi4"
)

const DefaultQueueSize = 10

// Queue collects the reports of one service call. Once full, further
// reports are dropped.
type Queue struct {
	reports []Report
	limit   int
	dropped int
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultQueueSize
	}
	return &Queue{
		reports: make([]Report, 0, limit),
		limit:   limit,
	}
}

// Push appends r, returning ErrOutOfMemory when the queue is full.
func (q *Queue) Push(r Report) error {
	if len(q.reports) >= q.limit {
		q.dropped++
		return fmt.Errorf("%d reports queued: %w", q.limit, rmi4.ErrOutOfMemory)
	}
	q.reports = append(q.reports, r)
	return nil
}

func (q *Queue) Len() int {
	return len(q.reports)
}

func (q *Queue) Limit() int {
	return q.limit
}

// Dropped is the number of reports refused since the last Drain.
func (q *Queue) Dropped() int {
	return q.dropped
}

// Drain returns the queued reports and empties the queue.
func (q *Queue) Drain() []Report {
	out := q.reports
	q.reports = make([]Report, 0, q.limit)
	q.dropped = 0
	return out
}
