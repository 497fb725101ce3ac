package serializer

import (
	"sync"

	biderrors "carbid/internal/bids/errors"
	"carbid/pkg/logger"
)

// Task is one unit of bid processing. It must run to a terminal outcome on
// its own; the serializer only guarantees ordering and forward progress.
type Task func()

// Serializer owns one FIFO queue per auction id. Within an auction, tasks
// execute strictly one at a time in submission order. Distinct auctions drain
// concurrently and never share a lock beyond the brief queue bookkeeping.
type Serializer struct {
	mu     sync.Mutex
	queues map[int64]*auctionQueue
	depth  int
	log    *logger.Logger
}

type auctionQueue struct {
	tasks    []Task
	draining bool
}

func New(depth int, log *logger.Logger) *Serializer {
	return &Serializer{
		queues: make(map[int64]*auctionQueue),
		depth:  depth,
		log:    log,
	}
}

// Submit appends the task to the auction's queue, creating the queue for an
// unseen auction id. If the queue is not already draining, a drain goroutine
// is started. Returns ErrQueueFull when the depth bound is hit so the caller
// can report the rejection to the sender instead of queuing unboundedly.
func (s *Serializer) Submit(auctionID int64, task Task) error {
	s.mu.Lock()
	q, ok := s.queues[auctionID]
	if !ok {
		q = &auctionQueue{}
		s.queues[auctionID] = q
	}

	if len(q.tasks) >= s.depth {
		s.mu.Unlock()
		return biderrors.ErrQueueFull
	}

	q.tasks = append(q.tasks, task)

	startDrain := !q.draining
	if startDrain {
		q.draining = true
	}
	s.mu.Unlock()

	if startDrain {
		go s.drain(auctionID)
	}
	return nil
}

// QueueLen reports the number of queued tasks for an auction, including the
// one currently executing.
func (s *Serializer) QueueLen(auctionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[auctionID]; ok {
		return len(q.tasks)
	}
	return 0
}

func (s *Serializer) drain(auctionID int64) {
	for {
		s.mu.Lock()
		q := s.queues[auctionID]
		if len(q.tasks) == 0 {
			q.draining = false
			delete(s.queues, auctionID)
			s.mu.Unlock()
			return
		}
		task := q.tasks[0]
		s.mu.Unlock()

		s.run(auctionID, task)

		// The entry leaves the queue only after its task reached a terminal
		// outcome, keeping removal in strict arrival order.
		s.mu.Lock()
		q.tasks = q.tasks[1:]
		s.mu.Unlock()
	}
}

// run executes one task, containing any panic so a single broken bid can
// never stall the remaining queued bids for the same auction.
func (s *Serializer) run(auctionID int64, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic in bid task, advancing queue",
				"auction_id", auctionID,
				"panic", r,
			)
		}
	}()
	task()
}
