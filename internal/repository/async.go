package repository

import (
	"errors"
	"sync"
	"time"

	"parkscan/internal/logger"
	"parkscan/internal/model"
)

// DefaultQueueSize bounds the writes an AsyncSessionRepository holds before
// callers start to wait.
const DefaultQueueSize = 256

var ErrJournalClosed = errors.New("session journal closed")

// AsyncSessionRepository hands journal writes to one worker goroutine so the
// caller never waits on storage. Writes apply in the order they were made
// and their errors are logged rather than returned. Reads wait for every
// earlier write before they run.
type AsyncSessionRepository struct {
	inner  SessionRepository
	logger *logger.Logger

	mu     sync.RWMutex // held for reading while sending on jobs
	closed bool
	jobs   chan func()
	done   chan struct{}
}

func NewAsyncSessionRepository(inner SessionRepository, queueSize int, log *logger.Logger) *AsyncSessionRepository {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	r := &AsyncSessionRepository{
		inner:  inner,
		logger: log,
		jobs:   make(chan func(), queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncSessionRepository) run() {
	defer close(r.done)
	for job := range r.jobs {
		job()
	}
}

func (r *AsyncSessionRepository) enqueue(job func()) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrJournalClosed
	}
	r.jobs <- job
	return nil
}

func (r *AsyncSessionRepository) Insert(s *model.Session) error {
	copied := *s
	return r.enqueue(func() {
		if err := r.inner.Insert(&copied); err != nil {
			r.logger.Warning("Failed to journal session %s: %v", copied.ID, err)
		}
	})
}

func (r *AsyncSessionRepository) Finish(id string, outcome model.Outcome, attempts int, endedAt time.Time) error {
	return r.enqueue(func() {
		if err := r.inner.Finish(id, outcome, attempts, endedAt); err != nil {
			r.logger.Warning("Failed to journal outcome of session %s: %v", id, err)
		}
	})
}

func (r *AsyncSessionRepository) SetDispatchStatus(id string, status model.DispatchStatus) error {
	return r.enqueue(func() {
		if err := r.inner.SetDispatchStatus(id, status); err != nil {
			r.logger.Warning("Failed to journal dispatch of session %s: %v", id, err)
		}
	})
}

func (r *AsyncSessionRepository) GetByID(id string) (*model.Session, error) {
	r.Flush()
	return r.inner.GetByID(id)
}

func (r *AsyncSessionRepository) GetRecent(limit int) ([]model.Session, error) {
	r.Flush()
	return r.inner.GetRecent(limit)
}

func (r *AsyncSessionRepository) GetStats() (*model.SessionStats, error) {
	r.Flush()
	return r.inner.GetStats()
}

func (r *AsyncSessionRepository) DeleteBefore(t time.Time) (int64, error) {
	r.Flush()
	return r.inner.DeleteBefore(t)
}

// Flush waits until every write queued before the call has been applied.
// It returns at once after Close.
func (r *AsyncSessionRepository) Flush() {
	flushed := make(chan struct{})
	if err := r.enqueue(func() { close(flushed) }); err != nil {
		return
	}
	<-flushed
}

// Close applies the queued writes and stops the worker. Later writes return
// ErrJournalClosed. Close is safe to call more than once.
func (r *AsyncSessionRepository) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	<-r.done
}
