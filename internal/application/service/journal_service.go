package service

import (
	"context"
	"sync"
	"time"

	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// JournalService ships lifecycle changes to a repository and/or publisher
// from background workers. Enqueueing never blocks the tick goroutine; when
// the buffer is full the entry is dropped.
type JournalService struct {
	repo        journal.Repository
	publisher   journal.Publisher
	logger      *logger.Logger
	entries     chan *journal.Entry
	workerCount int
	timeout     time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewJournalService creates a new JournalService. Either sink may be nil.
func NewJournalService(repo journal.Repository, publisher journal.Publisher, log *logger.Logger, bufferSize, workerCount int) *JournalService {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	return &JournalService{
		repo:        repo,
		publisher:   publisher,
		logger:      log,
		entries:     make(chan *journal.Entry, bufferSize),
		workerCount: workerCount,
		timeout:     5 * time.Second,
	}
}

// Start starts the workers
func (s *JournalService) Start(ctx context.Context) {
	s.logger.Infof("Starting journal with %d workers", s.workerCount)
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.runWorker(ctx, i+1)
	}
}

// Stop stops accepting entries and waits until the buffered ones are written
func (s *JournalService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.entries)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Journal stopped")
}

// Enqueue hands an entry to the workers
func (s *JournalService) Enqueue(e *journal.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		monitoring.RecordJournalEntry("dropped")
		return journal.ErrJournalClosed
	}

	select {
	case s.entries <- e:
		monitoring.RecordJournalEntry("queued")
		return nil
	default:
		monitoring.RecordJournalEntry("dropped")
		return journal.ErrJournalFull
	}
}

// Observer returns a unit observer recording state transitions and
// failures. frames stamps each entry with the current tick.
func (s *JournalService) Observer(frames unit.FrameSource) unit.Observer {
	return unit.ObserverFunc(func(c unit.Change) {
		if c.From == c.To && c.Err == nil && c.Reward == nil {
			return
		}

		u := c.Unit
		e := journal.NewEntry(u.Group(), u.Index(), string(u.Kind()), string(c.From), string(c.To), string(c.Cause), frames.Frame())
		if c.Err != nil {
			e.Error = c.Err.Error()
		}
		e.Failures = u.ConsecutiveFailures()

		if err := s.Enqueue(e); err != nil {
			s.logger.WithError(err).WithField("unit", u.String()).Debug("Journal entry dropped")
		}
	})
}

func (s *JournalService) runWorker(ctx context.Context, id int) {
	defer s.wg.Done()

	for e := range s.entries {
		s.write(ctx, id, e)
	}
}

func (s *JournalService) write(ctx context.Context, worker int, e *journal.Entry) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields := logger.Fields{
		"workerId": worker,
		"entryId":  e.ID,
		"group":    e.Group,
	}

	if s.repo != nil {
		if err := s.repo.Append(ctx, e); err != nil {
			monitoring.RecordJournalEntry("failed")
			s.logger.WithError(err).WithFields(fields).Error("Failed to store journal entry")
			return
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, e); err != nil {
			monitoring.RecordJournalEntry("failed")
			s.logger.WithError(err).WithFields(fields).Error("Failed to publish journal entry")
			return
		}
	}
	monitoring.RecordJournalEntry("written")
}
