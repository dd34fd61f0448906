package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"drawsync/internal/models"
)

// ChatArchiver persists chat events through a fixed worker pool so the
// hub's event loop never blocks on the database. The queue is bounded;
// when it is full the event is dropped from the archive (the live room
// history and broadcast are unaffected - the archive is best-effort).
type ChatArchiver struct {
	chatRepo ChatRepository

	jobs    chan *models.ChatRecord
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewChatArchiver creates the archiver but does not start its workers
func NewChatArchiver(chatRepo ChatRepository, numWorkers, queueSize int) *ChatArchiver {
	ctx, cancel := context.WithCancel(context.Background())

	return &ChatArchiver{
		chatRepo: chatRepo,
		jobs:     make(chan *models.ChatRecord, queueSize),
		workers:  numWorkers,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start spawns the worker goroutines
func (s *ChatArchiver) Start() {
	log.Printf("🔧 Starting chat archiver with %d workers", s.workers)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	log.Println("✓ Chat archiver started")
}

func (s *ChatArchiver) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case record, ok := <-s.jobs:
			if !ok {
				return
			}

			if err := s.chatRepo.Store(context.Background(), record); err != nil {
				log.Printf("  Archiver worker %d error: %v", id, err)
			}
		}
	}
}

// Archive enqueues a chat event for persistence. Never blocks the caller:
// a full queue means the record is skipped.
func (s *ChatArchiver) Archive(ev *models.Event) error {
	if ev.Type != models.EventChat {
		return fmt.Errorf("archiver only accepts chat events, got %q", ev.Type)
	}

	select {
	case s.jobs <- models.ChatRecordFromEvent(ev):
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("archiver is shutting down")
	default:
		return fmt.Errorf("archive queue full, dropping chat record %s", ev.ID)
	}
}

// QueueLength returns the number of pending records
func (s *ChatArchiver) QueueLength() int {
	return len(s.jobs)
}

// Shutdown stops accepting records and waits for in-flight writes
func (s *ChatArchiver) Shutdown() {
	log.Println("🛑 Shutting down chat archiver...")

	close(s.jobs)
	s.wg.Wait()
	s.cancel()

	log.Println("✓ Chat archiver shutdown complete")
}
