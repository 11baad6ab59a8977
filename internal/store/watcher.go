package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jhmac/sneebly/internal/logging"
)

// QueueWatcher watches the pending and approved spec-queue directories for
// externally dropped files (an owner hand-placing a spec, or a sibling
// process enqueueing one) and signals Changed so a caller can react sooner
// than the next heartbeat tick rather than purely polling List().
// Grounded on the teacher's MangleWatcher (internal/core/mangle_watcher.go):
// same fsnotify-plus-debounce shape, re-targeted from .mg file edits onto
// queue-directory file drops.
type QueueWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	debounceMap map[string]time.Time
	debounceDur time.Duration
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}

	Changed chan QueueName
}

// NewQueueWatcher watches layout.PendingQueue and layout.ApprovedQueue.
func NewQueueWatcher(layout Layout) (*QueueWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(layout.PendingQueue); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(layout.ApprovedQueue); err != nil {
		w.Close()
		return nil, err
	}

	return &QueueWatcher{
		watcher:     w,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		Changed:     make(chan QueueName, 8),
	}, nil
}

// Start begins watching in a background goroutine. Non-blocking.
func (qw *QueueWatcher) Start(ctx context.Context) {
	qw.mu.Lock()
	if qw.running {
		qw.mu.Unlock()
		return
	}
	qw.running = true
	qw.mu.Unlock()

	go qw.loop(ctx)
}

func (qw *QueueWatcher) loop(ctx context.Context) {
	defer close(qw.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-qw.stopCh:
			return
		case event, ok := <-qw.watcher.Events:
			if !ok {
				return
			}
			qw.handle(event)
		case err, ok := <-qw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryStore).Error("queue watcher error: %v", err)
		}
	}
}

func (qw *QueueWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	qw.mu.Lock()
	last, seen := qw.debounceMap[event.Name]
	now := time.Now()
	if seen && now.Sub(last) < qw.debounceDur {
		qw.mu.Unlock()
		return
	}
	qw.debounceMap[event.Name] = now
	qw.mu.Unlock()

	queue := QueuePending
	if strings.Contains(filepath.ToSlash(event.Name), "/approved-queue/") {
		queue = QueueApproved
	}

	select {
	case qw.Changed <- queue:
	default:
		// Channel full: a pending drain will still pick this up via List().
	}
}

// Stop halts the watcher and releases its OS-level file handles.
func (qw *QueueWatcher) Stop() {
	qw.mu.Lock()
	if !qw.running {
		qw.mu.Unlock()
		return
	}
	qw.running = false
	qw.mu.Unlock()

	close(qw.stopCh)
	<-qw.doneCh
	qw.watcher.Close()
}
