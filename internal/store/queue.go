package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jhmac/sneebly/internal/logging"
	"github.com/jhmac/sneebly/internal/types"
)

// QueueName identifies one of the four terminal/non-terminal spec
// directories a spec file can live in.
type QueueName string

const (
	QueueApproved  QueueName = "approved"
	QueuePending   QueueName = "pending"
	QueueCompleted QueueName = "completed"
	QueueFailed    QueueName = "failed"
)

// SpecQueue manages the lifecycle of spec JSON files across the four queue
// directories. Every transition is a single-writer atomic rename, per the
// ordering guarantee that spec directories are single-writer per spec id.
type SpecQueue struct {
	layout Layout
}

// NewSpecQueue constructs a SpecQueue bound to an already-opened Store.
func NewSpecQueue(s *Store) *SpecQueue {
	return &SpecQueue{layout: s.Layout}
}

func (q *SpecQueue) dirFor(name QueueName) string {
	switch name {
	case QueueApproved:
		return q.layout.ApprovedQueue
	case QueuePending:
		return q.layout.PendingQueue
	case QueueCompleted:
		return q.layout.Completed
	case QueueFailed:
		return q.layout.Failed
	default:
		return ""
	}
}

func specFileName(id string) string {
	return id + ".json"
}

// Enqueue writes a new spec into either the approved or pending queue,
// depending on the auto-approval decision made by the caller (the
// constraint solver decides safe-path vs owner-review).
func (q *SpecQueue) Enqueue(spec *types.Spec, queue QueueName) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("store: refusing to enqueue invalid spec: %w", err)
	}
	dir := q.dirFor(queue)
	if dir == "" {
		return fmt.Errorf("store: unknown queue %q", queue)
	}
	path := filepath.Join(dir, specFileName(spec.ID))
	if err := writeJSONAtomic(path, spec); err != nil {
		return err
	}
	logging.Store("enqueued spec %s into %s", spec.ID, queue)
	return nil
}

// Load reads a single spec by id from the given queue.
func (q *SpecQueue) Load(queue QueueName, id string) (*types.Spec, error) {
	dir := q.dirFor(queue)
	path := filepath.Join(dir, specFileName(id))
	var spec types.Spec
	if err := readJSON(path, &spec); err != nil {
		return nil, err
	}
	if spec.ID == "" {
		return nil, os.ErrNotExist
	}
	return &spec, nil
}

// List returns every spec currently in the given queue, sorted by id for
// deterministic iteration order (heartbeat and ELON both rely on stable
// draining order across ticks).
func (q *SpecQueue) List(queue QueueName) ([]*types.Spec, error) {
	dir := q.dirFor(queue)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list %s: %w", dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)

	specs := make([]*types.Spec, 0, len(ids))
	for _, id := range ids {
		spec, err := q.Load(queue, id)
		if err != nil {
			logging.StoreError("skipping unreadable spec %s in %s: %v", id, queue, err)
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Move atomically transitions a spec from one queue to another, updating
// its in-file status and iteration history before the move. This is the
// only way a spec's directory membership changes.
func (q *SpecQueue) Move(spec *types.Spec, from, to QueueName) error {
	fromPath := filepath.Join(q.dirFor(from), specFileName(spec.ID))
	toPath := filepath.Join(q.dirFor(to), specFileName(spec.ID))

	if err := writeJSONAtomic(toPath, spec); err != nil {
		return err
	}
	if err := os.Remove(fromPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s after move: %w", fromPath, err)
	}
	logging.Store("moved spec %s: %s -> %s", spec.ID, from, to)
	return nil
}

// Remove deletes a spec file from a queue without moving it elsewhere.
func (q *SpecQueue) Remove(queue QueueName, id string) error {
	path := filepath.Join(q.dirFor(queue), specFileName(id))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %s: %w", path, err)
	}
	return nil
}
