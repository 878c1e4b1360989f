// Package store is the authoritative, versioned post store. Mutations to
// the same id serialize on a per-record mutex; mutations to different ids
// run in parallel. Reads load an atomically published snapshot and never
// wait on writers. Every committed mutation is pushed synchronously to the
// registered sinks while the record lock is held, so sinks observe per-id
// events in commit order and a mutation only returns after its event is out.
package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"postbase/internal/post/model"
	"postbase/pkg/logger"
)

// Sink receives committed mutation events. Implementations must be fast and
// must not call back into the store for the same id.
type Sink func(model.MutationEvent)

// Saver persists one post snapshot; Loader hydrates the store at boot.
type Saver interface {
	Save(p model.Post) error
}

type Loader interface {
	LoadAll() ([]model.Post, error)
}

type record struct {
	mu   sync.Mutex // serializes mutations to this id
	post atomic.Pointer[model.Post]
}

type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	sinks   []Sink

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	now   func() time.Time
	newID func() string
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*record),
		dirty:   make(map[string]struct{}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// OnMutation registers a sink. Register everything before serving traffic;
// sinks are invoked in registration order.
func (s *Store) OnMutation(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Create inserts a new post at version 1. Ids are never reused: a fresh
// uuid is assigned on every call.
func (s *Store) Create(title, content string) (model.Post, error) {
	p := model.Post{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		Version:   1,
		UpdatedAt: s.now(),
	}

	rec := &record{}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	s.mu.Lock()
	s.records[p.ID] = rec
	s.mu.Unlock()

	rec.post.Store(&p)
	s.markDirty(p.ID)
	s.emit(model.EventFrom(p))
	return p, nil
}

// Get returns the latest committed version of the post. Tombstoned posts
// report ErrNotFound like missing ones.
func (s *Store) Get(id string) (model.Post, error) {
	rec := s.lookup(id)
	if rec == nil {
		return model.Post{}, model.ErrNotFound
	}
	p := *rec.post.Load()
	if p.Deleted {
		return model.Post{}, model.ErrNotFound
	}
	return p, nil
}

// Update applies an optimistic-concurrency mutation. Nil title/content keep
// the stored values. A stale expectedVersion fails with ErrVersionConflict
// and leaves the post untouched.
func (s *Store) Update(id string, expectedVersion int64, title, content *string) (model.Post, error) {
	rec := s.lookup(id)
	if rec == nil {
		return model.Post{}, model.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := *rec.post.Load()
	if p.Deleted {
		return model.Post{}, model.ErrNotFound
	}
	if p.Version != expectedVersion {
		return model.Post{}, model.ErrVersionConflict
	}

	if title != nil {
		p.Title = *title
	}
	if content != nil {
		p.Content = *content
	}
	p.Version++
	p.UpdatedAt = s.now()

	rec.post.Store(&p)
	s.markDirty(id)
	s.emit(model.EventFrom(p))
	return p, nil
}

// Delete tombstones the post. The record stays addressable internally so
// the id can never be recycled and reindexing still sees the tombstone.
func (s *Store) Delete(id string, expectedVersion int64) error {
	rec := s.lookup(id)
	if rec == nil {
		return model.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := *rec.post.Load()
	if p.Deleted {
		return model.ErrNotFound
	}
	if p.Version != expectedVersion {
		return model.ErrVersionConflict
	}

	p.Deleted = true
	p.Version++
	p.UpdatedAt = s.now()

	rec.post.Store(&p)
	s.markDirty(id)
	s.emit(model.EventFrom(p))
	return nil
}

// Snapshot copies the current state of every record, optionally including
// tombstones. Used by reindexing and by the flush worker.
func (s *Store) Snapshot(includeDeleted bool) []model.Post {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	posts := make([]model.Post, 0, len(recs))
	for _, rec := range recs {
		p := *rec.post.Load()
		if p.Deleted && !includeDeleted {
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

// Hydrate loads persisted posts, tombstones included, into an empty store.
func (s *Store) Hydrate(loader Loader) error {
	posts, err := loader.LoadAll()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range posts {
		p := p
		rec := &record{}
		rec.post.Store(&p)
		s.records[p.ID] = rec
	}
	logger.Sugar.Infof("Hydrated %d posts from storage", len(posts))
	return nil
}

// FlushWorker periodically saves dirty posts, retrying failed ids on the
// next tick, and performs a final flush when ctx is cancelled.
func (s *Store) FlushWorker(ctx context.Context, saver Saver, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush(saver)
		case <-ctx.Done():
			s.flush(saver)
			return
		}
	}
}

func (s *Store) flush(saver Saver) {
	s.dirtyMu.Lock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.dirty = make(map[string]struct{})
	s.dirtyMu.Unlock()

	for _, id := range ids {
		rec := s.lookup(id)
		if rec == nil {
			continue
		}
		p := *rec.post.Load()
		if err := saver.Save(p); err != nil {
			logger.Sugar.Errorf("Failed to save post %s: %v", id, err)
			s.markDirty(id) // retry on the next tick
			continue
		}
	}
	if len(ids) > 0 {
		logger.Sugar.Infof("Flushed %d posts", len(ids))
	}
}

func (s *Store) lookup(id string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

func (s *Store) markDirty(id string) {
	s.dirtyMu.Lock()
	s.dirty[id] = struct{}{}
	s.dirtyMu.Unlock()
}

func (s *Store) emit(ev model.MutationEvent) {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	for _, sink := range sinks {
		sink(ev)
	}
}
