package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postbase/internal/post/model"
)

func strptr(s string) *string { return &s }

func TestCreateAssignsVersionOne(t *testing.T) {
	s := NewStore()

	p, err := s.Create("Example", "Lorem ipsum")
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, "Example", p.Title)
	assert.False(t, p.UpdatedAt.IsZero())

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestGetUnknownID(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")

	updated, err := s.Update(p.ID, 1, strptr("Fooo"), strptr("dolor sit amet"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "Fooo", updated.Title)
	assert.Equal(t, "dolor sit amet", updated.Content)
}

func TestUpdateKeepsOmittedFields(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")

	updated, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Fooo", updated.Title)
	assert.Equal(t, "Lorem ipsum", updated.Content)
}

func TestUpdateStaleVersionDoesNotMutate(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")
	_, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
	require.NoError(t, err)

	_, err = s.Update(p.ID, 1, strptr("Bar"), nil)
	assert.ErrorIs(t, err, model.ErrVersionConflict)

	got, err := s.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fooo", got.Title)
	assert.Equal(t, int64(2), got.Version)
}

func TestDeleteTombstones(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")

	require.NoError(t, s.Delete(p.ID, 1))

	_, err := s.Get(p.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// The tombstone stays addressable for reindexing.
	all := s.Snapshot(true)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deleted)
	assert.Equal(t, int64(2), all[0].Version)

	assert.Empty(t, s.Snapshot(false))
}

func TestDeleteStaleVersion(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")
	_, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Delete(p.ID, 1), model.ErrVersionConflict)
	_, err = s.Get(p.ID)
	assert.NoError(t, err)
}

func TestMutationsOnTombstone(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")
	require.NoError(t, s.Delete(p.ID, 1))

	_, err := s.Update(p.ID, 2, strptr("Fooo"), nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.Delete(p.ID, 2), model.ErrNotFound)
}

func TestEventsEmittedInCommitOrder(t *testing.T) {
	s := NewStore()

	var mu sync.Mutex
	var events []model.MutationEvent
	s.OnMutation(func(ev model.MutationEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	p, _ := s.Create("Example", "Lorem ipsum")
	_, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(p.ID, 2))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, p.ID, ev.DocID)
		assert.Equal(t, int64(i+1), ev.Version)
	}
	assert.True(t, events[2].Deleted)
}

func TestFailedMutationEmitsNothing(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")

	var count int
	s.OnMutation(func(model.MutationEvent) { count++ })

	_, err := s.Update(p.ID, 99, strptr("Fooo"), nil)
	assert.ErrorIs(t, err, model.ErrVersionConflict)
	assert.Zero(t, count)
}

func TestConcurrentUpdatesSameIDSerialize(t *testing.T) {
	s := NewStore()
	p, _ := s.Create("Example", "Lorem ipsum")

	const workers = 16
	var wins, conflicts int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, model.ErrVersionConflict)
				conflicts++
			}
		}()
	}
	wg.Wait()

	// Exactly one update may win against expectedVersion 1.
	assert.Equal(t, int64(1), wins)
	assert.Equal(t, int64(workers-1), conflicts)

	got, _ := s.Get(p.ID)
	assert.Equal(t, int64(2), got.Version)
}

func TestConcurrentMutationsDistinctIDs(t *testing.T) {
	s := NewStore()
	a, _ := s.Create("A", "alpha")
	b, _ := s.Create("B", "beta")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int64) {
			defer wg.Done()
			s.Update(a.ID, v, nil, strptr("alpha"))
		}(int64(i + 1))
		go func(v int64) {
			defer wg.Done()
			s.Update(b.ID, v, nil, strptr("beta"))
		}(int64(i + 1))
	}
	wg.Wait()

	ga, _ := s.Get(a.ID)
	gb, _ := s.Get(b.ID)
	assert.GreaterOrEqual(t, ga.Version, int64(1))
	assert.GreaterOrEqual(t, gb.Version, int64(1))
}

type fakeStorage struct {
	mu    sync.Mutex
	saved map[string]model.Post
	posts []model.Post
}

func (f *fakeStorage) Save(p model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]model.Post)
	}
	f.saved[p.ID] = p
	return nil
}

func (f *fakeStorage) LoadAll() ([]model.Post, error) { return f.posts, nil }

func TestHydrate(t *testing.T) {
	stored := []model.Post{
		{ID: "a", Title: "A", Content: "alpha", Version: 3, UpdatedAt: time.Now()},
		{ID: "b", Title: "B", Content: "beta", Version: 2, UpdatedAt: time.Now(), Deleted: true},
	}
	s := NewStore()
	require.NoError(t, s.Hydrate(&fakeStorage{posts: stored}))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)

	_, err = s.Get("b")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Version checks work against hydrated state.
	_, err = s.Update("a", 1, strptr("x"), nil)
	assert.ErrorIs(t, err, model.ErrVersionConflict)
}

func TestFlushWorkerFinalFlushOnCancel(t *testing.T) {
	s := NewStore()
	sink := &fakeStorage{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	// Interval far beyond the test's lifetime: only the final
	// flush-on-cancel can save anything.
	go func() {
		s.FlushWorker(ctx, sink, time.Hour)
		close(done)
	}()

	p, err := s.Create("Example", "Lorem ipsum")
	require.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush worker did not stop after cancellation")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Contains(t, sink.saved, p.ID)
	assert.Equal(t, int64(1), sink.saved[p.ID].Version)
}

func TestFlushSavesDirtyPosts(t *testing.T) {
	s := NewStore()
	sink := &fakeStorage{}

	p, _ := s.Create("Example", "Lorem ipsum")
	s.flush(sink)

	require.Contains(t, sink.saved, p.ID)
	assert.Equal(t, int64(1), sink.saved[p.ID].Version)

	// Clean store flushes nothing new.
	s.flush(sink)
	assert.Len(t, sink.saved, 1)

	_, err := s.Update(p.ID, 1, strptr("Fooo"), nil)
	require.NoError(t, err)
	s.flush(sink)
	assert.Equal(t, int64(2), sink.saved[p.ID].Version)
}
