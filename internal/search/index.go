// Package search maintains a rebuildable secondary index over the post
// store. Full rebuilds produce a fresh generation that is swapped in
// atomically; the steady-state write path feeds single-event updates into
// the live generation so a search right after a write reflects it.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"postbase/internal/post/model"
	"postbase/pkg/logger"
)

type entry struct {
	post   model.Post
	tokens string // lowercased title + content
}

func entryFor(p model.Post) entry {
	return entry{
		post:   p,
		tokens: strings.ToLower(p.Title + " " + p.Content),
	}
}

// generation is one immutable-identity snapshot of the index. Entries keep
// tombstones (excluded from matches) so a late upsert cannot resurrect a
// deleted post.
type generation struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type Index struct {
	mu    sync.RWMutex
	gen   *generation // nil until the bootstrap rebuild finishes
	seq   atomic.Uint64
	codec *Codec

	// Events committed while a rebuild is in flight land in the old
	// generation, which the rebuild's snapshot may predate. They are
	// recorded here and replayed into the new generation before the swap.
	rebuildMu sync.Mutex
	rebuilds  int
	pending   map[string]model.MutationEvent
}

func NewIndex(cursorSecret string) *Index {
	return &Index{codec: NewCodec(cursorSecret)}
}

// SnapshotFunc supplies the full corpus, tombstones included.
type SnapshotFunc func(includeDeleted bool) []model.Post

// Reindex rebuilds the whole index from a store scan and swaps it in. A
// rebuild that was superseded by a newer one is discarded without touching
// the active generation; ctx cancellation abandons the scan.
func (i *Index) Reindex(ctx context.Context, snapshot SnapshotFunc) error {
	seq := i.seq.Add(1)
	start := time.Now()
	i.beginRebuild()
	defer i.endRebuild()

	next := &generation{entries: make(map[string]entry)}
	for _, p := range snapshot(true) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		next.entries[p.ID] = entryFor(p)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seq.Load() != seq {
		logger.Sugar.Infof("Reindex %d superseded, discarding", seq)
		return nil
	}

	// Replay events that committed after the snapshot was taken. Holding
	// i.mu excludes Apply, so nothing can slip between replay and swap.
	i.rebuildMu.Lock()
	for _, ev := range i.pending {
		upsert(next.entries, ev)
	}
	i.rebuildMu.Unlock()

	i.gen = next
	logger.Sugar.Infof("Reindexed %d entries in %s", len(next.entries), time.Since(start))
	return nil
}

func (i *Index) beginRebuild() {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()
	i.rebuilds++
	if i.pending == nil {
		i.pending = make(map[string]model.MutationEvent)
	}
}

func (i *Index) endRebuild() {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()
	i.rebuilds--
	if i.rebuilds == 0 {
		i.pending = nil
	}
}

// record stashes an event for replay when a rebuild is in flight. Callers
// hold at least i.mu.RLock, so recording cannot race the swap.
func (i *Index) record(ev model.MutationEvent) {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()
	if i.rebuilds == 0 {
		return
	}
	if existing, ok := i.pending[ev.DocID]; ok && existing.Version > ev.Version {
		return
	}
	i.pending[ev.DocID] = ev
}

// Apply upserts or tombstones one entry in the live generation. Events that
// arrive out of order (a rebuild racing the write path) are dropped when
// the indexed version is already newer.
func (i *Index) Apply(ev model.MutationEvent) {
	i.mu.RLock()
	gen := i.gen
	i.record(ev)
	i.mu.RUnlock()

	if gen == nil {
		// The bootstrap rebuild scans the store and will pick this up.
		return
	}

	gen.mu.Lock()
	defer gen.mu.Unlock()
	upsert(gen.entries, ev)
}

// upsert applies one event to an entry map, dropping it when the indexed
// version is already newer (a replay or a rebuild racing the write path).
func upsert(entries map[string]entry, ev model.MutationEvent) {
	if existing, ok := entries[ev.DocID]; ok && existing.post.Version > ev.Version {
		return
	}
	entries[ev.DocID] = entryFor(model.Post{
		ID:        ev.DocID,
		Title:     ev.Title,
		Content:   ev.Content,
		Version:   ev.Version,
		UpdatedAt: ev.UpdatedAt,
		Deleted:   ev.Deleted,
	})
}

// Query returns one page of matching live posts, most recently updated
// first with id as tie-break, plus a resume cursor and the total match
// count in the generation that served the page. An empty filterText
// matches everything. pageSize is ignored when a cursor is supplied; the
// cursor carries the page size it was issued with.
func (i *Index) Query(filterText, cursorToken string, pageSize int) (model.PostPage, error) {
	gen := i.current()
	if gen == nil {
		return model.PostPage{}, model.ErrIndexUnavailable
	}

	fp := Fingerprint(filterText)
	var after *cursor
	if cursorToken != "" {
		cur, err := i.codec.Decode(cursorToken)
		if err != nil {
			return model.PostPage{}, err
		}
		if cur.Filter != fp {
			return model.PostPage{}, model.ErrInvalidCursor
		}
		after = &cur
		pageSize = cur.PageSize
	}
	if pageSize <= 0 {
		return model.PostPage{}, model.ErrInvalidCursor
	}

	needle := strings.ToLower(strings.TrimSpace(filterText))

	gen.mu.RLock()
	matches := make([]model.Post, 0, len(gen.entries))
	for _, e := range gen.entries {
		if e.post.Deleted {
			continue
		}
		if needle != "" && !strings.Contains(e.tokens, needle) {
			continue
		}
		matches = append(matches, e.post)
	}
	gen.mu.RUnlock()

	sort.Slice(matches, func(a, b int) bool {
		return sortsBefore(matches[a], matches[b])
	})

	page := model.PostPage{MatchedCount: len(matches)}

	start := 0
	if after != nil {
		// Resume strictly after the cursor position. The cursor's post may
		// have been mutated or deleted meanwhile; position on the sort key
		// itself, not on the post.
		boundary := model.Post{ID: after.DocID, UpdatedAt: time.Unix(0, after.SortKey)}
		start = sort.Search(len(matches), func(n int) bool {
			return sortsBefore(boundary, matches[n])
		})
	}

	end := start + pageSize
	if end > len(matches) {
		end = len(matches)
	}
	if start < end {
		page.Items = matches[start:end]
	}
	if end < len(matches) {
		last := matches[end-1]
		page.NextCursor = i.codec.Encode(cursor{
			SortKey:  last.UpdatedAt.UnixNano(),
			DocID:    last.ID,
			PageSize: pageSize,
			Filter:   fp,
		})
	}
	return page, nil
}

// Ready reports whether a generation is active yet.
func (i *Index) Ready() bool {
	return i.current() != nil
}

func (i *Index) current() *generation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.gen
}

// sortsBefore is the total order of the index: UpdatedAt descending, id
// descending as tie-break.
func sortsBefore(a, b model.Post) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID > b.ID
}
