// Package socket fans committed mutation events out to every viewer of the
// affected post over websockets. A single Run loop owns the registry, so
// events flow to each subscriber in the order they were committed.
package socket

import (
	"encoding/json"

	"postbase/internal/post/model"
	"postbase/pkg/logger"
)

// SnapshotFunc loads the current state of a post so a subscriber starts
// from a known-good version instead of waiting for the next mutation.
type SnapshotFunc func(id string) (model.Post, error)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	events     chan model.MutationEvent

	// postID -> subscriberID -> client; owned by the Run goroutine.
	rooms map[string]map[string]*Client

	snapshot  SnapshotFunc
	queueSize int
}

func NewHub(snapshot SnapshotFunc, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan model.MutationEvent, 64),
		rooms:      make(map[string]map[string]*Client),
		snapshot:   snapshot,
		queueSize:  queueSize,
	}
}

// Publish hands a committed event to the hub. Safe to call from the store's
// sink path; delivery to slow subscribers never blocks it.
func (h *Hub) Publish(ev model.MutationEvent) {
	h.events <- ev
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) register(client *Client) {
	room := h.rooms[client.PostID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[client.PostID] = room
	}

	// Idempotent per (post, subscriber): a reconnect replaces the old
	// registration and its queue.
	if old, ok := room[client.SubscriberID]; ok && old != client {
		close(old.send)
	}
	room[client.SubscriberID] = client

	// Push the current state so the viewer is consistent immediately; any
	// replay below this version is discarded client-side.
	if p, err := h.snapshot(client.PostID); err == nil {
		h.send(client, model.EventFrom(p))
	} else {
		logger.Sugar.Warnf("No snapshot for post %s on subscribe: %v", client.PostID, err)
	}
}

func (h *Hub) unregister(client *Client) {
	room := h.rooms[client.PostID]
	if room == nil {
		return
	}
	// Only drop the registration if it still points at this client; a
	// reconnect may already have replaced it.
	if current, ok := room[client.SubscriberID]; ok && current == client {
		close(client.send)
		delete(room, client.SubscriberID)
	}
	if len(room) == 0 {
		delete(h.rooms, client.PostID)
	}
}

func (h *Hub) broadcast(ev model.MutationEvent) {
	for _, client := range h.rooms[ev.DocID] {
		h.send(client, ev)
	}
}

// send enqueues without ever blocking the hub. When a subscriber's queue is
// full the oldest undelivered frame is dropped in favor of the newest:
// events are idempotent by version, so latest-wins keeps the viewer
// consistent without intermediate diffs.
func (h *Hub) send(client *Client, ev model.MutationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling event for post %s: %v", ev.DocID, err)
		return
	}
	select {
	case client.send <- payload:
	default:
		select {
		case <-client.send:
			logger.Sugar.Warnf("Subscriber %s lagging on post %s, dropped oldest frame",
				client.SubscriberID, client.PostID)
		default:
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}
