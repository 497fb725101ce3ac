package rooms

import (
	"sync"

	"carbid/pkg/logger"
)

// Subscriber is a delivery handle for one real-time connection. Send must be
// non-blocking and best-effort; the registry never owns the connection's
// lifecycle, only this back-reference for delivery.
type Subscriber interface {
	ID() string
	Send(event any)
}

// Registry tracks which connections are watching each auction room and fans
// events out to them. All rooms share one registry; the internal map is the
// only shared state and is guarded by the registry's own mutex.
type Registry struct {
	mu    sync.Mutex
	rooms map[int64]map[string]Subscriber
	log   *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		rooms: make(map[int64]map[string]Subscriber),
		log:   log,
	}
}

// Join adds the subscriber to the auction's room, creating the room for an
// unseen auction id. Joining twice is a no-op.
func (r *Registry) Join(auctionID int64, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[auctionID]
	if !ok {
		room = make(map[string]Subscriber)
		r.rooms[auctionID] = room
	}
	room[sub.ID()] = sub
}

// Leave removes the subscriber from the auction's room. Leaving a room the
// subscriber is not in, or a room that does not exist, is a no-op.
func (r *Registry) Leave(auctionID int64, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[auctionID]
	if !ok {
		return
	}
	delete(room, sub.ID())
	if len(room) == 0 {
		delete(r.rooms, auctionID)
	}
}

// LeaveAll removes the subscriber from every room it is in. Called on
// disconnect so a closed connection never lingers in a subscriber set.
func (r *Registry) LeaveAll(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for auctionID, room := range r.rooms {
		delete(room, sub.ID())
		if len(room) == 0 {
			delete(r.rooms, auctionID)
		}
	}
}

// Broadcast delivers the event to every current subscriber of the room.
// Delivery is fire-and-forget: a failed or slow subscriber never affects the
// others and never aborts the broadcast.
func (r *Registry) Broadcast(auctionID int64, event any) {
	for _, sub := range r.snapshot(auctionID) {
		sub.Send(event)
	}
}

// EndAuction broadcasts the final event to the room and then removes the room
// entirely. A later join against the same auction id starts a fresh, empty
// room with no residual subscribers.
func (r *Registry) EndAuction(auctionID int64, event any) {
	r.mu.Lock()
	room := r.rooms[auctionID]
	delete(r.rooms, auctionID)
	r.mu.Unlock()

	for _, sub := range room {
		sub.Send(event)
	}
	r.log.Info("Auction room closed", "auction_id", auctionID, "subscribers", len(room))
}

// RoomSize reports the current subscriber count for an auction.
func (r *Registry) RoomSize(auctionID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[auctionID])
}

func (r *Registry) snapshot(auctionID int64) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[auctionID]
	subs := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	return subs
}
