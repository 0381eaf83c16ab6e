package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	outboxSize     = 64

	feedSize = 10
)

// Event types on the leaderboard feed.
const (
	EventLeaderboardUpdate  = "leaderboard_update"
	EventPing               = "ping"
	EventPong               = "pong"
	EventRequestLeaderboard = "request_leaderboard"
)

// LeaderboardSource is what the hub reads standings from.
type LeaderboardSource interface {
	GetLeaderboard(ctx context.Context, limit int, playerScore *int, scope string) (*LeaderboardResponse, error)
}

// Event is the envelope of every frame on the feed, in both directions.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub fans leaderboard updates out to websocket subscribers, grouped by
// scope. Run owns membership changes; readers take the lock.
type Hub struct {
	mu      sync.RWMutex
	byScope map[string]map[*subscriber]struct{}

	join    chan *subscriber
	leave   chan *subscriber
	changed chan string
	done    chan struct{}

	source LeaderboardSource
}

type subscriber struct {
	id     string
	scope  string
	conn   *websocket.Conn
	outbox chan []byte
	hub    *Hub
}

func NewHub(source LeaderboardSource) *Hub {
	return &Hub{
		byScope: make(map[string]map[*subscriber]struct{}),
		join:    make(chan *subscriber),
		leave:   make(chan *subscriber),
		changed: make(chan string, 64),
		done:    make(chan struct{}),
		source:  source,
	}
}

// Run serves membership changes and refresh requests until ctx is done, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for scope, subs := range h.byScope {
				for sub := range subs {
					close(sub.outbox)
				}
				delete(h.byScope, scope)
			}
			h.mu.Unlock()
			return

		case sub := <-h.join:
			h.mu.Lock()
			subs, ok := h.byScope[sub.scope]
			if !ok {
				subs = make(map[*subscriber]struct{})
				h.byScope[sub.scope] = subs
			}
			subs[sub] = struct{}{}
			n := len(subs)
			h.mu.Unlock()
			log.Printf("Leaderboard feed: %s joined %s (%d watching)", sub.id, sub.scope, n)
			go h.push(ctx, sub.scope, sub)

		case sub := <-h.leave:
			h.mu.Lock()
			if h.removeLocked(sub) {
				log.Printf("Leaderboard feed: %s left %s (%d watching)", sub.id, sub.scope, len(h.byScope[sub.scope]))
			}
			h.mu.Unlock()

		case scope := <-h.changed:
			if h.Subscribers(scope) > 0 {
				go h.push(ctx, scope, nil)
			}
		}
	}
}

// LeaderboardChanged schedules a push to the scope's subscribers. It never
// blocks; when the queue is full the request is dropped.
func (h *Hub) LeaderboardChanged(scope string) {
	select {
	case h.changed <- scope:
	default:
		log.Printf("Leaderboard feed: refresh queue full, dropping update for %s", scope)
	}
}

// Subscribers counts the connections watching scope.
func (h *Hub) Subscribers(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byScope[scope])
}

// Subscribe attaches an upgraded connection to scope. The current standings
// are sent once Run has registered it.
func (h *Hub) Subscribe(conn *websocket.Conn, scope string) {
	sub := &subscriber{
		id:     uuid.NewString(),
		scope:  scope,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		hub:    h,
	}
	select {
	case h.join <- sub:
	case <-h.done:
		conn.Close()
		return
	}

	go sub.writeLoop()
	go sub.readLoop()
}

// push sends the standings of scope to one subscriber, or to all of them
// when to is nil.
func (h *Hub) push(ctx context.Context, scope string, to *subscriber) {
	if h.source == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	board, err := h.source.GetLeaderboard(ctx, feedSize, nil, scope)
	if err != nil {
		log.Printf("Leaderboard feed: loading %s: %v", scope, err)
		return
	}
	frame, err := json.Marshal(Event{Type: EventLeaderboardUpdate, Payload: board})
	if err != nil {
		log.Printf("Leaderboard feed: encoding %s: %v", scope, err)
		return
	}

	if to != nil {
		h.deliver(frame, to)
		return
	}
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.byScope[scope]))
	for sub := range h.byScope[scope] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()
	h.deliver(frame, targets...)
}

// deliver queues frame on each subscriber's outbox. A subscriber that cannot
// keep up is dropped.
func (h *Hub) deliver(frame []byte, targets ...*subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range targets {
		if _, ok := h.byScope[sub.scope][sub]; !ok {
			continue
		}
		select {
		case sub.outbox <- frame:
		default:
			log.Printf("Leaderboard feed: %s is too slow, disconnecting", sub.id)
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) removeLocked(sub *subscriber) bool {
	subs := h.byScope[sub.scope]
	if _, ok := subs[sub]; !ok {
		return false
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.byScope, sub.scope)
	}
	close(sub.outbox)
	return true
}

func (s *subscriber) readLoop() {
	defer func() {
		select {
		case s.hub.leave <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Leaderboard feed: %s read: %v", s.id, err)
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("Leaderboard feed: %s sent malformed event: %v", s.id, err)
			continue
		}

		switch ev.Type {
		case EventPing:
			frame, _ := json.Marshal(Event{Type: EventPong})
			s.hub.deliver(frame, s)
		case EventRequestLeaderboard:
			go s.hub.push(context.Background(), s.scope, s)
		default:
			log.Printf("Leaderboard feed: %s sent unknown event %q", s.id, ev.Type)
		}
	}
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
