package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/okian/zonetrack/internal/domain/types"
	"github.com/okian/zonetrack/internal/engine"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"
)

const (
	feedSendSize  = 16
	feedWriteWait = 10 * time.Second
	feedPongWait  = 60 * time.Second
	feedPingEvery = feedPongWait * 9 / 10
	feedReadLimit = 512
)

// Feed fans tick results out to websocket subscribers. Every message is a
// types.Snapshot. Subscribers that fall behind are disconnected rather than
// slowing the tick worker down.
type Feed struct {
	mu       sync.Mutex
	clients  map[*feedClient]struct{}
	closed   bool
	upgrader ws.Upgrader
	logger   logger.Logger
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		clients: make(map[*feedClient]struct{}),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Get().Named("feed"),
	}
}

// Publish implements the tick worker publisher. It never blocks.
func (f *Feed) Publish(ctx context.Context, res engine.Result) { //nolint:gocritic // hugeParam: Result is a value snapshot
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.clients) == 0 {
		return
	}
	msg, err := json.Marshal(types.SnapshotFromResult(res))
	if err != nil {
		f.logger.Error(ctx, "encode snapshot", logger.Error(err))
		return
	}
	for c := range f.clients {
		select {
		case c.send <- msg:
		default:
			f.logger.Warn(ctx, "dropping slow feed subscriber")
			f.removeLocked(c)
		}
	}
}

// Subscribers returns the number of connected clients.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for c := range f.clients {
		f.removeLocked(c)
	}
}

func (f *Feed) add(c *feedClient) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.clients[c] = struct{}{}
	metrics.UpdateFeedSubscribers(len(f.clients))
	return true
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(c)
}

func (f *Feed) removeLocked(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	c.stop()
	metrics.UpdateFeedSubscribers(len(f.clients))
}

// feedClient owns one connection. Only writeLoop writes to conn.
type feedClient struct {
	conn *ws.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newFeedClient(conn *ws.Conn) *feedClient {
	return &feedClient{
		conn: conn,
		send: make(chan []byte, feedSendSize),
		done: make(chan struct{}),
	}
}

func (c *feedClient) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *feedClient) writeLoop() {
	ping := time.NewTicker(feedPingEvery)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(feedWriteWait))
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and returns once the peer goes away.
func (c *feedClient) readLoop() {
	c.conn.SetReadLimit(feedReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// FeedHandler upgrades GET /ws to a websocket subscribed to the feed.
type FeedHandler struct {
	feed *Feed
	deps TrackDependencies
}

// NewFeedHandler creates a new feed handler. deps supplies the snapshot sent
// right after the upgrade.
func NewFeedHandler(feed *Feed, deps TrackDependencies) *FeedHandler {
	return &FeedHandler{feed: feed, deps: deps}
}

// HandleFeed handles GET /ws requests.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	conn, err := h.feed.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.feed.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := newFeedClient(conn)
	if initial, err := json.Marshal(h.deps.Snapshot(r.Context())); err == nil {
		c.send <- initial
	}
	if !h.feed.add(c) {
		c.stop()
		c.writeLoop()
		return
	}

	go c.writeLoop()
	c.readLoop()
	h.feed.remove(c)
}
