package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrClientSlow   = errors.New("client send queue full")
)

const (
	clientQueueSize = 64
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingEvery       = pongWait * 9 / 10
)

// Client is one WebSocket connection. Outgoing frames go through a bounded
// queue drained by writeLoop; Send never blocks, so one stalled reader cannot
// hold up a broadcast.
type Client struct {
	ConnID      string
	RemoteAddr  string
	ConnectedAt time.Time

	socket  *websocket.Conn
	queue   chan Frame
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
	log     *logging.Logger
}

// NewClient takes ownership of an upgraded connection. The peer must answer
// pings within pongWait or the next read fails.
func NewClient(conn *websocket.Conn, remoteAddr string, log *logging.Logger) *Client {
	c := &Client{
		ConnID:      uuid.NewString(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		socket:      conn,
		queue:       make(chan Frame, clientQueueSize),
		done:        make(chan struct{}),
		log:         log,
	}
	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

// Send queues f. A full queue drops the frame and returns ErrClientSlow.
func (c *Client) Send(f Frame) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.queue <- f:
		return nil
	default:
		c.dropped.Add(1)
		return ErrClientSlow
	}
}

// Dropped returns how many frames were discarded because the queue was full.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// writeLoop writes queued frames and keepalive pings until the client closes
// or a write fails.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		var err error
		select {
		case <-c.done:
			return
		case f := <-c.queue:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.socket.WriteJSON(f)
		case <-ping.C:
			err = c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			c.log.Debug().Err(err).Str("connId", c.ConnID).Msg("write failed; closing")
			c.Close()
			return
		}
	}
}

// ReadFrame reads and validates the next frame. Errors wrapping ErrBadFrame
// leave the connection usable.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(msg)
}

// Close is idempotent.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.socket.Close()
	})
	return err
}

// ClientRegistry tracks connected clients by connection ID.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.RemoteAddr).Int("clients", n).Msg("client connected")
}

func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Uint64("dropped", c.Dropped()).Msg("client disconnected")
	}
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues one event frame for every client and returns how many
// accepted it.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) int {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Warn().Err(err).Str("event", event).Msg("encoding broadcast")
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	sent := 0
	for _, c := range r.clients {
		if err := c.Send(f); err != nil {
			r.log.Debug().Err(err).Str("connId", c.ConnID).Str("event", event).Msg("broadcast skipped client")
			continue
		}
		sent++
	}
	return sent
}

// CloseAll disconnects and forgets every client.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
