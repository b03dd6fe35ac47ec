// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package channel maintains the real-time push connection to the
// marathon platform. It joins the admin dashboard broadcast group on
// connect and dispatches runnerLocation and raceCompleted events to
// subscribers, in arrival order, one event at a time.
//
// Subscriptions are registry-based: each registration returns a token
// and any number of subscribers may listen to the same event kind, so
// two mounted views never steal each other's updates.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/metrics"
	"github.com/kmoyo/raceday/internal/models"
)

// EventKind identifies a push event type on the wire.
type EventKind string

// Event kinds delivered to the admin dashboard broadcast group.
const (
	KindRunnerLocation EventKind = "runnerLocation"
	KindRaceCompleted  EventKind = "raceCompleted"

	// eventJoinAdminDashboard announces interest in the admin broadcast
	// group; sent on every successful (re)connect.
	eventJoinAdminDashboard = "joinAdminDashboard"
)

// Config holds channel connection settings.
type Config struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// HandshakeTimeout bounds the websocket dial. Default 10s.
	HandshakeTimeout time.Duration

	// PingInterval is the keep-alive cadence. Default 30s.
	PingInterval time.Duration

	// MaxReconnectBackoff caps the reconnect delay. Default 32s.
	MaxReconnectBackoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxReconnectBackoff <= 0 {
		c.MaxReconnectBackoff = 32 * time.Second
	}
}

// Token identifies one subscription for targeted removal.
type Token struct {
	kind EventKind
	id   uint64
}

// Kind returns the event kind the token subscribes to.
func (t Token) Kind() EventKind { return t.kind }

// wireMessage is the framing for every message on the channel.
type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Channel is the persistent duplex connection to the platform's push
// endpoint. One logical connection per dashboard session; Connect is
// idempotent and never creates a duplicate underlying connection.
type Channel struct {
	cfg Config

	connMu sync.RWMutex
	conn   *websocket.Conn

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	subMu         sync.RWMutex
	nextID        uint64
	locationSubs  map[uint64]func(models.RunnerLocationEvent)
	completedSubs map[uint64]func(models.RaceCompletedEvent)

	// now is the receipt-time source, replaceable in tests.
	now func() time.Time
}

// New creates a channel for the given endpoint. The connection is not
// established until Connect.
func New(cfg Config) *Channel {
	cfg.applyDefaults()
	return &Channel{
		cfg:           cfg,
		locationSubs:  make(map[uint64]func(models.RunnerLocationEvent)),
		completedSubs: make(map[uint64]func(models.RaceCompletedEvent)),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Connect establishes (or reuses) the underlying connection and
// announces interest in the admin dashboard broadcast group. Safe to
// call multiple times. An error means the initial dial failed; the
// listen loop is not started in that case and the caller may retry.
func (c *Channel) Connect(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return nil
	}

	if err := c.dial(ctx); err != nil {
		return err
	}

	c.stop = make(chan struct{})
	c.running = true
	c.wg.Add(2)
	go c.listen(ctx, c.stop)
	go c.pingLoop(c.stop)

	return nil
}

// dial opens the websocket and emits the join announcement.
func (c *Channel) dial(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("channel dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("channel dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	join := wireMessage{Event: eventJoinAdminDashboard}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel join failed: %w", err)
	}

	c.conn = conn
	metrics.ChannelConnected.Set(1)
	logging.Info().Str("url", c.cfg.URL).Msg("channel connected")
	return nil
}

// listen reads messages in arrival order and dispatches each to
// completion before reading the next. Reconnects with exponential
// backoff when the connection drops.
func (c *Channel) listen(ctx context.Context, stop chan struct{}) {
	defer c.wg.Done()

	reconnectDelay := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		if conn == nil {
			metrics.ChannelReconnects.Inc()
			logging.Info().Dur("delay", reconnectDelay).Msg("channel reconnecting")
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
			reconnectDelay *= 2
			if reconnectDelay > c.cfg.MaxReconnectBackoff {
				reconnectDelay = c.cfg.MaxReconnectBackoff
			}
			if err := c.dial(ctx); err != nil {
				logging.Warn().Err(err).Msg("channel reconnect failed")
				continue
			}
			reconnectDelay = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("channel closed by server")
			} else if ctx.Err() == nil && !stopped(stop) {
				logging.Warn().Err(err).Msg("channel read error")
			}
			c.closeConnection()
			continue
		}

		reconnectDelay = time.Second
		c.handleMessage(message)
	}
}

func stopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// handleMessage decodes one wire message and dispatches it. Handlers are
// invoked synchronously in subscription order so two reconciliation
// operations never interleave.
func (c *Channel) handleMessage(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.ChannelDroppedTotal.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Msg("channel message decode failed")
		return
	}

	switch EventKind(msg.Event) {
	case KindRunnerLocation:
		var ev models.RunnerLocationEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			metrics.ChannelDroppedTotal.WithLabelValues("decode").Inc()
			logging.Warn().Err(err).Msg("runnerLocation payload decode failed")
			return
		}
		if ev.Timestamp == nil {
			// Receipt time, sampled once so every consumer of this
			// event sees the same timestamp.
			now := c.now()
			ev.Timestamp = &now
		}
		metrics.ChannelEventsTotal.WithLabelValues(string(KindRunnerLocation)).Inc()
		c.dispatchLocation(ev)

	case KindRaceCompleted:
		var ev models.RaceCompletedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			metrics.ChannelDroppedTotal.WithLabelValues("decode").Inc()
			logging.Warn().Err(err).Msg("raceCompleted payload decode failed")
			return
		}
		if ev.FinishTime == nil {
			now := c.now()
			ev.FinishTime = &now
		}
		metrics.ChannelEventsTotal.WithLabelValues(string(KindRaceCompleted)).Inc()
		c.dispatchCompleted(ev)

	default:
		metrics.ChannelDroppedTotal.WithLabelValues("unknown_event").Inc()
		logging.Debug().Str("event", msg.Event).Msg("ignoring unknown channel event")
	}
}

func (c *Channel) dispatchLocation(ev models.RunnerLocationEvent) {
	c.subMu.RLock()
	ids := make([]uint64, 0, len(c.locationSubs))
	for id := range c.locationSubs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(models.RunnerLocationEvent), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.locationSubs[id])
	}
	c.subMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (c *Channel) dispatchCompleted(ev models.RaceCompletedEvent) {
	c.subMu.RLock()
	ids := make([]uint64, 0, len(c.completedSubs))
	for id := range c.completedSubs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(models.RaceCompletedEvent), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.completedSubs[id])
	}
	c.subMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// pingLoop sends periodic keep-alive pings.
func (c *Channel) pingLoop(stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn != nil {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					logging.Warn().Err(err).Msg("channel keep-alive failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// OnLocationUpdate registers a handler for runnerLocation events.
// Returns a token for targeted unsubscription.
func (c *Channel) OnLocationUpdate(fn func(models.RunnerLocationEvent)) Token {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	c.locationSubs[c.nextID] = fn
	return Token{kind: KindRunnerLocation, id: c.nextID}
}

// OnRaceCompleted registers a handler for raceCompleted events.
// Returns a token for targeted unsubscription.
func (c *Channel) OnRaceCompleted(fn func(models.RaceCompletedEvent)) Token {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	c.completedSubs[c.nextID] = fn
	return Token{kind: KindRaceCompleted, id: c.nextID}
}

// Unsubscribe removes exactly the subscription identified by the token.
func (c *Channel) Unsubscribe(t Token) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	switch t.kind {
	case KindRunnerLocation:
		delete(c.locationSubs, t.id)
	case KindRaceCompleted:
		delete(c.completedSubs, t.id)
	}
}

// RemoveAllHandlers detaches every handler of both kinds without closing
// the connection. Used when navigating away from a view while the
// session stays open.
func (c *Channel) RemoveAllHandlers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.locationSubs = make(map[uint64]func(models.RunnerLocationEvent))
	c.completedSubs = make(map[uint64]func(models.RaceCompletedEvent))
}

// SubscriberCount returns the number of registered handlers for a kind.
func (c *Channel) SubscriberCount(kind EventKind) int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	switch kind {
	case KindRunnerLocation:
		return len(c.locationSubs)
	case KindRaceCompleted:
		return len(c.completedSubs)
	default:
		return 0
	}
}

// IsConnected reports whether the underlying connection is up.
func (c *Channel) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Disconnect fully tears down the connection and its goroutines. Used
// when the dashboard session itself ends. Idempotent; Connect may be
// called again afterwards.
func (c *Channel) Disconnect() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.runMu.Unlock()

	c.closeConnection()
	c.wg.Wait()
	logging.Info().Msg("channel disconnected")
}

// closeConnection closes the websocket, leaving the listen loop to
// reconnect unless the channel is stopping.
func (c *Channel) closeConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.conn.Close()
	c.conn = nil
	metrics.ChannelConnected.Set(0)
}

// Run connects and blocks until the context is canceled, then tears the
// connection down. This is the supervised entry point; reconnection is
// handled internally by the listen loop.
func (c *Channel) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Disconnect()
	return ctx.Err()
}
