// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/kmoyo/raceday/internal/models"
)

// pushServer is a websocket test server that records the join message
// and lets tests push wire messages to the connected client.
type pushServer struct {
	*httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn
	joins []wireMessage
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()

	ps := &pushServer{}
	upgrader := websocket.Upgrader{}

	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}

		var join wireMessage
		if err := conn.ReadJSON(&join); err != nil {
			t.Errorf("read join: %v", err)
			return
		}

		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.joins = append(ps.joins, join)
		ps.mu.Unlock()

		// Drain further client frames so pings are answered.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ps.Server.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

// push sends one event frame to the most recent client connection.
func (ps *pushServer) push(t *testing.T, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal event data: %v", err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.conns) == 0 {
		t.Fatal("no client connected")
	}
	conn := ps.conns[len(ps.conns)-1]
	if err := conn.WriteJSON(wireMessage{Event: event, Data: raw}); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (ps *pushServer) joinCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.joins)
}

func connect(t *testing.T, ps *pushServer) *Channel {
	t.Helper()

	ch := New(Config{URL: ps.wsURL()})
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(ch.Disconnect)
	return ch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnectSendsJoin(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)

	waitFor(t, func() bool { return ps.joinCount() == 1 }, "join never received")

	ps.mu.Lock()
	join := ps.joins[0]
	ps.mu.Unlock()
	if join.Event != "joinAdminDashboard" {
		t.Errorf("join event = %q, want joinAdminDashboard", join.Event)
	}
	if !ch.IsConnected() {
		t.Error("IsConnected = false after connect")
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)

	for i := 0; i < 3; i++ {
		if err := ch.Connect(context.Background()); err != nil {
			t.Fatalf("reconnect call %d: %v", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if got := ps.joinCount(); got != 1 {
		t.Errorf("connections = %d, want 1 (Connect must not duplicate)", got)
	}
}

func TestLocationEventDispatch(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)
	waitFor(t, func() bool { return ps.joinCount() == 1 }, "no connection")

	var mu sync.Mutex
	var got []models.RunnerLocationEvent
	ch.OnLocationUpdate(func(ev models.RunnerLocationEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	loc := models.NewGeoPoint(36.8, -1.29)
	ps.push(t, string(KindRunnerLocation), map[string]any{
		"runnerId": "r1",
		"raceId":   "race1",
		"location": loc,
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "event never dispatched")

	mu.Lock()
	defer mu.Unlock()
	ev := got[0]
	if ev.RunnerID != "r1" || ev.RaceID != "race1" {
		t.Errorf("event = %+v, want runner r1 race race1", ev)
	}
	if ev.Timestamp == nil {
		t.Error("missing timestamp not defaulted to receipt time")
	}
	if ev.Location == nil || ev.Location.Coordinates[0] != 36.8 {
		t.Errorf("location = %v", ev.Location)
	}
}

func TestDispatchOrderAndFanout(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)
	waitFor(t, func() bool { return ps.joinCount() == 1 }, "no connection")

	var mu sync.Mutex
	var order []string
	ch.OnRaceCompleted(func(models.RaceCompletedEvent) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	ch.OnRaceCompleted(func(models.RaceCompletedEvent) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	ps.push(t, string(KindRaceCompleted), map[string]any{
		"raceId": "race1", "completionTime": 5400.0, "averagePace": 5.1,
	})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, "fanout incomplete")

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want subscription order", order)
	}
}

func TestUnsubscribeRemovesExactlyOne(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)

	token := ch.OnLocationUpdate(func(models.RunnerLocationEvent) {})
	ch.OnLocationUpdate(func(models.RunnerLocationEvent) {})

	if got := ch.SubscriberCount(KindRunnerLocation); got != 2 {
		t.Fatalf("subscribers = %d, want 2", got)
	}
	ch.Unsubscribe(token)
	if got := ch.SubscriberCount(KindRunnerLocation); got != 1 {
		t.Errorf("subscribers after unsubscribe = %d, want 1", got)
	}
}

func TestRemoveAllHandlersKeepsConnection(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)
	waitFor(t, func() bool { return ps.joinCount() == 1 }, "no connection")

	ch.OnLocationUpdate(func(models.RunnerLocationEvent) {})
	ch.OnRaceCompleted(func(models.RaceCompletedEvent) {})
	ch.RemoveAllHandlers()

	if got := ch.SubscriberCount(KindRunnerLocation); got != 0 {
		t.Errorf("location subscribers = %d, want 0", got)
	}
	if got := ch.SubscriberCount(KindRaceCompleted); got != 0 {
		t.Errorf("completed subscribers = %d, want 0", got)
	}
	if !ch.IsConnected() {
		t.Error("RemoveAllHandlers dropped the connection")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)
	waitFor(t, func() bool { return ps.joinCount() == 1 }, "no connection")

	var mu sync.Mutex
	dispatched := 0
	ch.OnLocationUpdate(func(models.RunnerLocationEvent) {
		mu.Lock()
		dispatched++
		mu.Unlock()
	})

	ps.push(t, "somethingElse", map[string]any{"x": 1})
	ps.push(t, string(KindRunnerLocation), map[string]any{"runnerId": "r1", "location": models.NewGeoPoint(1, 2)})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dispatched == 1
	}, "known event after unknown never arrived")
}

func TestDisconnectIdempotent(t *testing.T) {
	ps := newPushServer(t)
	ch := connect(t, ps)
	waitFor(t, func() bool { return ps.joinCount() == 1 }, "no connection")

	ch.Disconnect()
	ch.Disconnect()
	if ch.IsConnected() {
		t.Error("IsConnected = true after disconnect")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ps := newPushServer(t)
	ch := New(Config{URL: ps.wsURL()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	waitFor(t, func() bool { return ps.joinCount() == 1 }, "run never connected")
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
	if ch.IsConnected() {
		t.Error("connection survived Run teardown")
	}
}
