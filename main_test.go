package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-remixer-server/modules/common/config"
	"persona-remixer-server/modules/common/model"
	"persona-remixer-server/modules/remix"
	"persona-remixer-server/modules/session"
)

type stubCollaborator struct{}

func (stubCollaborator) Edit(context.Context, model.ImageRef, string) (model.Result, error) {
	return model.Result{Image: "data:image/png;base64,RURJVA=="}, nil
}

func (stubCollaborator) Generate(context.Context, string, string) (model.Result, error) {
	return model.Result{Image: "data:image/png;base64,R0VO"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	cfg := &config.Config{SessionTTL: time.Hour, WebPQuality: 80, MaxUploadMB: 1}
	store := session.NewMemoryStore(cfg.SessionTTL)
	hub := NewHub(store.Load, cfg.SessionTTL)
	service, err := remix.NewService(store, stubCollaborator{}, hub, cfg.WebPQuality)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(cfg, hub, store, service))
	t.Cleanup(srv.Close)
	return srv, hub
}

func createRemoteSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body remix.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Session.ID
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions/abc/selections", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestWebSocketReceivesSnapshots(t *testing.T) {
	srv, hub := newTestServer(t)
	id := createRemoteSession(t, srv)
	conn := dial(t, srv, id)

	hello := readMessage(t, conn)
	assert.Equal(t, msgConnected, hello.Type)
	assert.Equal(t, id, hello.SessionId)
	require.NotNil(t, hello.Session)
	assert.Equal(t, "1:1", hello.Session.AspectRatio)

	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/sessions/"+id+"/selections",
		bytes.NewBufferString(`{"background":"inside a modern subway car"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	update := readMessage(t, conn)
	assert.Equal(t, remix.EventSessionUpdated, update.Type)
	assert.Equal(t, "inside a modern subway car", update.Session.Background)

	// 생성 요청은 Busy → 완료 두 번 알림
	resp, err = http.Post(srv.URL+"/api/sessions/"+id+"/generate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	busy := readMessage(t, conn)
	assert.True(t, busy.Session.IsBusy)
	done := readMessage(t, conn)
	assert.False(t, done.Session.IsBusy)
	assert.Equal(t, "data:image/png;base64,R0VO", done.Session.InitialResultImage)

	// 현재 상태 요청
	require.NoError(t, conn.WriteJSON(Message{Type: msgRequestState}))
	current := readMessage(t, conn)
	assert.Equal(t, remix.EventSessionUpdated, current.Type)
	assert.Equal(t, done.Session.InitialResultImage, current.Session.InitialResultImage)

	require.NoError(t, conn.WriteJSON(Message{Type: msgPing}))
	assert.Equal(t, msgPong, readMessage(t, conn).Type)

	server, rooms := hub.snapshotMetrics()
	assert.Equal(t, 1, server["activeRooms"])
	assert.Equal(t, 1, server["currentClients"])
	assert.Len(t, rooms, 1)
}

func TestWebSocketUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=missing"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteNotifiesSubscribers(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createRemoteSession(t, srv)
	conn := dial(t, srv, id)
	readMessage(t, conn)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	msg := readMessage(t, conn)
	assert.Equal(t, remix.EventSessionDeleted, msg.Type)
	assert.Nil(t, msg.Session)
}

func TestCleanupRooms(t *testing.T) {
	srv, hub := newTestServer(t)
	id := createRemoteSession(t, srv)
	conn := dial(t, srv, id)
	readMessage(t, conn)
	require.NoError(t, conn.Close())

	// 서버가 연결 종료를 처리할 때까지 대기
	require.Eventually(t, func() bool {
		room, ok := hub.room(id)
		return ok && room.clientCount() == 0
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(srv.URL+"/admin/cleanup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["emptyRooms"])

	_, ok := hub.room(id)
	assert.False(t, ok)
}

func TestCleanupExpiredRooms(t *testing.T) {
	hub := NewHub(func(context.Context, string) (session.State, error) {
		return session.State{}, nil
	}, time.Hour)

	hub.mutex.Lock()
	room := hub.getOrCreateRoom("old")
	hub.mutex.Unlock()
	room.createdAt = time.Now().Add(-2 * time.Hour)

	client := &Client{clientId: "c1", roomId: "old", send: make(chan []byte, 1)}
	room.clients["c1"] = client

	assert.Equal(t, 1, hub.cleanupExpiredRooms())
	_, open := <-client.send
	assert.False(t, open, "expired room must close client channels")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	createRemoteSession(t, srv)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Server map[string]interface{} `json:"server"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body.Server["storedSessions"])
}

func TestDroppedSlowClientIgnoresLaterReplies(t *testing.T) {
	hub := NewHub(func(context.Context, string) (session.State, error) {
		return session.State{}, nil
	}, time.Hour)

	client := &Client{clientId: "c1", roomId: "slow", send: make(chan []byte, 1)}
	room := hub.join("slow", client)
	client.send <- []byte(`{}`) // 버퍼가 가득 찬 상태

	hub.Publish(remix.Event{Type: remix.EventSessionUpdated, SessionID: "slow", Session: &session.State{}})
	assert.Equal(t, 0, room.clientCount(), "slow client must be dropped")

	// 끊긴 뒤 readPump 의 응답은 무시되어야 함
	assert.NotPanics(t, func() {
		assert.False(t, room.sendTo(client, Message{Type: msgPong, SessionId: "slow"}))
		assert.False(t, room.sendTo(client, Message{Type: remix.EventSessionUpdated, SessionId: "slow"}))
	})
	assert.NotPanics(t, func() { room.removeClient(client) })
}

func TestExpiredRoomIgnoresLaterReplies(t *testing.T) {
	hub := NewHub(func(context.Context, string) (session.State, error) {
		return session.State{}, nil
	}, time.Hour)

	client := &Client{clientId: "c1", roomId: "old", send: make(chan []byte, 4)}
	room := hub.join("old", client)
	room.createdAt = time.Now().Add(-2 * time.Hour)
	require.Equal(t, 1, hub.cleanupExpiredRooms())

	assert.NotPanics(t, func() {
		assert.False(t, room.sendTo(client, Message{Type: msgPong, SessionId: "old"}))
	})
}

func TestRejoinWithSameClientIdReplacesConnection(t *testing.T) {
	hub := NewHub(func(context.Context, string) (session.State, error) {
		return session.State{}, nil
	}, time.Hour)

	first := &Client{clientId: "c1", roomId: "s", send: make(chan []byte, 4)}
	second := &Client{clientId: "c1", roomId: "s", send: make(chan []byte, 4)}
	room := hub.join("s", first)
	hub.join("s", second)

	_, open := <-first.send
	assert.False(t, open, "previous connection must be closed")

	// 이전 연결이 정리되어도 새 연결은 유지
	room.removeClient(first)
	assert.Equal(t, 1, room.clientCount())
	assert.True(t, room.sendTo(second, Message{Type: msgPong, SessionId: "s"}))
	assert.False(t, room.sendTo(first, Message{Type: msgPong, SessionId: "s"}))
}
