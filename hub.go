package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/remix"
	"persona-remixer-server/modules/session"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		return true
	},
}

// 연결된 클라이언트 정보
type Client struct {
	conn     *websocket.Conn
	roomId   string
	clientId string
	send     chan []byte
}

// 한 리믹스 세션을 보고 있는 연결 묶음
type Room struct {
	id           string
	clients      map[string]*Client
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// 서버 메트릭
type ServerMetrics struct {
	TotalRooms       int       `json:"totalRooms"`
	ActiveRooms      int       `json:"activeRooms"`
	TotalConnections int       `json:"totalConnections"`
	Broadcasts       int       `json:"broadcasts"`
	StartTime        time.Time `json:"startTime"`
	mutex            sync.RWMutex
}

// 메시지 타입
type Message struct {
	Type      string         `json:"type"`
	SessionId string         `json:"sessionId"`
	ClientId  string         `json:"clientId,omitempty"`
	Session   *session.State `json:"session,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// 쓰기 제한 시간 (읽지 않는 클라이언트에 막히지 않도록)
const writeWait = 10 * time.Second

// 클라이언트 → 서버 메시지
const (
	msgRequestState = "request_state"
	msgPing         = "ping"
	msgPong         = "pong"
	msgConnected    = "connected"
)

// Hub - 세션별 구독자 관리, remix.Broadcaster 구현
type Hub struct {
	rooms   map[string]*Room
	mutex   sync.RWMutex
	metrics *ServerMetrics
	load    func(ctx context.Context, id string) (session.State, error)

	expiredThreshold  time.Duration
	inactiveThreshold time.Duration
}

func NewHub(load func(ctx context.Context, id string) (session.State, error), sessionTTL time.Duration) *Hub {
	return &Hub{
		rooms:             make(map[string]*Room),
		metrics:           &ServerMetrics{StartTime: time.Now()},
		load:              load,
		expiredThreshold:  sessionTTL,
		inactiveThreshold: 2 * time.Hour,
	}
}

// room 가져오기 또는 생성 (h.mutex 를 잡은 상태에서 호출)
func (h *Hub) getOrCreateRoom(roomId string) *Room {
	room, exists := h.rooms[roomId]
	if !exists {
		now := time.Now()
		room = &Room{
			id:           roomId,
			clients:      make(map[string]*Client),
			createdAt:    now,
			lastActivity: now,
		}
		h.rooms[roomId] = room

		h.metrics.mutex.Lock()
		h.metrics.TotalRooms++
		h.metrics.ActiveRooms++
		h.metrics.mutex.Unlock()

		log.Info().Msgf("✅ Created new room: %s", roomId)
	}
	return room
}

func (h *Hub) room(roomId string) (*Room, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	room, ok := h.rooms[roomId]
	return room, ok
}

// Publish - 상태 변경을 해당 세션 구독자 전체에게 전송
func (h *Hub) Publish(event remix.Event) {
	room, ok := h.room(event.SessionID)
	if !ok {
		return
	}

	sent := room.broadcastToAll(Message{
		Type:      event.Type,
		SessionId: event.SessionID,
		Session:   event.Session,
	})

	h.metrics.mutex.Lock()
	h.metrics.Broadcasts++
	h.metrics.mutex.Unlock()

	log.Debug().Msgf("📢 Broadcasted %s for session %s to %d clients", event.Type, event.SessionID, sent)
}

// 클라이언트를 room 에 추가 (정리 루틴과 겹치지 않도록 hub 잠금 안에서)
func (h *Hub) join(roomId string, client *Client) *Room {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room := h.getOrCreateRoom(roomId)
	room.mutex.Lock()
	if old, exists := room.clients[client.clientId]; exists && old != client {
		// 같은 clientId 로 재접속하면 이전 연결은 종료
		close(old.send)
		log.Info().Msgf("🔁 Client %s reconnected to session %s, closing previous connection", client.clientId, roomId)
	}
	room.clients[client.clientId] = client
	room.lastActivity = time.Now()
	clientCount := len(room.clients)
	room.mutex.Unlock()

	h.metrics.mutex.Lock()
	h.metrics.TotalConnections++
	h.metrics.mutex.Unlock()

	log.Info().Msgf("👤 Client %s joined session %s (Clients: %d)", client.clientId, roomId, clientCount)
	return room
}

// 클라이언트를 room 에서 제거 (이미 끊겼거나 교체된 연결이면 무시)
func (r *Room) removeClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clientId := client.clientId
	if current, exists := r.clients[clientId]; exists && current == client {
		close(client.send)
		delete(r.clients, clientId)
		r.lastActivity = time.Now()

		log.Info().Msgf("👋 Client %s left session %s (Remaining: %d)", clientId, r.id, len(r.clients))
		if len(r.clients) == 0 {
			log.Debug().Msgf("🗑️  Room %s is now empty, will be cleaned up", r.id)
		}
	}
}

// 모든 클라이언트에게 메시지 브로드캐스트 (보내지 못한 느린 클라이언트는 끊음)
func (r *Room) broadcastToAll(message Message) int {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Error().Msgf("Error marshaling message: %v", err)
		return 0
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	sent := 0
	for clientId, client := range r.clients {
		select {
		case client.send <- messageBytes:
			sent++
		default:
			close(client.send)
			delete(r.clients, clientId)
			log.Warn().Msgf("⚠️  Dropped slow client %s from session %s", clientId, r.id)
		}
	}
	return sent
}

// 한 클라이언트에게만 전송
// send 채널은 room 잠금 안에서만 닫히므로, room 에 남아 있는 클라이언트에게만 보냄
func (r *Room) sendTo(client *Client, message Message) bool {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Error().Msgf("Error marshaling message: %v", err)
		return false
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if current, exists := r.clients[client.clientId]; !exists || current != client {
		log.Debug().Msgf("Skipping message for disconnected client %s", client.clientId)
		return false
	}
	select {
	case client.send <- messageBytes:
		return true
	default:
		log.Warn().Msgf("⚠️  Send buffer full for client %s", client.clientId)
		return false
	}
}

func (r *Room) clientCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

// 빈 room 정리
func (h *Hub) cleanupEmptyRooms() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	cleaned := 0
	for roomId, room := range h.rooms {
		if room.clientCount() == 0 {
			delete(h.rooms, roomId)
			cleaned++

			h.metrics.mutex.Lock()
			h.metrics.ActiveRooms--
			h.metrics.mutex.Unlock()

			log.Debug().Msgf("🧹 Cleaned up empty room: %s", roomId)
		}
	}

	if cleaned > 0 {
		log.Info().Msgf("🗑️  Cleaned up %d empty rooms", cleaned)
	}
	return cleaned
}

// 만료된 room 정리 (세션 TTL 이 지났거나 오래 비어있던 room)
func (h *Hub) cleanupExpiredRooms() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := time.Now()
	cleaned := 0
	for roomId, room := range h.rooms {
		room.mutex.Lock()
		isExpired := now.Sub(room.createdAt) > h.expiredThreshold
		isInactive := now.Sub(room.lastActivity) > h.inactiveThreshold && len(room.clients) == 0
		if isExpired || isInactive {
			for clientId, client := range room.clients {
				close(client.send)
				delete(room.clients, clientId)
				log.Info().Msgf("🔌 Disconnecting client %s from expired session %s", clientId, roomId)
			}
		}
		room.mutex.Unlock()

		if isExpired || isInactive {
			delete(h.rooms, roomId)
			cleaned++

			h.metrics.mutex.Lock()
			h.metrics.ActiveRooms--
			h.metrics.mutex.Unlock()

			reason := "expired"
			if !isExpired {
				reason = "inactive"
			}
			log.Info().Msgf("⏰ Cleaned up %s room: %s", reason, roomId)
		}
	}
	return cleaned
}

// 정기적 정리 작업 시작
func (h *Hub) startCleanupRoutine(ctx context.Context) {
	go func() {
		emptyTicker := time.NewTicker(5 * time.Minute)
		expiredTicker := time.NewTicker(30 * time.Minute)
		defer emptyTicker.Stop()
		defer expiredTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-emptyTicker.C:
				h.cleanupEmptyRooms()
			case <-expiredTicker.C:
				h.cleanupExpiredRooms()
			}
		}
	}()

	log.Info().Msg("🔄 Started room cleanup routine (Empty: 5min, Expired: 30min)")
}

// WebSocket 핸들러 - /ws?session=<id>
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("session")
	if roomId == "" {
		http.Error(w, "Missing session parameter", http.StatusBadRequest)
		return
	}

	st, err := h.load(r.Context(), roomId)
	if err != nil {
		http.Error(w, apperr.Message(err), apperr.Status(err))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Msgf("WebSocket upgrade failed: %v", err)
		return
	}

	clientId := r.URL.Query().Get("client")
	if clientId == "" {
		clientId = uuid.New().String()
	}

	client := &Client{
		conn:     conn,
		roomId:   roomId,
		clientId: clientId,
		send:     make(chan []byte, 16),
	}

	room := h.join(roomId, client)

	// 접속 직후 현재 상태 전송
	room.sendTo(client, Message{Type: msgConnected, SessionId: roomId, ClientId: clientId, Session: &st})

	go client.writePump()
	go h.readPump(client, room)
}

// 클라이언트로부터 메시지 읽기
func (h *Hub) readPump(c *Client, room *Room) {
	defer func() {
		room.removeClient(c)
		c.conn.Close()
	}()

	for {
		var message Message
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Msgf("WebSocket error: %v", err)
			}
			return
		}

		switch message.Type {
		case msgPing:
			room.sendTo(c, Message{Type: msgPong, SessionId: c.roomId})

		case msgRequestState:
			st, err := h.load(context.Background(), c.roomId)
			if err != nil {
				room.sendTo(c, Message{Type: msgRequestState, SessionId: c.roomId, Error: apperr.Message(err)})
				continue
			}
			room.sendTo(c, Message{Type: remix.EventSessionUpdated, SessionId: c.roomId, Session: &st})

		default:
			log.Debug().Msgf("Ignoring message type '%s' from client %s", message.Type, c.clientId)
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Msgf("WebSocket write error: %v", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// 메트릭 스냅샷
func (h *Hub) snapshotMetrics() (map[string]interface{}, []map[string]interface{}) {
	h.metrics.mutex.RLock()
	server := map[string]interface{}{
		"uptime":           time.Since(h.metrics.StartTime).String(),
		"startTime":        h.metrics.StartTime,
		"totalRooms":       h.metrics.TotalRooms,
		"activeRooms":      h.metrics.ActiveRooms,
		"totalConnections": h.metrics.TotalConnections,
		"broadcasts":       h.metrics.Broadcasts,
	}
	h.metrics.mutex.RUnlock()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	rooms := make([]map[string]interface{}, 0, len(h.rooms))
	totalClients := 0
	for roomId, room := range h.rooms {
		room.mutex.RLock()
		clientCount := len(room.clients)
		rooms = append(rooms, map[string]interface{}{
			"sessionId":    roomId,
			"clientCount":  clientCount,
			"createdAt":    room.createdAt,
			"lastActivity": room.lastActivity,
			"age":          time.Since(room.createdAt).String(),
			"inactive":     time.Since(room.lastActivity).String(),
		})
		room.mutex.RUnlock()
		totalClients += clientCount
	}
	server["currentClients"] = totalClients
	return server, rooms
}
