package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub relays ingest progress from Redis pub/sub to the browser that started
// the ingest. Clients identify themselves with the client_id the upload
// response handed back; there are no accounts.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
	if err != nil {
		http.Error(w, "Missing or invalid client_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(clientID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(clientID, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(clientID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[clientID] = append(h.connections[clientID], conn)

	// Start pub/sub subscription if this is the first connection for this client
	if len(h.connections[clientID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[clientID] = cancel
		go h.subscribeToPubSub(ctx, clientID)
	}

	log.Printf("WebSocket connected: client %s (total: %d)", clientID, len(h.connections[clientID]))
}

func (h *Hub) unregisterConnection(clientID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[clientID]
	for i, c := range conns {
		if c == conn {
			h.connections[clientID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[clientID]) == 0 {
		delete(h.connections, clientID)
		if cancel, ok := h.cancelFuncs[clientID]; ok {
			cancel()
			delete(h.cancelFuncs, clientID)
		}
	}

	log.Printf("WebSocket disconnected: client %s", clientID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, clientID uuid.UUID) {
	channel := "client_updates:" + clientID.String()
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(clientID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(clientID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[clientID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// SendToClient sends a message directly to a client (for use outside pub/sub)
func (h *Hub) SendToClient(clientID uuid.UUID, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(clientID, data)
}
