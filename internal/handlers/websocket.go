package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes game and wallet events to connected players. The
// hub implements services.Broadcaster, so the engines stay unaware of the
// transport.
type WebSocketHandler struct {
	redisService *services.RedisService
	hub          *WebSocketHub
}

type WebSocketHub struct {
	mu        sync.RWMutex
	clients   map[string][]*websocket.Conn
	broadcast chan services.Event
}

type wsClient struct {
	player string
	conn   *websocket.Conn
}

func NewWebSocketHandler(redisService *services.RedisService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:   make(map[string][]*websocket.Conn),
		broadcast: make(chan services.Event, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		redisService: redisService,
		hub:          hub,
	}
}

// Hub exposes the broadcaster for engine wiring.
func (h *WebSocketHandler) Hub() *WebSocketHub {
	return h.hub
}

// Publish queues an event without blocking the caller. Slow consumers drop
// events rather than stall a settlement.
func (hub *WebSocketHub) Publish(event services.Event) {
	select {
	case hub.broadcast <- event:
	default:
		log.Printf("websocket: dropped %s event for %s", event.Type, event.Player)
	}
}

func (hub *WebSocketHub) run() {
	for event := range hub.broadcast {
		hub.mu.RLock()
		conns := hub.clients[event.Player]
		for _, conn := range conns {
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("websocket: write failed: %v", err)
			}
		}
		hub.mu.RUnlock()
	}
}

func (hub *WebSocketHub) register(client *wsClient) {
	hub.mu.Lock()
	hub.clients[client.player] = append(hub.clients[client.player], client.conn)
	hub.mu.Unlock()
}

func (hub *WebSocketHub) unregister(client *wsClient) {
	hub.mu.Lock()
	conns := hub.clients[client.player]
	for i, conn := range conns {
		if conn == client.conn {
			hub.clients[client.player] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(hub.clients[client.player]) == 0 {
		delete(hub.clients, client.player)
	}
	hub.mu.Unlock()
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	player := c.GetString("player")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &wsClient{player: player, conn: conn}
	h.hub.register(client)

	defer func() {
		h.hub.unregister(client)
		conn.Close()
	}()

	h.sendBalance(player, conn)

	// Read loop only services pings; all game traffic goes over HTTP.
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		if msg["type"] == "PING" {
			conn.WriteJSON(map[string]any{"type": "PONG"})
		}
	}
}

func (h *WebSocketHandler) sendBalance(player string, conn *websocket.Conn) {
	wallet, err := h.redisService.GetWallet(player)
	if err != nil {
		log.Printf("Failed to get wallet for WS: %v", err)
		return
	}
	conn.WriteJSON(map[string]any{
		"type":    "BALANCE",
		"balance": wallet.Balance,
	})
}
