package api

import (
	"net/http"
	"sync"
	"time"

	"cooking-assistant/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
)

// Frame ist eine Nachricht an verbundene Clients.
type Frame struct {
	Kind string `json:"kind"` // ingredients, recipes, search_results, online_ingredients
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub verwaltet die WebSocket-Verbindungen der Oberfläche. Jeder Client
// bekommt beim Verbinden den aktuellen Stand aller vier Coordinator-Streams
// und danach jede Änderung.
type Hub struct {
	Coordinator *services.Coordinator
	Logger      *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub erstellt einen Hub für den Coordinator.
func NewHub(coord *services.Coordinator, logger *zap.Logger) *Hub {
	return &Hub{
		Coordinator: coord,
		Logger:      logger.With(zap.String("component", "Hub")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	wsClientsGauge.Set(float64(n))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	wsClientsGauge.Set(float64(n))
	c.close()
}

// Count gibt die Zahl der verbundenen Clients zurück.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close trennt alle Clients.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.unregister(c)
	}
}

// Serve ist der Gin-Handler für GET /ws.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Debug("WebSocket-Upgrade fehlgeschlagen", zap.Error(err))
		return
	}
	cl := &wsClient{conn: conn, done: make(chan struct{})}
	h.register(cl)

	go h.pump(cl)

	// Leseschleife endet bei Close/Fehler des Clients
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(cl)
			return
		}
	}
}

// pump ist der einzige Schreiber auf der Verbindung.
func (h *Hub) pump(cl *wsClient) {
	defer h.unregister(cl)

	ings := h.Coordinator.Ingredients().Subscribe()
	defer ings.Close()
	recipes := h.Coordinator.Recipes().Subscribe()
	defer recipes.Close()
	results := h.Coordinator.SearchResults().Subscribe()
	defer results.Close()
	online := h.Coordinator.OnlineIngredients().Subscribe()
	defer online.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var frame Frame
		select {
		case <-cl.done:
			return
		case v := <-ings.C():
			frame = Frame{Kind: "ingredients", Data: v}
		case v := <-recipes.C():
			frame = Frame{Kind: "recipes", Data: v}
		case v := <-results.C():
			frame = Frame{Kind: "search_results", Data: v}
		case v := <-online.C():
			frame = Frame{Kind: "online_ingredients", Data: v}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		}

		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(frame); err != nil {
			h.Logger.Debug("WebSocket-Schreiben fehlgeschlagen", zap.Error(err))
			return
		}
	}
}
