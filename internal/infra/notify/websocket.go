package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub держит websocket-подписчиков по магазинам и рассылает им уведомления.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Notification
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:  make(map[string]map[*client]struct{}),
	}
}

// Notify не блокируется: медленный клиент просто теряет сообщение.
func (h *Hub) Notify(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[n.StoreID] {
		select {
		case c.send <- n:
		default:
			h.log.Warn("ws client is slow, notification dropped", "store_id", n.StoreID)
		}
	}
	return nil
}

// ServeHTTP: /ws/notifications?store=<id>
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store")
	if storeID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("missing store parameter"))
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan Notification, 16)}
	h.add(storeID, c)

	go h.writeLoop(storeID, c)
	// читаем только ради close/ping от клиента
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(storeID, c)
}

func (h *Hub) writeLoop(storeID string, c *client) {
	defer func() { _ = c.conn.Close() }()
	for n := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(n); err != nil {
			h.log.Debug("ws write failed", "store_id", storeID, "err", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) add(storeID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[storeID] == nil {
		h.clients[storeID] = make(map[*client]struct{})
	}
	h.clients[storeID][c] = struct{}{}
}

func (h *Hub) remove(storeID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[storeID][c]; !ok {
		return
	}
	delete(h.clients[storeID], c)
	if len(h.clients[storeID]) == 0 {
		delete(h.clients, storeID)
	}
	close(c.send)
}

// Clients — число подписчиков магазина.
func (h *Hub) Clients(storeID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[storeID])
}
