package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/podforge/api/internal/model"
)

// Client represents a WebSocket client subscribed to one episode.
type Client struct {
	EpisodeID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub maintains active WebSocket connections grouped by episode id and
// fans assembly progress out to subscribers.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	EpisodeID string
	Message   []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.EpisodeID] == nil {
				h.clients[client.EpisodeID] = make(map[*Client]bool)
			}
			h.clients[client.EpisodeID][client] = true
			h.mu.Unlock()
			log.Printf("Client subscribed to episode %s", client.EpisodeID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.EpisodeID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.EpisodeID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.EpisodeID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastProgress sends a stage update to episode subscribers.
func (h *Hub) BroadcastProgress(episodeID string, progress int, status model.EpisodeStatus, step string) {
	h.send(episodeID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		EpisodeID:   episodeID,
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// BroadcastComplete announces a finished episode.
func (h *Hub) BroadcastComplete(episodeID string, result interface{}) {
	h.send(episodeID, model.WSCompleteMessage{
		Type:      model.WSMessageTypeComplete,
		EpisodeID: episodeID,
		Result:    result,
	})
}

// BroadcastError announces a terminal failure.
func (h *Hub) BroadcastError(episodeID, code, message string) {
	h.send(episodeID, model.WSErrorMessage{
		Type:      model.WSMessageTypeError,
		EpisodeID: episodeID,
		Error:     model.WSError{Code: code, Message: message},
	})
}

func (h *Hub) send(episodeID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal ws message: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{EpisodeID: episodeID, Message: data}:
	default:
		log.Printf("Broadcast buffer full, dropping message for episode %s", episodeID)
	}
}

// HandleConnection serves one websocket client until it disconnects.
func (h *Hub) HandleConnection(conn *websocket.Conn, episodeID string) {
	client := &Client{
		EpisodeID: episodeID,
		Conn:      conn,
		Send:      make(chan []byte, 64),
	}
	h.register <- client

	defer func() {
		h.unregister <- client
		conn.Close()
	}()

	go func() {
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	}
}
