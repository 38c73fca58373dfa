package publishers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"apron/models"

	"github.com/gorilla/websocket"
)

type WebSocketPublisherClient struct {
	send chan []byte
	conn *websocket.Conn
}

// WebSocketPublisher broadcasts frames as JSON. New clients get the last frame
// first; plain GET requests get it as the response body.
type WebSocketPublisher struct {
	broadcast chan []byte
	mu        sync.Mutex
	clients   map[*WebSocketPublisherClient]struct{}
	last      []byte
	server    *http.Server
}

type WebSocketPublisherOptions struct {
	Address string
}

func newWebSocketPublisher() *WebSocketPublisher {
	p := &WebSocketPublisher{
		broadcast: make(chan []byte, 1),
		clients:   make(map[*WebSocketPublisherClient]struct{}),
		last:      []byte("null"),
	}
	go func() {
		for msg := range p.broadcast {
			p.mu.Lock()
			for c := range p.clients {
				select {
				case c.send <- msg:
				default:
				}
			}
			p.mu.Unlock()
		}
	}()
	return p
}

func NewWebSocketPublisher(opt *WebSocketPublisherOptions) *WebSocketPublisher {
	p := newWebSocketPublisher()
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.indexFunc)
	p.server = &http.Server{
		Addr:    opt.Address,
		Handler: mux,
	}
	go func() {
		err := p.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("websocket publisher stopped", "error", err, "address", opt.Address)
		}
	}()
	return p
}

func (*WebSocketPublisher) ID() string {
	return WebSocketPublisherID
}

func (p *WebSocketPublisher) lastFrame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *WebSocketPublisher) indexFunc(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(p.lastFrame())
		return
	}
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &WebSocketPublisherClient{
		send: make(chan []byte, 1),
		conn: conn,
	}

	p.mu.Lock()
	p.clients[c] = struct{}{}
	last := p.last
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.clients, c)
		p.mu.Unlock()
		conn.Close()
	}()

	err = conn.WriteMessage(websocket.TextMessage, last)
	if err != nil {
		return
	}
	for msg := range c.send {
		err = conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			return
		}
	}
}

func (p *WebSocketPublisher) Send(frame *models.Frame) error {
	msg, err := encode(frame)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last = msg
	p.mu.Unlock()
	p.broadcast <- msg
	return nil
}

func (p *WebSocketPublisher) Exit() error {
	if p.server == nil {
		return nil
	}
	return p.server.Close()
}
