package devserver

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

const broadcastCapacity = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     isLocalOrigin,
}

// isLocalOrigin rejects cross-origin WebSocket upgrades from anything but
// localhost or the serving host itself.
func isLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := originURL.Hostname()
	requestHost := r.Host
	if i := strings.IndexByte(requestHost, ':'); i != -1 {
		requestHost = requestHost[:i]
	}
	if host == requestHost || host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	return strings.HasPrefix(host, "127.")
}

// hmrMessage is the wire shape sent to every connected client, matching the
// update protocol the runtime loader expects.
type hmrMessage struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
}

type connWrapper struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// wsManager tracks connected dev clients and fans out HMR messages. Every
// connection gets its own bounded mailbox (§5: capacity 100, drop-oldest on
// overflow) so one slow client can never stall another's updates.
type wsManager struct {
	mu    sync.RWMutex
	conns map[*connWrapper]chan hmrMessage
}

func newWSManager() *wsManager {
	return &wsManager{conns: make(map[*connWrapper]chan hmrMessage)}
}

func (m *wsManager) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wrapper := &connWrapper{conn: conn}
	mailbox := make(chan hmrMessage, broadcastCapacity)

	m.mu.Lock()
	m.conns[wrapper] = mailbox
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-mailbox:
			data, _ := json.Marshal(msg)
			wrapper.mu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, data)
			wrapper.mu.Unlock()
			if err != nil {
				m.remove(wrapper)
				return
			}
		case <-done:
			m.remove(wrapper)
			return
		}
	}
}

func (m *wsManager) remove(w *connWrapper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.conns[w]; ok {
		delete(m.conns, w)
		close(ch)
		_ = w.conn.Close()
	}
}

// broadcast enqueues msg on every connected client's mailbox, dropping the
// oldest pending message on overflow instead of blocking the caller.
func (m *wsManager) broadcast(msg hmrMessage) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.conns {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

func (m *wsManager) connectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
