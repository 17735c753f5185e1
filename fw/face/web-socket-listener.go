package face

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face/impl"
)

// WebSocketListenerConfig contains WebSocketListener configuration.
type WebSocketListenerConfig struct {
	Bind string
	Port uint16
}

// URL returns the ws:// URL the listener serves.
func (cfg WebSocketListenerConfig) URL() *url.URL {
	return &url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(cfg.Bind, strconv.FormatUint(uint64(cfg.Port), 10)),
	}
}

// WebSocketListener accepts WebSocket connections over HTTP.
type WebSocketListener struct {
	masterBase

	server   http.Server
	upgrader websocket.Upgrader
	localURI *defn.URI
	serving  bool
	stopped  chan bool

	mutex sync.Mutex
	faces map[*WebSocketFace]struct{}
}

// NewWebSocketListener creates a WebSocketListener.
func NewWebSocketListener(cfg WebSocketListenerConfig) *WebSocketListener {
	localURL := cfg.URL()
	l := &WebSocketListener{
		server: http.Server{Addr: localURL.Host},
		upgrader: websocket.Upgrader{
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		localURI: defn.MakeWebSocketServerFaceURI(localURL),
		stopped:  make(chan bool, 1),
		faces:    make(map[*WebSocketFace]struct{}),
	}
	l.server.Handler = http.HandlerFunc(l.handler)
	return l
}

func (l *WebSocketListener) String() string {
	return fmt.Sprintf("web-socket-listener (%s)", l.localURI)
}

func (l *WebSocketListener) Protocol() string {
	return "WebSocket"
}

func (l *WebSocketListener) LocalURI() *defn.URI {
	return l.localURI
}

// Run binds the HTTP server and serves in the background.
func (l *WebSocketListener) Run() error {
	listenConfig := &net.ListenConfig{Control: impl.SyscallReuseAddr}
	ln, err := listenConfig.Listen(context.Background(), "tcp", l.server.Addr)
	if err != nil {
		return fmt.Errorf("unable to start WebSocket listener: %w", err)
	}
	l.localURI = defn.MakeWebSocketServerFaceURI(&url.URL{Scheme: "ws", Host: ln.Addr().String()})

	l.serving = true
	go func() {
		defer func() { l.stopped <- true }()
		err := l.server.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			core.Log.Error(l, "WebSocket listener stopped", "err", err)
		}
	}()
	return nil
}

func (l *WebSocketListener) handler(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	face := newWebSocketFace(c, defn.MakeWebSocketClientFaceURI(c.RemoteAddr()), l.localURI)
	l.mutex.Lock()
	l.faces[face] = struct{}{}
	l.mutex.Unlock()
	face.onClosed = func() {
		face.c.Close()
		l.mutex.Lock()
		delete(l.faces, face)
		l.mutex.Unlock()
	}

	core.Log.Info(l, "Accepting new WebSocket face", "uri", face.RemoteURI())
	l.notifyFace(l, face)
}

// Close shuts the HTTP server down and closes every upgraded connection.
func (l *WebSocketListener) Close() {
	core.Log.Info(l, "Stopping listener")
	if l.serving {
		l.server.Shutdown(context.Background())
		<-l.stopped
		l.serving = false
	}

	l.mutex.Lock()
	faces := make([]*WebSocketFace, 0, len(l.faces))
	for face := range l.faces {
		faces = append(faces, face)
	}
	l.mutex.Unlock()
	for _, face := range faces {
		face.Close()
	}
}
