package face

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
)

// WebSocketFace carries one frame per binary WebSocket message.
type WebSocketFace struct {
	faceBase
	c        *websocket.Conn
	localURI *defn.URI
}

// MakeWebSocketFace dials a WebSocket server, e.g. "ws://127.0.0.1:9696".
func MakeWebSocketFace(remoteURI *defn.URI) (*WebSocketFace, error) {
	if remoteURI == nil || !remoteURI.IsWebSocket() || !remoteURI.IsCanonical() {
		return nil, defn.ErrNotCanonical
	}

	u := url.URL{Scheme: remoteURI.Scheme(), Host: remoteURI.HostPort(), Path: "/"}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = tcpDialTimeout
	c, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", remoteURI, err)
	}
	return newWebSocketFace(c, remoteURI, defn.MakeURIFromAddr(c.LocalAddr())), nil
}

func newWebSocketFace(c *websocket.Conn, remoteURI *defn.URI, localURI *defn.URI) *WebSocketFace {
	f := &WebSocketFace{c: c, localURI: localURI}
	f.makeFaceBase(f, "WebSocket", remoteURI, f.writeMessage)
	f.onClosed = func() { f.c.Close() }
	return f
}

func (f *WebSocketFace) String() string {
	return fmt.Sprintf("web-socket-face (faceid=%d remote=%s local=%s)", f.faceID, f.remoteURI, f.localURI)
}

func (f *WebSocketFace) LocalURI() *defn.URI {
	return f.localURI
}

func (f *WebSocketFace) Open(onInterest InterestCallback, onData DataCallback, onError ErrorCallback) {
	f.setCallbacks(onInterest, onData, onError)
	go f.runReceive()
}

func (f *WebSocketFace) writeMessage(frame []byte) error {
	return f.c.WriteMessage(websocket.BinaryMessage, frame)
}

func (f *WebSocketFace) runReceive() {
	defer f.fail()

	for {
		mt, message, err := f.c.ReadMessage()
		if err != nil {
			if !f.running.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				core.Log.Info(f, "WebSocket closed by peer - Face DOWN")
			} else {
				core.Log.Warn(f, "Unable to read from WebSocket - Face DOWN", "err", err)
			}
			return
		}

		if mt != websocket.BinaryMessage {
			core.Log.Trace(f, "Ignored non-binary message")
			continue
		}
		if len(message) > CfgRecvBufferSize() {
			core.Log.Trace(f, "Message exceeds receive buffer - DROP", "size", len(message))
			continue
		}

		f.handleFrame(message)
	}
}
