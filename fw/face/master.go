package face

import "github.com/named-data/ndnfw/fw/defn"

// MasterFace listens passively and spawns one face per peer.
type MasterFace interface {
	String() string
	Protocol() string
	LocalURI() *defn.URI

	// OnFace registers the handler for newly established faces. The handler
	// runs on the accept goroutine and must call Open before returning if it
	// wants the first packet of the peer.
	OnFace(handler func(master MasterFace, face Face))
	// OnFaceError registers the handler for spawned faces that died because
	// the master itself failed.
	OnFaceError(handler func(master MasterFace, face Face))

	// Run binds the listener and starts accepting in the background.
	Run() error
	// Close stops accepting and closes all spawned faces.
	Close()
}

// masterBase holds the notification handlers of a master face.
type masterBase struct {
	onFace      func(MasterFace, Face)
	onFaceError func(MasterFace, Face)
}

func (m *masterBase) OnFace(handler func(master MasterFace, face Face)) {
	m.onFace = handler
}

func (m *masterBase) OnFaceError(handler func(master MasterFace, face Face)) {
	m.onFaceError = handler
}

func (m *masterBase) notifyFace(self MasterFace, face Face) {
	if m.onFace != nil {
		m.onFace(self, face)
	}
}

func (m *masterBase) notifyFaceError(self MasterFace, face Face) {
	if m.onFaceError != nil {
		m.onFaceError(self, face)
	}
}
