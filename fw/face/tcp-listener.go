/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face/impl"
)

// TCPListener listens for incoming TCP connections.
type TCPListener struct {
	masterBase

	conn     net.Listener
	localURI *defn.URI
	stopped  chan bool

	mutex sync.Mutex
	faces map[*TCPFace]struct{}
}

// MakeTCPListener constructs a TCPListener.
func MakeTCPListener(localURI *defn.URI) (*TCPListener, error) {
	if err := localURI.Canonize(); err != nil || !localURI.IsTCP() {
		return nil, defn.ErrNotCanonical
	}

	l := new(TCPListener)
	l.localURI = localURI
	l.stopped = make(chan bool, 1)
	l.faces = make(map[*TCPFace]struct{})
	return l, nil
}

func (l *TCPListener) String() string {
	return fmt.Sprintf("tcp-listener (%s)", l.localURI)
}

func (l *TCPListener) Protocol() string {
	return "TCP"
}

func (l *TCPListener) LocalURI() *defn.URI {
	return l.localURI
}

// Run binds the listener and starts the accept loop.
func (l *TCPListener) Run() error {
	listenConfig := &net.ListenConfig{Control: impl.SyscallReuseAddr}

	conn, err := listenConfig.Listen(context.Background(), l.localURI.Scheme(), l.localURI.HostPort())
	if err != nil {
		return fmt.Errorf("unable to start TCP listener: %w", err)
	}
	l.conn = conn
	l.localURI = defn.MakeURIFromAddr(conn.Addr())

	go l.runAccept()
	return nil
}

func (l *TCPListener) runAccept() {
	defer func() { l.stopped <- true }()

	for !core.ShouldQuit() {
		remoteConn, err := l.conn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			core.Log.Warn(l, "Unable to accept connection", "err", err)
			continue
		}

		face := acceptTCPFace(remoteConn.(*net.TCPConn))
		l.mutex.Lock()
		l.faces[face] = struct{}{}
		l.mutex.Unlock()
		face.onClosed = func() {
			face.conn.Close()
			l.mutex.Lock()
			delete(l.faces, face)
			l.mutex.Unlock()
		}

		core.Log.Info(l, "Accepting new TCP face", "uri", face.RemoteURI())
		l.notifyFace(l, face)
	}
}

// Close stops accepting and closes every accepted connection.
func (l *TCPListener) Close() {
	if l.conn == nil {
		return
	}
	l.conn.Close()
	<-l.stopped
	l.conn = nil

	l.mutex.Lock()
	faces := make([]*TCPFace, 0, len(l.faces))
	for face := range l.faces {
		faces = append(faces, face)
	}
	l.mutex.Unlock()
	for _, face := range faces {
		face.Close()
	}
}
