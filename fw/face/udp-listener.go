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
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face/impl"
)

// UDPListener is the UDP master face. It owns one socket and spawns a face
// for every new source address.
type UDPListener struct {
	masterBase

	conn     *net.UDPConn
	localURI *defn.URI
	stopped  chan bool
	quit     chan struct{}

	mutex sync.Mutex
	faces map[string]*UDPFace
}

// MakeUDPListener constructs a UDPListener.
func MakeUDPListener(localURI *defn.URI) (*UDPListener, error) {
	if err := localURI.Canonize(); err != nil || !localURI.IsUDP() {
		return nil, defn.ErrNotCanonical
	}

	l := new(UDPListener)
	l.localURI = localURI
	l.stopped = make(chan bool, 1)
	l.quit = make(chan struct{})
	l.faces = make(map[string]*UDPFace)
	return l, nil
}

func (l *UDPListener) String() string {
	return fmt.Sprintf("udp-listener (%s)", l.localURI)
}

func (l *UDPListener) Protocol() string {
	return "UDP"
}

// LocalURI returns the bound address once Run succeeded.
func (l *UDPListener) LocalURI() *defn.URI {
	return l.localURI
}

// Run binds the socket and starts the receive loop.
func (l *UDPListener) Run() error {
	listenConfig := &net.ListenConfig{Control: impl.SyscallReuseAddr}
	conn, err := listenConfig.ListenPacket(context.Background(), l.localURI.Scheme(), l.localURI.HostPort())
	if err != nil {
		return fmt.Errorf("unable to start UDP listener: %w", err)
	}
	l.conn = conn.(*net.UDPConn)
	l.localURI = defn.MakeURIFromAddr(l.conn.LocalAddr())

	go l.runReceive()
	go l.expirationHandler()
	return nil
}

func (l *UDPListener) runReceive() {
	defer func() { l.stopped <- true }()

	recvBuf := make([]byte, CfgRecvBufferSize())
	for !core.ShouldQuit() {
		readSize, remoteAddr, err := l.conn.ReadFromUDP(recvBuf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				core.Log.Warn(l, "Unable to read from socket", "err", err)
			}
			l.failAll()
			return
		}

		key := remoteAddr.String()
		l.mutex.Lock()
		face := l.faces[key]
		isNew := face == nil
		if isNew {
			face = newPeerUDPFace(l, remoteAddr)
			l.faces[key] = face
		}
		l.mutex.Unlock()

		if isNew {
			core.Log.Info(l, "Accepting new UDP face", "uri", face.RemoteURI())
			l.notifyFace(l, face)
		}

		face.receive(recvBuf[:readSize])
	}
}

// expirationHandler closes spawned faces that have been idle too long.
func (l *UDPListener) expirationHandler() {
	lifetime := CfgUDPLifetime()
	ticker := time.NewTicker(min(lifetime, 10*time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-l.quit:
			return
		case <-ticker.C:
		}

		for _, face := range l.spawned() {
			if face.idleFor() > lifetime {
				core.Log.Info(l, "Face expired", "face", face)
				face.fail()
			}
		}
	}
}

func (l *UDPListener) spawned() []*UDPFace {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	faces := make([]*UDPFace, 0, len(l.faces))
	for _, face := range l.faces {
		faces = append(faces, face)
	}
	return faces
}

func (l *UDPListener) forget(face *UDPFace) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	key := face.remoteAddr.String()
	if l.faces[key] == face {
		delete(l.faces, key)
	}
}

// failAll reports every spawned face as dead after the socket failed.
func (l *UDPListener) failAll() {
	for _, face := range l.spawned() {
		if face.running.Load() {
			face.Close()
			l.notifyFaceError(l, face)
		}
	}
}

// Close stops the listener and waits for the receive loop to end.
func (l *UDPListener) Close() {
	if l.conn != nil {
		close(l.quit)
		for _, face := range l.spawned() {
			face.Close()
		}
		l.conn.Close()
		<-l.stopped
		l.conn = nil
	}
}
