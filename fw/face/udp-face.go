/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face/impl"
)

// UDPFace is a face over UDP.
//
// A client-mode face owns its socket and only accepts datagrams from its
// configured remote endpoint. A face spawned by a UDPListener shares the
// listener socket, which already demultiplexes by source address.
type UDPFace struct {
	faceBase

	conn       *net.UDPConn
	localURI   *defn.URI
	remoteAddr *net.UDPAddr

	// Set for faces spawned by a listener
	listener     *UDPListener
	lastActivity atomic.Int64
}

// MakeUDPFace creates a client-mode UDP face bound to remoteURI.
// If localURI is nil, an ephemeral local port is used.
func MakeUDPFace(remoteURI *defn.URI, localURI *defn.URI) (*UDPFace, error) {
	if remoteURI == nil || !remoteURI.IsCanonical() || !remoteURI.IsUDP() {
		return nil, defn.ErrNotCanonical
	}
	if localURI != nil && (!localURI.IsCanonical() || localURI.Scheme() != remoteURI.Scheme()) {
		return nil, defn.ErrNotCanonical
	}

	local := ":0"
	if localURI != nil {
		local = localURI.HostPort()
	}

	listenConfig := &net.ListenConfig{Control: impl.SyscallReuseAddr}
	conn, err := listenConfig.ListenPacket(context.Background(), remoteURI.Scheme(), local)
	if err != nil {
		return nil, fmt.Errorf("unable to open UDP socket: %w", err)
	}

	f := &UDPFace{
		conn:       conn.(*net.UDPConn),
		remoteAddr: remoteURI.UDPAddr(),
	}
	f.localURI = defn.MakeURIFromAddr(f.conn.LocalAddr())
	f.makeFaceBase(f, "UDP", remoteURI, f.writeTo)
	f.onClosed = func() { f.conn.Close() }
	return f, nil
}

// newPeerUDPFace creates a face for a peer of a UDP listener.
func newPeerUDPFace(l *UDPListener, remoteAddr *net.UDPAddr) *UDPFace {
	f := &UDPFace{
		conn:       l.conn,
		localURI:   l.localURI,
		remoteAddr: remoteAddr,
		listener:   l,
	}
	f.makeFaceBase(f, "UDP", defn.MakeURIFromAddr(remoteAddr), f.writeTo)
	f.onClosed = func() { l.forget(f) }
	f.touch()
	return f
}

func (f *UDPFace) String() string {
	return fmt.Sprintf("udp-face (faceid=%d remote=%s local=%s)", f.faceID, f.remoteURI, f.localURI)
}

// LocalURI returns the local endpoint of the face.
func (f *UDPFace) LocalURI() *defn.URI {
	return f.localURI
}

// IsPeerBound reports whether the face filters datagrams by source address.
func (f *UDPFace) IsPeerBound() bool {
	return f.listener == nil
}

// Open registers the callbacks. A client-mode face starts its read loop; a
// listener face receives datagrams pushed by the listener.
func (f *UDPFace) Open(onInterest InterestCallback, onData DataCallback, onError ErrorCallback) {
	f.setCallbacks(onInterest, onData, onError)
	if f.listener == nil {
		go f.runReceive()
	}
}

func (f *UDPFace) writeTo(frame []byte) error {
	_, err := f.conn.WriteToUDP(frame, f.remoteAddr)
	if err == nil {
		f.touch()
	}
	return err
}

func (f *UDPFace) runReceive() {
	recvBuf := make([]byte, CfgRecvBufferSize())
	for {
		readSize, remoteAddr, err := f.conn.ReadFromUDP(recvBuf)
		if err != nil {
			if f.running.Load() {
				core.Log.Warn(f, "Unable to read from socket - Face DOWN", "err", err)
			}
			f.fail()
			return
		}

		if !remoteAddr.IP.Equal(f.remoteAddr.IP) || remoteAddr.Port != f.remoteAddr.Port {
			core.Log.Trace(f, "Datagram from unexpected source - DROP", "source", remoteAddr)
			continue
		}

		f.handleFrame(recvBuf[:readSize])
	}
}

// receive handles a datagram demultiplexed by the listener.
func (f *UDPFace) receive(frame []byte) {
	if !f.running.Load() {
		return
	}
	f.touch()
	f.handleFrame(frame)
}

func (f *UDPFace) touch() {
	f.lastActivity.Store(time.Now().UnixNano())
}

// idleFor returns how long the face has neither sent nor received.
func (f *UDPFace) idleFor() time.Duration {
	return time.Since(time.Unix(0, f.lastActivity.Load()))
}
