/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"fmt"
	"net"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face/impl"
	ndn_io "github.com/named-data/ndnd/std/utils/io"
)

// TCPFace is a face over a TCP connection. Packets are framed by their TLV
// header, so the probe byte has no meaning on a stream.
type TCPFace struct {
	faceBase
	conn     *net.TCPConn
	localURI *defn.URI
}

// MakeTCPFace dials remoteURI and returns the connected face.
func MakeTCPFace(remoteURI *defn.URI) (*TCPFace, error) {
	if remoteURI == nil || !remoteURI.IsCanonical() || !remoteURI.IsTCP() {
		return nil, defn.ErrNotCanonical
	}

	dialer := &net.Dialer{Control: impl.SyscallReuseAddr, Timeout: tcpDialTimeout}
	conn, err := dialer.Dial(remoteURI.Scheme(), remoteURI.HostPort())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", remoteURI, err)
	}
	return newTCPFace(conn.(*net.TCPConn), remoteURI), nil
}

// acceptTCPFace wraps a connection accepted by a TCPListener.
func acceptTCPFace(conn *net.TCPConn) *TCPFace {
	return newTCPFace(conn, defn.MakeURIFromAddr(conn.RemoteAddr()))
}

func newTCPFace(conn *net.TCPConn, remoteURI *defn.URI) *TCPFace {
	f := &TCPFace{
		conn:     conn,
		localURI: defn.MakeURIFromAddr(conn.LocalAddr()),
	}
	f.makeFaceBase(f, "TCP", remoteURI, f.writeConn)
	f.onClosed = func() { f.conn.Close() }
	return f
}

func (f *TCPFace) String() string {
	return fmt.Sprintf("tcp-face (faceid=%d remote=%s local=%s)", f.faceID, f.remoteURI, f.localURI)
}

// LocalURI returns the local endpoint of the connection.
func (f *TCPFace) LocalURI() *defn.URI {
	return f.localURI
}

// SendQueueSize returns the number of bytes in the kernel send buffer.
func (f *TCPFace) SendQueueSize() uint64 {
	rawConn, err := f.conn.SyscallConn()
	if err != nil {
		core.Log.Warn(f, "Unable to get raw connection to get socket length", "err", err)
		return 0
	}
	return impl.SyscallGetSocketSendQueueSize(rawConn)
}

func (f *TCPFace) Open(onInterest InterestCallback, onData DataCallback, onError ErrorCallback) {
	f.setCallbacks(onInterest, onData, onError)
	go f.runReceive()
}

func (f *TCPFace) writeConn(frame []byte) error {
	_, err := f.conn.Write(frame)
	return err
}

func (f *TCPFace) runReceive() {
	err := ndn_io.ReadTlvStream(f.conn, func(frame []byte) bool {
		f.handleFrame(frame)
		return true
	}, nil)

	if f.running.Load() {
		if err != nil {
			core.Log.Warn(f, "Unable to read from socket - Face DOWN", "err", err)
		} else {
			core.Log.Info(f, "Connection closed by peer - Face DOWN")
		}
	}
	f.fail()
}
