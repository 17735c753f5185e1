/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"time"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
)

// udpPeerLifetime is how long an idle listener-spawned UDP face is kept.
var udpPeerLifetime = 600 * time.Second

// tcpDialTimeout bounds the connection setup of outgoing TCP faces.
var tcpDialTimeout = 5 * time.Second

// CfgRecvBufferSize returns the size of the receive buffer of a face.
func CfgRecvBufferSize() int {
	if size := core.C.Faces.RecvBufferSize; size > 0 {
		return size
	}
	return defn.MaxRecvSize
}

// CfgUDPLifetime returns the lifetime of idle listener-spawned UDP faces.
func CfgUDPLifetime() time.Duration {
	if lifetime := core.C.Faces.Udp.Lifetime; lifetime > 0 {
		return time.Duration(lifetime) * time.Second
	}
	return udpPeerLifetime
}

// MakeFace creates an outgoing face for a remote endpoint.
// The face is not opened.
func MakeFace(remoteURI *defn.URI) (Face, error) {
	if err := remoteURI.Canonize(); err != nil {
		return nil, err
	}

	switch {
	case remoteURI.IsUDP():
		return MakeUDPFace(remoteURI, nil)
	case remoteURI.IsTCP():
		return MakeTCPFace(remoteURI)
	case remoteURI.IsWebSocket():
		return MakeWebSocketFace(remoteURI)
	default:
		return nil, defn.ErrNotCanonical
	}
}
