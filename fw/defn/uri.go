/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package defn

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// URIType represents the type of the URI.
type URIType int

const (
	unknownURI URIType = iota
	udpURI
	tcpURI
	wsURI
	wsclientURI
)

// DefaultPort is used when a URI carries no port.
const DefaultPort = uint16(6363)

// URI is the endpoint description of a face: scheme, host and port.
type URI struct {
	uriType URIType
	scheme  string
	path    string
	port    uint16
}

// MakeUDPFaceURI constructs a URI for a UDP face.
func MakeUDPFaceURI(ipVersion int, host string, port uint16) *URI {
	uri := &URI{
		uriType: udpURI,
		scheme:  "udp" + strconv.Itoa(ipVersion),
		path:    host,
		port:    port,
	}
	uri.Canonize()
	return uri
}

// MakeTCPFaceURI constructs a URI for a TCP face.
func MakeTCPFaceURI(ipVersion int, host string, port uint16) *URI {
	uri := &URI{
		uriType: tcpURI,
		scheme:  "tcp" + strconv.Itoa(ipVersion),
		path:    host,
		port:    port,
	}
	uri.Canonize()
	return uri
}

// MakeWebSocketServerFaceURI constructs a URI for a WebSocket listener.
func MakeWebSocketServerFaceURI(u *url.URL) *URI {
	port, _ := strconv.ParseUint(u.Port(), 10, 16)
	return &URI{
		uriType: wsURI,
		scheme:  u.Scheme,
		path:    u.Hostname(),
		port:    uint16(port),
	}
}

// MakeWebSocketClientFaceURI constructs a URI for a peer connected over WebSocket.
func MakeWebSocketClientFaceURI(addr net.Addr) *URI {
	host, portStr, _ := net.SplitHostPort(addr.String())
	port, _ := strconv.ParseUint(portStr, 10, 16)
	return &URI{
		uriType: wsclientURI,
		scheme:  "wsclient",
		path:    host,
		port:    uint16(port),
	}
}

// MakeURIFromAddr builds a canonical URI from a socket address.
func MakeURIFromAddr(addr net.Addr) *URI {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return DecodeURIString("udp://" + a.String())
	case *net.TCPAddr:
		return DecodeURIString("tcp://" + a.String())
	default:
		return &URI{uriType: unknownURI, scheme: "unknown"}
	}
}

// DecodeURIString parses an endpoint description.
// A string without scheme ("host:port") is read as a UDP endpoint.
func DecodeURIString(str string) *URI {
	ret := &URI{
		uriType: unknownURI,
		scheme:  "unknown",
	}

	if !strings.Contains(str, "://") {
		str = "udp://" + str
	}

	uri, err := url.Parse(str)
	if err != nil {
		return ret
	}

	decodeHostPort := func(uriType URIType) {
		ret.uriType = uriType
		ret.scheme = uri.Scheme
		ret.path = uri.Hostname()
		ret.port = DefaultPort
		if uri.Port() != "" {
			port, err := strconv.ParseUint(uri.Port(), 10, 16)
			if err != nil {
				ret.uriType = unknownURI
				return
			}
			ret.port = uint16(port)
		}
	}

	switch uri.Scheme {
	case "udp", "udp4", "udp6":
		decodeHostPort(udpURI)
	case "tcp", "tcp4", "tcp6":
		decodeHostPort(tcpURI)
	case "ws", "wss":
		if uri.User != nil || strings.TrimLeft(uri.Path, "/") != "" || uri.RawQuery != "" || uri.Fragment != "" {
			return ret
		}
		return MakeWebSocketServerFaceURI(uri)
	case "wsclient":
		addr, err := net.ResolveTCPAddr("tcp", uri.Host)
		if err != nil {
			return ret
		}
		return MakeWebSocketClientFaceURI(addr)
	}

	ret.Canonize()

	return ret
}

// Scheme returns the scheme of the face URI.
func (u *URI) Scheme() string {
	return u.scheme
}

// Path returns the host of the face URI.
func (u *URI) Path() string {
	return u.path
}

// Port returns the port of the face URI.
func (u *URI) Port() uint16 {
	return u.port
}

// IsUDP reports whether the URI describes a UDP endpoint.
func (u *URI) IsUDP() bool {
	return u.uriType == udpURI
}

// IsTCP reports whether the URI describes a TCP endpoint.
func (u *URI) IsTCP() bool {
	return u.uriType == tcpURI
}

// IsWebSocket reports whether the URI describes a WebSocket server endpoint.
func (u *URI) IsWebSocket() bool {
	return u.uriType == wsURI
}

// IsCanonical returns whether the face URI is canonical.
func (u *URI) IsCanonical() bool {
	ip := net.ParseIP(u.path)
	// Go considers IPv4 addresses to be valid IPv6 addresses
	isIPv4 := ip.To4() != nil
	switch u.uriType {
	case udpURI:
		return ip != nil && u.port > 0 &&
			((u.scheme == "udp4" && isIPv4) || (u.scheme == "udp6" && !isIPv4))
	case tcpURI:
		return ip != nil && u.port > 0 &&
			((u.scheme == "tcp4" && isIPv4) || (u.scheme == "tcp6" && !isIPv4))
	case wsURI, wsclientURI:
		return u.port > 0
	default:
		return false
	}
}

// Canonize attempts to canonize the URI, if not already canonical.
func (u *URI) Canonize() error {
	switch u.uriType {
	case udpURI, tcpURI:
		ip := net.ParseIP(strings.Trim(u.path, "[]"))
		if ip == nil {
			// Resolve DNS
			resolvedIPs, err := net.LookupHost(u.path)
			if err != nil || len(resolvedIPs) == 0 {
				return ErrNotCanonical
			}
			ip = net.ParseIP(resolvedIPs[0])
			if ip == nil {
				return ErrNotCanonical
			}
		}

		family := "6"
		if ip.To4() != nil {
			family = "4"
		}
		if u.uriType == udpURI {
			u.scheme = "udp" + family
		} else {
			u.scheme = "tcp" + family
		}
		u.path = ip.String()
	case wsURI, wsclientURI:
		// Nothing to do
	default:
		return ErrNotCanonical
	}

	return nil
}

// UDPAddr returns the socket address of a UDP URI.
func (u *URI) UDPAddr() *net.UDPAddr {
	if u.uriType != udpURI {
		return nil
	}
	return &net.UDPAddr{IP: net.ParseIP(u.path), Port: int(u.port)}
}

// HostPort returns "host:port", bracketing IPv6 hosts.
func (u *URI) HostPort() string {
	return net.JoinHostPort(u.path, strconv.FormatUint(uint64(u.port), 10))
}

func (u *URI) String() string {
	switch u.uriType {
	case udpURI, tcpURI, wsURI, wsclientURI:
		return u.scheme + "://" + u.HostPort()
	default:
		return "unknown://"
	}
}
