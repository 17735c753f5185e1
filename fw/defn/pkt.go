/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package defn

import (
	"fmt"

	enc "github.com/named-data/ndnd/std/encoding"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
)

// MaxRecvSize is the size of the receive buffer of a face.
const MaxRecvSize = 1 << 16

// ProbeReply is the reply to a liveness probe.
var ProbeReply = []byte("0")

// PktKind is the kind of an NDN network-layer packet.
type PktKind int

const (
	Interest PktKind = iota
	Data
)

func (k PktKind) String() string {
	switch k {
	case Interest:
		return "interest"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Direction tells which side of the firewall a packet came from.
type Direction int

const (
	// Ingress packets arrive from untrusted faces.
	Ingress Direction = iota
	// Egress packets arrive from trusted faces.
	Egress
)

func (d Direction) String() string {
	switch d {
	case Ingress:
		return "ingress"
	case Egress:
		return "egress"
	default:
		return "unknown"
	}
}

// WireTag is the leading byte of a data-plane frame.
type WireTag int

const (
	TagUnknown WireTag = iota
	TagProbe
	TagInterest
	TagData
)

// TagOf maps the leading byte of a frame to its tag.
func TagOf(frame []byte) WireTag {
	if len(frame) == 0 {
		return TagUnknown
	}
	switch frame[0] {
	case 0x00:
		return TagProbe
	case 0x05:
		return TagInterest
	case 0x06:
		return TagData
	default:
		return TagUnknown
	}
}

func (t WireTag) String() string {
	switch t {
	case TagProbe:
		return "probe"
	case TagInterest:
		return "interest"
	case TagData:
		return "data"
	default:
		return "unknown"
	}
}

// Pkt is a parsed Interest or Data together with its wire encoding.
type Pkt struct {
	Kind PktKind
	Name enc.Name
	Raw  []byte

	IncomingFaceID uint64
}

// ParsePkt decodes one Interest or Data TLV. The frame is copied, so the
// caller may reuse its receive buffer.
func ParsePkt(frame []byte, kind PktKind) (*Pkt, error) {
	raw := make([]byte, len(frame))
	copy(raw, frame)

	pkt, _, err := spec.ReadPacket(enc.NewBufferView(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	switch {
	case kind == Interest && pkt.Interest != nil:
		return &Pkt{Kind: Interest, Name: pkt.Interest.NameV, Raw: raw}, nil
	case kind == Data && pkt.Data != nil:
		return &Pkt{Kind: Data, Name: pkt.Data.NameV, Raw: raw}, nil
	default:
		return nil, fmt.Errorf("%w: not a %s packet", ErrParse, kind)
	}
}

// Encode returns the bytes to put on the wire.
func (p *Pkt) Encode() []byte {
	return p.Raw
}
