package filter

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face"
)

// Policy selects the egress faces of a forwarded packet.
type Policy interface {
	String() string
	// Select returns the faces pkt is sent to. faces is in insertion order
	// and must not be modified.
	Select(pkt *defn.Pkt, faces []face.Face) []face.Face
}

// ParsePolicy returns the policy with the given name.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "broadcast":
		return Broadcast{}, nil
	case "round-robin":
		return &RoundRobin{}, nil
	case "name-hash":
		return NameHash{}, nil
	default:
		return nil, fmt.Errorf("unknown egress policy %q", name)
	}
}

// Broadcast sends every packet to all faces.
type Broadcast struct{}

func (Broadcast) String() string {
	return "broadcast"
}

func (Broadcast) Select(_ *defn.Pkt, faces []face.Face) []face.Face {
	return faces
}

// RoundRobin sends each packet to the next face in turn.
type RoundRobin struct {
	next atomic.Uint64
}

func (*RoundRobin) String() string {
	return "round-robin"
}

func (p *RoundRobin) Select(_ *defn.Pkt, faces []face.Face) []face.Face {
	if len(faces) == 0 {
		return nil
	}
	i := (p.next.Add(1) - 1) % uint64(len(faces))
	return faces[i : i+1]
}

// NameHash sends all packets of a name to the same face, as long as the face
// set does not change.
type NameHash struct{}

func (NameHash) String() string {
	return "name-hash"
}

func (NameHash) Select(pkt *defn.Pkt, faces []face.Face) []face.Face {
	if len(faces) == 0 {
		return nil
	}
	i := xxhash.Sum64(pkt.Name.Bytes()) % uint64(len(faces))
	return faces[i : i+1]
}
