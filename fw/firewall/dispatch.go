package firewall

import (
	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face"
	"github.com/named-data/ndnfw/fw/filter"
)

func (fw *Firewall) onIngressInterest(f face.Face, pkt *defn.Pkt) {
	fw.strand.Post(func() { fw.dispatch(f, pkt, defn.Ingress) })
}

func (fw *Firewall) onIngressData(f face.Face, pkt *defn.Pkt) {
	fw.strand.Post(func() { fw.dispatch(f, pkt, defn.Ingress) })
}

func (fw *Firewall) onEgressInterest(f face.Face, pkt *defn.Pkt) {
	fw.strand.Post(func() { fw.dispatch(f, pkt, defn.Egress) })
}

func (fw *Firewall) onEgressData(f face.Face, pkt *defn.Pkt) {
	fw.strand.Post(func() { fw.dispatch(f, pkt, defn.Egress) })
}

// dispatch runs one packet through the kill-switches and the filter, and
// sends it to the other side if it passes. Ingress packets go to egress faces
// and egress packets go back to ingress faces.
func (fw *Firewall) dispatch(in face.Face, pkt *defn.Pkt, dir defn.Direction) {
	source, target := fw.ingress, fw.egress
	if dir == defn.Egress {
		source, target = fw.egress, fw.ingress
	}
	if source.Get(in.FaceID()) == nil {
		// Retired while the callback was queued
		return
	}

	if fw.killSwitch(pkt.Kind) {
		fw.countDrop(pkt.Kind, "killswitch")
		return
	}

	decision := fw.filter.Verdict(filter.Query{
		Kind:      pkt.Kind,
		Direction: dir,
		Face:      in.Endpoint(),
		Name:      pkt.Name,
	})
	if decision.Action == filter.Drop {
		core.Log.Trace(fw, "Filter verdict - DROP", "name", pkt.Name, "kind", pkt.Kind, "dir", dir)
		fw.countDrop(pkt.Kind, "filter")
		return
	}

	var out []face.Face
	if decision.Egress != "" {
		if f := target.GetByEndpoint(decision.Egress); f != nil {
			out = []face.Face{f}
		}
	} else {
		out = fw.policy.Select(pkt, target.GetAll())
	}
	if len(out) == 0 {
		core.Log.Debug(fw, "No face to forward to", "name", pkt.Name, "kind", pkt.Kind, "dir", dir)
		return
	}

	for _, f := range out {
		f.Send(pkt)
	}
	fw.countForward(pkt.Kind, dir)
}

func (fw *Firewall) killSwitch(kind defn.PktKind) bool {
	if kind == defn.Interest {
		return fw.dropInterest
	}
	return fw.dropData
}

func (fw *Firewall) countDrop(kind defn.PktKind, reason string) {
	if kind == defn.Interest {
		fw.counters.NInterestDrops++
	} else {
		fw.counters.NDataDrops++
	}
	fw.metrics.RecordDrop(kind.String(), reason)
}

func (fw *Firewall) countForward(kind defn.PktKind, dir defn.Direction) {
	if kind == defn.Interest {
		fw.counters.NInterestsForwarded++
	} else {
		fw.counters.NDataForwarded++
	}
	fw.metrics.RecordForward(kind.String(), dir.String())
}
