/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package face

import (
	"sync"
	"sync/atomic"

	"github.com/named-data/ndnfw/fw/core"
	"github.com/named-data/ndnfw/fw/defn"
)

// InterestCallback receives Interests parsed by a face.
type InterestCallback func(face Face, pkt *defn.Pkt)

// DataCallback receives Data parsed by a face.
type DataCallback func(face Face, pkt *defn.Pkt)

// ErrorCallback is invoked once when a face fails. The face is dead afterwards.
type ErrorCallback func(face Face)

// Face is a bidirectional packet endpoint.
type Face interface {
	String() string

	// Open registers the callbacks and starts receiving.
	// Open must be called at most once.
	Open(onInterest InterestCallback, onData DataCallback, onError ErrorCallback)
	// Close releases the transport. Queued packets are abandoned.
	// The error callback is not invoked for a face closed by its owner.
	Close()
	// Send enqueues a packet. Packets leave in the order they were sent.
	Send(pkt *defn.Pkt)
	// SendBytes enqueues a raw frame on the same queue as Send.
	SendBytes(frame []byte)

	// Protocol is the name of the underlying protocol, e.g. "UDP".
	Protocol() string
	// Endpoint describes the remote endpoint.
	Endpoint() string
	RemoteURI() *defn.URI

	FaceID() uint64
	State() defn.State

	// Counters
	NInBytes() uint64
	NOutBytes() uint64
}

var lastFaceID atomic.Uint64

func nextFaceID() uint64 {
	return lastFaceID.Add(1)
}

// faceBase holds the state shared by all face types: callbacks, the
// outbound queue and the strand that owns it.
type faceBase struct {
	self      Face
	faceID    uint64
	protocol  string
	remoteURI *defn.URI

	onInterest InterestCallback
	onData     DataCallback
	onError    ErrorCallback

	running  atomic.Bool
	failOnce sync.Once
	onClosed func()

	// Outbound path, owned by strand
	strand  *Strand
	queue   [][]byte
	writeCh chan []byte
	write   func([]byte) error

	// Counters
	nInBytes  atomic.Uint64
	nOutBytes atomic.Uint64
}

func (f *faceBase) makeFaceBase(self Face, protocol string, remoteURI *defn.URI, write func([]byte) error) {
	f.self = self
	f.faceID = nextFaceID()
	f.protocol = protocol
	f.remoteURI = remoteURI
	f.write = write
	f.strand = NewStrand()
	f.writeCh = make(chan []byte, 1)
	f.running.Store(true)
	go f.runWriter()
}

func (f *faceBase) setCallbacks(onInterest InterestCallback, onData DataCallback, onError ErrorCallback) {
	f.onInterest = onInterest
	f.onData = onData
	f.onError = onError
}

func (f *faceBase) Protocol() string {
	return f.protocol
}

func (f *faceBase) Endpoint() string {
	return f.remoteURI.String()
}

func (f *faceBase) RemoteURI() *defn.URI {
	return f.remoteURI
}

func (f *faceBase) FaceID() uint64 {
	return f.faceID
}

func (f *faceBase) State() defn.State {
	if f.running.Load() {
		return defn.Up
	}
	return defn.Down
}

func (f *faceBase) NInBytes() uint64 {
	return f.nInBytes.Load()
}

func (f *faceBase) NOutBytes() uint64 {
	return f.nOutBytes.Load()
}

// Send enqueues the wire encoding of pkt.
func (f *faceBase) Send(pkt *defn.Pkt) {
	f.SendBytes(pkt.Encode())
}

// SendBytes enqueues a frame. The frame must not be modified afterwards.
func (f *faceBase) SendBytes(frame []byte) {
	f.strand.Post(func() {
		if !f.running.Load() {
			return
		}
		f.queue = append(f.queue, frame)
		if len(f.queue) == 1 {
			f.writeCh <- f.queue[0]
		}
	})
}

// runWriter performs the physical writes. At most one frame is in flight,
// since the strand only hands over the next frame after completion.
func (f *faceBase) runWriter() {
	for frame := range f.writeCh {
		err := f.write(frame)
		f.strand.Post(func() { f.writeDone(frame, err) })
	}
}

func (f *faceBase) writeDone(frame []byte, err error) {
	if !f.running.Load() {
		return
	}
	if err != nil {
		core.Log.Warn(f.self, "Unable to send on socket - Face DOWN", "err", err)
		f.fail()
		return
	}

	f.nOutBytes.Add(uint64(len(frame)))
	f.queue = f.queue[1:]
	if len(f.queue) > 0 {
		f.writeCh <- f.queue[0]
	} else {
		f.queue = nil
	}
}

// QueueLen returns the number of frames not yet confirmed written.
func (f *faceBase) QueueLen() (n int) {
	if !f.strand.Sync(func() { n = len(f.queue) }) {
		return 0
	}
	return
}

// handleFrame dispatches a received frame by its leading byte.
func (f *faceBase) handleFrame(frame []byte) {
	f.nInBytes.Add(uint64(len(frame)))

	switch defn.TagOf(frame) {
	case defn.TagProbe:
		f.SendBytes(defn.ProbeReply)
	case defn.TagInterest:
		pkt, err := defn.ParsePkt(frame, defn.Interest)
		if err != nil {
			core.Log.Trace(f.self, "Unable to decode Interest - DROP", "err", err)
			return
		}
		pkt.IncomingFaceID = f.faceID
		if f.onInterest != nil {
			f.onInterest(f.self, pkt)
		}
	case defn.TagData:
		pkt, err := defn.ParsePkt(frame, defn.Data)
		if err != nil {
			core.Log.Trace(f.self, "Unable to decode Data - DROP", "err", err)
			return
		}
		pkt.IncomingFaceID = f.faceID
		if f.onData != nil {
			f.onData(f.self, pkt)
		}
	default:
		core.Log.Trace(f.self, "Unknown frame tag - DROP", "size", len(frame))
	}
}

// Close closes the face without invoking the error callback.
func (f *faceBase) Close() {
	f.failOnce.Do(func() { f.shutdown() })
}

// fail marks the face dead and fires the error callback, at most once.
// It is a no-op if the face was already closed by its owner.
// The callback runs outside the once-guard, so it may call Close.
func (f *faceBase) fail() {
	failed := false
	f.failOnce.Do(func() { failed = f.shutdown() })
	if failed && f.onError != nil {
		f.onError(f.self)
	}
}

// shutdown stops the outbound path. It returns false if already stopped.
func (f *faceBase) shutdown() bool {
	if !f.running.Swap(false) {
		return false
	}
	f.strand.Post(func() {
		f.queue = nil
		close(f.writeCh)
	})
	f.strand.Stop()
	if f.onClosed != nil {
		f.onClosed()
	}
	return true
}
