package face

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/named-data/ndnfw/fw/defn"
	enc "github.com/named-data/ndnd/std/encoding"
	"github.com/named-data/ndnd/std/ndn"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
	tu "github.com/named-data/ndnd/std/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// memFace writes into a channel instead of a socket.
type memFace struct {
	faceBase
	written chan []byte
}

func makeMemFace(uri string, write func([]byte) error) *memFace {
	f := &memFace{written: make(chan []byte, 1024)}
	if write == nil {
		write = func(frame []byte) error {
			f.written <- frame
			return nil
		}
	}
	f.makeFaceBase(f, "MEM", defn.DecodeURIString(uri), write)
	return f
}

func (f *memFace) String() string {
	return fmt.Sprintf("mem-face (faceid=%d)", f.faceID)
}

func (f *memFace) Open(onInterest InterestCallback, onData DataCallback, onError ErrorCallback) {
	f.setCallbacks(onInterest, onData, onError)
}

func interestWire(name string) []byte {
	n := tu.NoErr(enc.NameFromStr(name))
	return tu.NoErr(spec.Spec{}.MakeInterest(n, &ndn.InterestConfig{}, nil, nil)).Wire.Join()
}

func dataWire(name string) []byte {
	n := tu.NoErr(enc.NameFromStr(name))
	return tu.NoErr(spec.Spec{}.MakeData(n, &ndn.DataConfig{}, enc.Wire{[]byte("content")}, nil)).Wire.Join()
}

func recvTimeout[T any](t *testing.T, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		require.FailNow(t, "timed out")
	}
	var zero T
	return zero
}

func TestSendFIFO(t *testing.T) {
	gate := make(chan struct{})
	inFlight := atomic.Int32{}
	maxInFlight := atomic.Int32{}
	written := make(chan []byte, 1024)

	f := makeMemFace("udp4://127.0.0.1:1", func(frame []byte) error {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		<-gate
		written <- frame
		inFlight.Add(-1)
		return nil
	})
	defer f.Close()

	for i := 0; i < 100; i++ {
		f.SendBytes([]byte{byte(i)})
	}
	require.Eventually(t, func() bool { return f.QueueLen() == 100 }, waitFor, tick)
	close(gate)

	for i := 0; i < 100; i++ {
		frame := recvTimeout(t, written)
		require.Equal(t, []byte{byte(i)}, frame)
	}
	require.Eventually(t, func() bool { return f.QueueLen() == 0 }, waitFor, tick)
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, uint64(100), f.NOutBytes())
}

func TestWriteErrorEscalates(t *testing.T) {
	f := makeMemFace("udp4://127.0.0.1:1", func([]byte) error {
		return errors.New("broken pipe")
	})

	nErrors := atomic.Int32{}
	f.Open(nil, nil, func(Face) { nErrors.Add(1) })

	f.SendBytes([]byte{1})
	f.SendBytes([]byte{2})
	f.SendBytes([]byte{3})

	require.Eventually(t, func() bool { return nErrors.Load() == 1 }, waitFor, tick)
	assert.Equal(t, defn.Down, f.State())
	assert.Equal(t, 0, f.QueueLen())

	// Sending on a dead face is a no-op
	f.SendBytes([]byte{4})
	f.fail()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), nErrors.Load())
}

func TestCloseDoesNotFireError(t *testing.T) {
	f := makeMemFace("udp4://127.0.0.1:1", nil)
	fired := atomic.Bool{}
	f.Open(nil, nil, func(Face) { fired.Store(true) })

	f.Close()
	f.fail()
	assert.False(t, fired.Load())
	assert.Equal(t, defn.Down, f.State())
	<-f.strand.Done()
}

func TestCloseInsideErrorCallback(t *testing.T) {
	f := makeMemFace("udp4://127.0.0.1:1", func([]byte) error {
		return errors.New("broken pipe")
	})

	closed := make(chan struct{})
	f.Open(nil, nil, func(face Face) {
		face.Close()
		close(closed)
	})
	f.SendBytes([]byte{1})

	recvTimeout(t, closed)
	assert.Equal(t, defn.Down, f.State())
	select {
	case <-f.strand.Done():
	case <-time.After(waitFor):
		require.FailNow(t, "strand still running after the error callback")
	}
}

func TestHandleFrame(t *testing.T) {
	tu.SetT(t)
	f := makeMemFace("udp4://127.0.0.1:1", nil)
	defer f.Close()

	interests := make(chan *defn.Pkt, 8)
	datas := make(chan *defn.Pkt, 8)
	f.Open(
		func(_ Face, pkt *defn.Pkt) { interests <- pkt },
		func(_ Face, pkt *defn.Pkt) { datas <- pkt },
		nil)

	// Probe, whatever follows the tag
	f.handleFrame([]byte{0x00, 0xAB, 0xCD})
	assert.Equal(t, []byte("0"), recvTimeout(t, f.written))

	// Malformed Interest, unknown tag and empty frame are dropped
	f.handleFrame([]byte{0x05, 0xFF, 0x01})
	f.handleFrame([]byte{0x64, 0x00})
	f.handleFrame([]byte{})

	f.handleFrame(interestWire("/a/b"))
	pkt := recvTimeout(t, interests)
	assert.Equal(t, defn.Interest, pkt.Kind)
	assert.Equal(t, "/a/b", pkt.Name.String())
	assert.Equal(t, f.FaceID(), pkt.IncomingFaceID)

	f.handleFrame(dataWire("/a/b/c"))
	pkt = recvTimeout(t, datas)
	assert.Equal(t, defn.Data, pkt.Kind)
	assert.Equal(t, "/a/b/c", pkt.Name.String())

	assert.Len(t, interests, 0)
	assert.Len(t, datas, 0)
	assert.Len(t, f.written, 0)
}

// udpPeer opens a loopback socket standing in for the remote end.
func udpPeer(t *testing.T) (*net.UDPConn, *defn.URI) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, defn.MakeURIFromAddr(conn.LocalAddr())
}

func readDatagram(t *testing.T, conn *net.UDPConn) ([]byte, *net.UDPAddr) {
	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	n, from, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n], from
}

func loopback(uri *defn.URI) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(uri.Port())}
}

func TestUDPFaceProbeAndOrder(t *testing.T) {
	tu.SetT(t)
	peer, peerURI := udpPeer(t)

	f := tu.NoErr(MakeUDPFace(peerURI, nil))
	defer f.Close()
	assert.True(t, f.IsPeerBound())
	assert.Equal(t, "UDP", f.Protocol())
	assert.Equal(t, peerURI.String(), f.Endpoint())
	f.Open(nil, nil, nil)

	_, err := peer.WriteToUDP([]byte{0x00, 0x42, 0x42}, loopback(f.LocalURI()))
	require.NoError(t, err)
	reply, _ := readDatagram(t, peer)
	assert.Equal(t, []byte("0"), reply)

	for i := 0; i < 20; i++ {
		f.SendBytes([]byte{0x06, byte(i)})
	}
	for i := 0; i < 20; i++ {
		frame, _ := readDatagram(t, peer)
		require.Equal(t, []byte{0x06, byte(i)}, frame)
	}
}

func TestUDPFaceDropsSpoofedSource(t *testing.T) {
	tu.SetT(t)
	peer, peerURI := udpPeer(t)
	spoofer, _ := udpPeer(t)

	f := tu.NoErr(MakeUDPFace(peerURI, nil))
	defer f.Close()

	interests := make(chan *defn.Pkt, 8)
	f.Open(func(_ Face, pkt *defn.Pkt) { interests <- pkt }, nil, nil)

	_, err := spoofer.WriteToUDP(interestWire("/spoofed"), loopback(f.LocalURI()))
	require.NoError(t, err)
	_, err = peer.WriteToUDP([]byte{0x05, 0xFF}, loopback(f.LocalURI()))
	require.NoError(t, err)
	_, err = peer.WriteToUDP(interestWire("/genuine"), loopback(f.LocalURI()))
	require.NoError(t, err)

	pkt := recvTimeout(t, interests)
	assert.Equal(t, "/genuine", pkt.Name.String())
	assert.Len(t, interests, 0)
	assert.Equal(t, defn.Up, f.State())
}

func TestUDPListener(t *testing.T) {
	tu.SetT(t)

	l := tu.NoErr(MakeUDPListener(defn.DecodeURIString("udp://127.0.0.1:0")))
	faces := make(chan Face, 4)
	interests := make(chan *defn.Pkt, 8)
	l.OnFace(func(_ MasterFace, f Face) {
		f.Open(func(_ Face, pkt *defn.Pkt) { interests <- pkt }, nil, nil)
		faces <- f
	})
	require.NoError(t, l.Run())
	defer l.Close()
	require.NotZero(t, l.LocalURI().Port())

	peerA, _ := udpPeer(t)
	peerB, _ := udpPeer(t)
	_, err := peerA.WriteToUDP(interestWire("/from/a"), loopback(l.LocalURI()))
	require.NoError(t, err)
	faceA := recvTimeout(t, faces)
	assert.Equal(t, "/from/a", recvTimeout(t, interests).Name.String())

	_, err = peerA.WriteToUDP(interestWire("/from/a/again"), loopback(l.LocalURI()))
	require.NoError(t, err)
	assert.Equal(t, "/from/a/again", recvTimeout(t, interests).Name.String())

	_, err = peerB.WriteToUDP(interestWire("/from/b"), loopback(l.LocalURI()))
	require.NoError(t, err)
	faceB := recvTimeout(t, faces)
	assert.Equal(t, "/from/b", recvTimeout(t, interests).Name.String())
	assert.NotEqual(t, faceA.FaceID(), faceB.FaceID())
	assert.Len(t, faces, 0)

	// Spawned faces answer through the listener socket
	faceA.SendBytes([]byte{0x06, 0x00})
	frame, from := readDatagram(t, peerA)
	assert.Equal(t, []byte{0x06, 0x00}, frame)
	assert.Equal(t, int(l.LocalURI().Port()), from.Port)

	// A closed peer face is forgotten; the next datagram spawns a new one
	faceA.Close()
	_, err = peerA.WriteToUDP(interestWire("/from/a/new"), loopback(l.LocalURI()))
	require.NoError(t, err)
	faceA2 := recvTimeout(t, faces)
	assert.NotEqual(t, faceA.FaceID(), faceA2.FaceID())
}

func TestTCPFace(t *testing.T) {
	tu.SetT(t)

	l := tu.NoErr(MakeTCPListener(defn.DecodeURIString("tcp://127.0.0.1:0")))
	accepted := make(chan Face, 1)
	interests := make(chan *defn.Pkt, 8)
	l.OnFace(func(_ MasterFace, f Face) {
		f.Open(func(_ Face, pkt *defn.Pkt) { interests <- pkt }, nil, nil)
		accepted <- f
	})
	require.NoError(t, l.Run())
	defer l.Close()

	f := tu.NoErr(MakeFace(l.LocalURI()))
	datas := make(chan *defn.Pkt, 8)
	failed := make(chan Face, 1)
	f.Open(nil, func(_ Face, pkt *defn.Pkt) { datas <- pkt }, func(f Face) { failed <- f })
	assert.Equal(t, "TCP", f.Protocol())

	// Two packets in one write are split by their TLV headers
	f.SendBytes(append(interestWire("/tcp/1"), interestWire("/tcp/2")...))
	assert.Equal(t, "/tcp/1", recvTimeout(t, interests).Name.String())
	assert.Equal(t, "/tcp/2", recvTimeout(t, interests).Name.String())

	server := recvTimeout(t, accepted)
	server.SendBytes(dataWire("/tcp/1"))
	assert.Equal(t, "/tcp/1", recvTimeout(t, datas).Name.String())

	// Peer going away fails the client face exactly once
	server.Close()
	assert.Equal(t, f, recvTimeout(t, failed))
	assert.Equal(t, defn.Down, f.State())
}

func TestWebSocketFace(t *testing.T) {
	tu.SetT(t)

	l := NewWebSocketListener(WebSocketListenerConfig{Bind: "127.0.0.1", Port: 0})
	interests := make(chan *defn.Pkt, 8)
	accepted := make(chan Face, 1)
	l.OnFace(func(_ MasterFace, f Face) {
		f.Open(func(_ Face, pkt *defn.Pkt) { interests <- pkt }, nil, nil)
		accepted <- f
	})
	require.NoError(t, l.Run())
	defer l.Close()

	f := tu.NoErr(MakeFace(l.LocalURI()))
	defer f.Close()
	datas := make(chan *defn.Pkt, 8)
	f.Open(nil, func(_ Face, pkt *defn.Pkt) { datas <- pkt }, nil)

	f.SendBytes(interestWire("/ws"))
	assert.Equal(t, "/ws", recvTimeout(t, interests).Name.String())

	server := recvTimeout(t, accepted)
	server.SendBytes([]byte{0x00})
	server.SendBytes(dataWire("/ws"))
	assert.Equal(t, "/ws", recvTimeout(t, datas).Name.String())
}

func TestMakeFaceRejectsUnknownScheme(t *testing.T) {
	_, err := MakeFace(defn.DecodeURIString("unix:///tmp/sock"))
	assert.ErrorIs(t, err, defn.ErrNotCanonical)
}
