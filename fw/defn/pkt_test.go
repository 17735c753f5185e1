package defn_test

import (
	"errors"
	"testing"

	"github.com/named-data/ndnfw/fw/defn"
	enc "github.com/named-data/ndnd/std/encoding"
	"github.com/named-data/ndnd/std/ndn"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
	tu "github.com/named-data/ndnd/std/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagOf(t *testing.T) {
	assert.Equal(t, defn.TagUnknown, defn.TagOf(nil))
	assert.Equal(t, defn.TagProbe, defn.TagOf([]byte{0x00, 0x01}))
	assert.Equal(t, defn.TagInterest, defn.TagOf([]byte{0x05}))
	assert.Equal(t, defn.TagData, defn.TagOf([]byte{0x06, 0x00}))
	assert.Equal(t, defn.TagUnknown, defn.TagOf([]byte{0x64}))
	assert.Equal(t, "probe", defn.TagProbe.String())
}

func TestParsePkt(t *testing.T) {
	tu.SetT(t)

	name := tu.NoErr(enc.NameFromStr("/a/b"))
	interest := tu.NoErr(spec.Spec{}.MakeInterest(name, &ndn.InterestConfig{}, nil, nil))
	wire := interest.Wire.Join()
	require.Equal(t, byte(0x05), wire[0])

	pkt := tu.NoErr(defn.ParsePkt(wire, defn.Interest))
	assert.Equal(t, defn.Interest, pkt.Kind)
	assert.True(t, name.Equal(pkt.Name))
	assert.Equal(t, wire, pkt.Encode())

	// The parsed packet owns its bytes
	wire[len(wire)-1] ^= 0xFF
	assert.NotEqual(t, wire, pkt.Raw)

	data := tu.NoErr(spec.Spec{}.MakeData(name, &ndn.DataConfig{}, enc.Wire{[]byte("hello")}, nil))
	pkt = tu.NoErr(defn.ParsePkt(data.Wire.Join(), defn.Data))
	assert.Equal(t, defn.Data, pkt.Kind)
	assert.True(t, name.Equal(pkt.Name))

	// Kind mismatch
	_, err := defn.ParsePkt(data.Wire.Join(), defn.Interest)
	assert.True(t, errors.Is(err, defn.ErrParse))

	// Garbage after the tag byte
	_, err = defn.ParsePkt([]byte{0x05, 0xFF, 0x01}, defn.Interest)
	assert.True(t, errors.Is(err, defn.ErrParse))
}
