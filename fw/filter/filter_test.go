package filter_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/named-data/ndnfw/fw/defn"
	"github.com/named-data/ndnfw/fw/face"
	"github.com/named-data/ndnfw/fw/filter"
	enc "github.com/named-data/ndnd/std/encoding"
	tu "github.com/named-data/ndnd/std/utils/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func query(kind defn.PktKind, dir defn.Direction, faceEp string, name string) filter.Query {
	return filter.Query{
		Kind:      kind,
		Direction: dir,
		Face:      faceEp,
		Name:      tu.NoErr(enc.NameFromStr(name)),
	}
}

func TestRuleNormalize(t *testing.T) {
	tu.SetT(t)

	r := tu.NoErr(filter.Rule{Prefix: "/a/b"}.Normalize())
	assert.Equal(t, filter.Rule{Kind: "any", Direction: "any", Prefix: "/a/b", Action: "drop"}, r)

	r = tu.NoErr(filter.Rule{
		Kind: "Interest", Direction: "INGRESS", Prefix: "/a", Face: "127.0.0.1:7000",
		Action: "accept", Egress: "udp://10.0.0.1:6363",
	}.Normalize())
	assert.Equal(t, "interest", r.Kind)
	assert.Equal(t, "ingress", r.Direction)
	assert.Equal(t, "udp4://127.0.0.1:7000", r.Face)
	assert.Equal(t, "udp4://10.0.0.1:6363", r.Egress)

	for _, bad := range []filter.Rule{
		{Kind: "nack", Prefix: "/a"},
		{Direction: "sideways", Prefix: "/a"},
		{Action: "reject", Prefix: "/a"},
		{Prefix: "/a", Egress: "udp://10.0.0.1:6363"},
		{Prefix: "/a", Face: "unix:///tmp/x"},
	} {
		_, err := bad.Normalize()
		assert.True(t, errors.Is(err, defn.ErrBadRule), bad.String())
	}
}

func TestRuleFilterVerdict(t *testing.T) {
	tu.SetT(t)
	f := tu.NoErr(filter.NewRuleFilter(filter.NewMemoryStore()))

	// Empty rule set forwards
	d := f.Verdict(query(defn.Interest, defn.Ingress, "", "/a/b"))
	assert.Equal(t, filter.Forward, d.Action)

	require.NoError(t, f.AddRules([]filter.Rule{
		{Kind: "interest", Prefix: "/a", Action: "drop"},
		{Kind: "interest", Prefix: "/a/b/public", Action: "accept"},
		{Kind: "data", Direction: "egress", Prefix: "/secret", Action: "drop"},
		{Prefix: "/only", Face: "udp://127.0.0.1:7000", Action: "drop"},
		{Prefix: "/tie", Action: "accept", Egress: "udp://10.0.0.1:6363"},
		{Prefix: "/tie", Action: "drop"},
	}))

	assert.Equal(t, filter.Drop, f.Verdict(query(defn.Interest, defn.Ingress, "", "/a/b")).Action)
	assert.Equal(t, filter.Drop, f.Verdict(query(defn.Interest, defn.Egress, "", "/a")).Action)
	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Data, defn.Ingress, "", "/a/b")).Action)
	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Interest, defn.Ingress, "", "/a/b/public/x")).Action)
	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Interest, defn.Ingress, "", "/ab")).Action)

	assert.Equal(t, filter.Drop, f.Verdict(query(defn.Data, defn.Egress, "", "/secret/1")).Action)
	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Data, defn.Ingress, "", "/secret/1")).Action)

	assert.Equal(t, filter.Drop, f.Verdict(query(defn.Data, defn.Ingress, "udp4://127.0.0.1:7000", "/only")).Action)
	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Data, defn.Ingress, "udp4://127.0.0.1:7001", "/only")).Action)

	// Equal prefixes: the earliest rule wins
	d = f.Verdict(query(defn.Interest, defn.Ingress, "", "/tie/x"))
	assert.Equal(t, filter.Decision{Action: filter.Forward, Egress: "udp4://10.0.0.1:6363"}, d)
}

func TestRuleFilterDelta(t *testing.T) {
	tu.SetT(t)
	store := filter.NewMemoryStore()
	f := tu.NoErr(filter.NewRuleFilter(store))

	require.NoError(t, f.AddRules([]filter.Rule{{Prefix: "/a"}, {Prefix: "/b"}}))
	// Duplicates are skipped, also in normalized form
	require.NoError(t, f.AddRules([]filter.Rule{{Prefix: "/a", Kind: "ANY", Action: "drop"}}))
	assert.Len(t, f.Rules(), 2)

	// A bad rule rejects the whole delta
	err := f.AddRules([]filter.Rule{{Prefix: "/c"}, {Prefix: "/d", Action: "maybe"}})
	assert.True(t, errors.Is(err, defn.ErrBadRule))
	assert.Len(t, f.Rules(), 2)

	// Unknown rules are ignored on delete
	require.NoError(t, f.DelRules([]filter.Rule{{Prefix: "/a"}, {Prefix: "/zzz"}}))
	rules := f.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "/b", rules[0].Prefix)

	saved := tu.NoErr(store.Load())
	assert.Equal(t, rules, saved)

	assert.Equal(t, filter.Forward, f.Verdict(query(defn.Interest, defn.Ingress, "", "/a")).Action)
	assert.Equal(t, filter.Drop, f.Verdict(query(defn.Interest, defn.Ingress, "", "/b")).Action)
}

func TestBadgerStore(t *testing.T) {
	tu.SetT(t)
	dir := t.TempDir()

	store := tu.NoErr(filter.NewBadgerStore(dir))
	f := tu.NoErr(filter.NewRuleFilter(store))
	require.NoError(t, f.AddRules([]filter.Rule{
		{Prefix: "/z", Action: "drop"},
		{Prefix: "/a", Action: "accept"},
		{Prefix: "/m", Kind: "data"},
	}))
	require.NoError(t, f.DelRules([]filter.Rule{{Prefix: "/a", Action: "accept"}}))
	want := f.Rules()
	require.NoError(t, store.Close())

	// Rules survive a restart in their original order
	store = tu.NoErr(filter.NewBadgerStore(dir))
	defer store.Close()
	f = tu.NoErr(filter.NewRuleFilter(store))
	assert.Equal(t, want, f.Rules())
	assert.Equal(t, "/z", f.Rules()[0].Prefix)
}

func TestLoadRuleFile(t *testing.T) {
	tu.SetT(t)
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - kind: interest
    prefix: /a/b
    action: drop
  - prefix: /pub
    action: accept
    egress: udp://10.0.0.1:6363
`), 0644))

	rules := tu.NoErr(filter.LoadRuleFile(path))
	require.Len(t, rules, 2)
	assert.Equal(t, "/a/b", rules[0].Prefix)
	assert.Equal(t, "udp://10.0.0.1:6363", rules[1].Egress)

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - prefx: /a\n"), 0644))
	_, err := filter.LoadRuleFile(path)
	assert.Error(t, err)
}

// stubFace only carries an identity.
type stubFace struct {
	face.Face
	id uint64
}

func (f *stubFace) FaceID() uint64 {
	return f.id
}

func TestPolicies(t *testing.T) {
	tu.SetT(t)
	faces := []face.Face{&stubFace{id: 1}, &stubFace{id: 2}, &stubFace{id: 3}}
	pkt := &defn.Pkt{Kind: defn.Interest, Name: tu.NoErr(enc.NameFromStr("/a/b"))}

	p := tu.NoErr(filter.ParsePolicy("broadcast"))
	assert.Equal(t, faces, p.Select(pkt, faces))

	p = tu.NoErr(filter.ParsePolicy("round-robin"))
	var ids []uint64
	for i := 0; i < 4; i++ {
		sel := p.Select(pkt, faces)
		require.Len(t, sel, 1)
		ids = append(ids, sel[0].FaceID())
	}
	assert.Equal(t, []uint64{1, 2, 3, 1}, ids)
	assert.Empty(t, p.Select(pkt, nil))

	p = tu.NoErr(filter.ParsePolicy("name-hash"))
	first := p.Select(pkt, faces)
	require.Len(t, first, 1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Select(pkt, faces))
	}

	_, err := filter.ParsePolicy("random")
	assert.Error(t, err)
}
