package face

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := MakeTable("egress")
	a := makeMemFace("udp4://10.0.0.1:6363", nil)
	b := makeMemFace("udp4://10.0.0.2:6363", nil)
	defer a.Close()
	defer b.Close()

	require.True(t, table.Add(a))
	require.True(t, table.Add(b))
	assert.False(t, table.Add(a))
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"udp4://10.0.0.1:6363", "udp4://10.0.0.2:6363"}, table.Endpoints())

	assert.Equal(t, b, table.GetByEndpoint("udp4://10.0.0.2:6363"))
	assert.Nil(t, table.GetByEndpoint("udp4://10.0.0.3:6363"))
	assert.Equal(t, a, table.Get(a.FaceID()))

	snapshot := table.GetAll()
	assert.Equal(t, a, table.Remove(a.FaceID()))
	assert.Nil(t, table.Remove(a.FaceID()))
	assert.Equal(t, []Face{b}, table.GetAll())
	assert.Equal(t, []Face{a, b}, snapshot)
}

func TestTableIndex(t *testing.T) {
	table := MakeTable("ingress")
	faces := make([]*memFace, 0, 64)
	for i := 0; i < 64; i++ {
		f := makeMemFace(fmt.Sprintf("udp4://10.0.1.%d:6363", i), nil)
		defer f.Close()
		faces = append(faces, f)
		require.True(t, table.Add(f))
	}

	for i := 0; i < 64; i += 2 {
		require.NotNil(t, table.Remove(faces[i].FaceID()))
	}
	assert.Equal(t, 32, table.Len())

	for i, f := range faces {
		if i%2 == 0 {
			assert.Nil(t, table.Get(f.FaceID()))
		} else {
			assert.Equal(t, f, table.Get(f.FaceID()))
		}
	}

	// A removed face can be added again and keeps insertion order
	require.True(t, table.Add(faces[0]))
	all := table.GetAll()
	assert.Equal(t, faces[0], all[len(all)-1])
}
