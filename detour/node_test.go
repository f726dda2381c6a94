package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodePool(t *testing.T) {
	pool := NewDtNodePool(4, 2)

	a := pool.GetNode(10, 0)
	require.NotNil(t, a)
	assert.Equal(t, a, pool.GetNode(10, 0))
	assert.Nil(t, pool.FindNode(10, 1))

	b := pool.GetNode(10, 1)
	require.NotNil(t, b)
	assert.NotSame(t, a, b)
	assert.Len(t, pool.FindNodes(10, DT_MAX_STATES_PER_NODE), 2)

	idx := pool.GetNodeIdx(b)
	assert.Same(t, b, pool.GetNodeAtIdx(idx))
	assert.Nil(t, pool.GetNodeAtIdx(0))
	assert.Equal(t, uint32(0), pool.GetNodeIdx(nil))

	require.NotNil(t, pool.GetNode(11, 0))
	require.NotNil(t, pool.GetNode(12, 0))
	assert.Nil(t, pool.GetNode(13, 0), "pool is exhausted")
	assert.Equal(t, 4, pool.GetNodeCount())

	pool.Clear()
	assert.Equal(t, 0, pool.GetNodeCount())
	assert.Nil(t, pool.FindNode(10, 0))
	assert.Equal(t, 4, pool.GetMaxNodes())
}

func TestNodeQueueOrder(t *testing.T) {
	pool := NewDtNodePool(8, 8)
	q := NewDtNodeQueue(8)
	totals := []float32{5, 1, 4, 2, 3}
	for i, total := range totals {
		n := pool.GetNode(DtPolyRef(i+1), 0)
		n.Total = total
		q.Push(n)
	}
	assert.Equal(t, float32(1), q.Top().Total)

	// Decrease a key in place.
	n := pool.FindNode(1, 0)
	n.Total = 0.5
	q.Modify(n)

	var got []float32
	for !q.Empty() {
		got = append(got, q.Pop().Total)
	}
	assert.Equal(t, []float32{0.5, 1, 2, 3, 4}, got)
}

func TestNodeQueueTieBreaksOnPoolOrder(t *testing.T) {
	pool := NewDtNodePool(8, 8)
	q := NewDtNodeQueue(8)
	for _, ref := range []DtPolyRef{7, 3, 5} {
		n := pool.GetNode(ref, 0)
		n.Total = 1
		q.Push(n)
	}
	assert.Equal(t, DtPolyRef(7), q.Pop().Id)
	assert.Equal(t, DtPolyRef(3), q.Pop().Id)
	assert.Equal(t, DtPolyRef(5), q.Pop().Id)
	assert.Equal(t, 0, q.Len())

	q.Push(pool.FindNode(3, 0))
	q.Clear()
	assert.True(t, q.Empty())
}
