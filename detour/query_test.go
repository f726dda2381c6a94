package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDtNavMeshQueryLimits(t *testing.T) {
	mesh, _ := newTestMesh(t, 1, gridTile(0, 0, 1))
	for _, n := range []int{0, -1, DT_MAX_NODES + 1} {
		_, status := NewDtNavMeshQuery(mesh, n)
		assert.True(t, status.Detail(DT_INVALID_PARAM), "maxNodes %d", n)
	}
	_, status := NewDtNavMeshQuery(nil, 16)
	assert.True(t, status.Failed())

	q, status := NewDtNavMeshQuery(mesh, DT_MAX_NODES)
	require.True(t, status.Succeed())
	assert.Same(t, mesh, q.GetAttachedNavMesh())
	assert.Equal(t, DT_MAX_NODES, q.GetNodePool().GetMaxNodes())
}

func TestFindNearestPolyAtCentroid(t *testing.T) {
	cases := []struct {
		name string
		tile *testTile
	}{
		{"grid", gridTile(0, 0, 3)},
		{"grid without bvtree", func() *testTile { tt := gridTile(0, 0, 3); tt.noBV = true; return tt }()},
		{"grid without detail", func() *testTile { tt := gridTile(0, 0, 3); tt.noDetail = true; return tt }()},
		{"l shape", lTile()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mesh, refs := newTestMesh(t, 1, c.tile)
			q := newTestQuery(t, mesh)
			tile := mesh.GetTileByRef(refs[0])
			for i := range tile.Polys {
				ref := polyRef(mesh, refs[0], i)
				center := dtCalcPolyCenter(tile, &tile.Polys[i])
				got, pt, over, status := q.FindNearestPoly(vec(center[0], center[1], center[2]), vec(0.5, 1, 0.5), nil)
				require.True(t, status.Succeed(), status.String())
				assert.Equal(t, ref, got)
				assert.True(t, over)
				assert.InDelta(t, center[0], pt.X(), 1e-4)
				assert.InDelta(t, center[2], pt.Z(), 1e-4)
			}
		})
	}
}

func TestFindNearestPolyPrefersPolyBelow(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, gridTile(0, 0, 2))
	q := newTestQuery(t, mesh)

	got, pt, over, status := q.FindNearestPoly(vec(2, 0.4, 2), vec(2, 2, 2), nil)
	require.True(t, status.Succeed())
	assert.Equal(t, polyRef(mesh, refs[0], 0), got)
	assert.True(t, over)
	assert.InDelta(t, 0, pt.Y(), 1e-6)

	// Off the mesh, the closest boundary point wins.
	got, pt, over, status = q.FindNearestPoly(vec(-0.5, 0, 7), vec(1, 1, 1), nil)
	require.True(t, status.Succeed())
	assert.Equal(t, polyRef(mesh, refs[0], 2), got)
	assert.False(t, over)
	assert.InDelta(t, 0, pt.X(), 1e-5)
	assert.InDelta(t, 7, pt.Z(), 1e-5)
}

func TestFindNearestPolyNotFound(t *testing.T) {
	mesh, _ := newTestMesh(t, 1, gridTile(0, 0, 2))
	q := newTestQuery(t, mesh)

	ref, _, _, status := q.FindNearestPoly(vec(50, 0, 50), vec(1, 1, 1), nil)
	assert.Zero(t, ref)
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(DT_NOT_FOUND))
	assert.ErrorIs(t, status.Err(), ErrNotFound)

	_, _, _, status = q.FindNearestPoly(vec(5, 0, 5), vec(-1, 1, 1), nil)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
}

func TestQueryPolygons(t *testing.T) {
	for _, noBV := range []bool{false, true} {
		tt := gridTile(0, 0, 3)
		tt.noBV = noBV
		tt.offMesh = []testOffMesh{{start: [3]float32{1, 0, 1}, end: [3]float32{2, 0, 2}, rad: 0.5, flags: testPolyFlags}}
		mesh, refs := newTestMesh(t, 1, tt)
		q := newTestQuery(t, mesh)

		all, status := q.QueryPolygons(vec(5, 0, 5), vec(5, 1, 5), nil, 32)
		require.True(t, status.Succeed())
		var want []DtPolyRef
		for i := 0; i < 9; i++ {
			want = append(want, polyRef(mesh, refs[0], i))
		}
		assert.ElementsMatch(t, want, all, "off-mesh polygons are never returned")

		// A small box in the middle cell only.
		some, status := q.QueryPolygons(vec(5, 0, 5), vec(0.5, 1, 0.5), nil, 32)
		require.True(t, status.Succeed())
		assert.Equal(t, []DtPolyRef{polyRef(mesh, refs[0], 4)}, some)

		few, status := q.QueryPolygons(vec(5, 0, 5), vec(5, 1, 5), nil, 4)
		assert.True(t, status.Succeed())
		assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))
		assert.Len(t, few, 4)
	}
}

type countingQuery struct {
	batches, polys int
}

func (c *countingQuery) Process(_ *DtMeshTile, polys []*DtPoly, refs []DtPolyRef) {
	c.batches++
	c.polys += len(refs)
}

func TestQueryPolygonsWithBatches(t *testing.T) {
	mesh, _ := newTestMesh(t, 1, gridTile(0, 0, 6))
	q := newTestQuery(t, mesh)

	c := &countingQuery{}
	status := q.QueryPolygonsWith(vec(5, 0, 5), vec(5, 1, 5), nil, c)
	require.True(t, status.Succeed())
	assert.Equal(t, 36, c.polys)
	assert.Equal(t, 2, c.batches)

	assert.True(t, q.QueryPolygonsWith(vec(5, 0, 5), vec(5, 1, 5), nil, nil).Failed())
}

func TestSpatialQueriesHonourFilter(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, gridTile(0, 0, 3))
	q := newTestQuery(t, mesh)
	blocked := polyRef(mesh, refs[0], 4)
	require.True(t, mesh.SetPolyFlags(blocked, 0x02).Succeed())

	filter := NewDtQueryFilter()
	filter.SetExcludeFlags(0x02)

	got, _, over, status := q.FindNearestPoly(vec(5, 0, 5), vec(2, 1, 2), filter)
	require.True(t, status.Succeed())
	assert.NotEqual(t, blocked, got)
	assert.False(t, over)

	polys, status := q.QueryPolygons(vec(5, 0, 5), vec(5, 1, 5), filter, 32)
	require.True(t, status.Succeed())
	assert.Len(t, polys, 8)
	assert.NotContains(t, polys, blocked)

	assert.False(t, q.IsValidPolyRef(blocked, filter))
	assert.True(t, q.IsValidPolyRef(blocked, nil))
}

func TestClosestPointOnPoly(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)

	pt, over, status := q.ClosestPointOnPoly(a, vec(2, 3, 2))
	require.True(t, status.Succeed())
	assert.True(t, over)
	assert.InDeltaSlice(t, []float32{2, 0, 2}, pt[:], 1e-5)

	pt, over, status = q.ClosestPointOnPoly(a, vec(-1, 0, 2))
	require.True(t, status.Succeed())
	assert.False(t, over)
	assert.InDeltaSlice(t, []float32{0, 0, 2}, pt[:], 1e-5)

	_, _, status = q.ClosestPointOnPoly(a+100, vec(0, 0, 0))
	assert.True(t, status.Detail(DT_INVALID_REF))

	pt, status = q.ClosestPointOnPolyBoundary(a, vec(2, 3, 2))
	require.True(t, status.Succeed())
	assert.Equal(t, vec(2, 3, 2), pt)

	pt, status = q.ClosestPointOnPolyBoundary(a, vec(7, 0, -1))
	require.True(t, status.Succeed())
	assert.InDeltaSlice(t, []float32{5, 0, 0}, pt[:], 1e-5)
}

func TestGetPolyHeight(t *testing.T) {
	slope := &testTile{
		verts: []float32{0, 0, 0, 0, 0, 10, 10, 1, 10, 10, 1, 0},
		polys: [][]uint16{{0, 1, 2, 3}},
		offMesh: []testOffMesh{{
			start: [3]float32{2, 0.5, 2}, end: [3]float32{8, 0.8, 2}, rad: 0.5, flags: testPolyFlags,
		}},
	}
	mesh, refs := newTestMesh(t, 1, slope)
	q := newTestQuery(t, mesh)
	ground := polyRef(mesh, refs[0], 0)

	h, status := q.GetPolyHeight(ground, vec(4, 100, 6))
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.4, h, 1e-5)

	_, status = q.GetPolyHeight(ground, vec(11, 0, 6))
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(DT_INVALID_PARAM))

	// Off-mesh connections interpolate along the segment; the start was
	// snapped onto the slope when the tile was added.
	h, status = q.GetPolyHeight(polyRef(mesh, refs[0], 1), vec(2, 0, 2))
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.2, h, 1e-5)
	h, status = q.GetPolyHeight(polyRef(mesh, refs[0], 1), vec(5, 0, 2))
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.5, h, 1e-5)
}

func TestPortalPoints(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)
	b := polyRef(mesh, refs[0], 1)
	c := polyRef(mesh, refs[0], 2)

	left, right, status := q.GetPortalPoints(a, b)
	require.True(t, status.Succeed())
	assert.Equal(t, vec(5, 0, 5), left)
	assert.Equal(t, vec(5, 0, 0), right)

	mid, status := q.GetEdgeMidPoint(a, b)
	require.True(t, status.Succeed())
	assert.Equal(t, vec(5, 0, 2.5), mid)

	_, _, status = q.GetPortalPoints(a, c)
	assert.True(t, status.Failed())
}

func TestPortalPointsAcrossTilesAreClamped(t *testing.T) {
	mesh, refs := newTestMesh(t, 2, gridTile(0, 0, 1), gridTile(1, 0, 2))
	q := newTestQuery(t, mesh)
	from := polyRef(mesh, refs[0], 0)
	to := polyRef(mesh, refs[1], 0)

	left, right, status := q.GetPortalPoints(from, to)
	require.True(t, status.Succeed())
	assert.InDeltaSlice(t, []float32{10, 0, 5}, left[:], 0.05)
	assert.InDeltaSlice(t, []float32{10, 0, 0}, right[:], 1e-5)
}
