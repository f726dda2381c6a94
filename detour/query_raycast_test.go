package detour

import (
	"math"
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaycastReachesEnd(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)
	b := polyRef(mesh, refs[0], 1)
	c := polyRef(mesh, refs[0], 2)

	hit, status := q.Raycast(a, vec(2, 0, 2), vec(8, 0, 2), nil, 0, 8)
	require.True(t, status.Succeed())
	assert.True(t, hit.Reached())
	assert.Equal(t, []DtPolyRef{a, b}, hit.Path)
	assert.Zero(t, hit.PathCost)

	hit, status = q.Raycast(a, vec(4, 0, 1), vec(7, 0, 9), nil, 0, 8)
	require.True(t, status.Succeed())
	assert.True(t, hit.Reached())
	assert.Equal(t, []DtPolyRef{a, b, c}, hit.Path)
}

func TestRaycastHitsWall(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)

	hit, status := q.Raycast(a, vec(2, 0, 2), vec(2, 0, 8), nil, 0, 8)
	require.True(t, status.Succeed())
	assert.False(t, hit.Reached())
	assert.InDelta(t, 0.5, hit.T, 1e-5)
	assert.Equal(t, 1, hit.HitEdgeIndex)
	assert.InDeltaSlice(t, []float32{0, 0, -1}, hit.HitNormal[:], 1e-5)
	assert.Equal(t, []DtPolyRef{a}, hit.Path)
}

func TestRaycastCostsAndLimits(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)
	b := polyRef(mesh, refs[0], 1)

	hit, status := q.Raycast(a, vec(2, 0, 2), vec(8, 0, 2), nil, DT_RAYCAST_USE_COSTS, 8)
	require.True(t, status.Succeed())
	assert.InDelta(t, 6.0, hit.PathCost, 1e-4)

	hit, status = q.Raycast(a, vec(2, 0, 2), vec(8, 0, 2), nil, 0, 1)
	require.True(t, status.Succeed())
	assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))
	assert.True(t, hit.Reached())
	assert.Equal(t, []DtPolyRef{a}, hit.Path)

	// A filtered neighbour is a wall.
	require.True(t, mesh.SetPolyFlags(b, 0x02).Succeed())
	filter := NewDtQueryFilter()
	filter.SetExcludeFlags(0x02)
	hit, status = q.Raycast(a, vec(2, 0, 2), vec(8, 0, 2), filter, 0, 8)
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.5, hit.T, 1e-5)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, hit.HitNormal[:], 1e-5)
}

func TestRaycastAcrossPartialTilePortals(t *testing.T) {
	mesh, refs := newTestMesh(t, 2, gridTile(0, 0, 1), gridTile(1, 0, 2))
	q := newTestQuery(t, mesh)
	west := polyRef(mesh, refs[0], 0)

	hit, status := q.Raycast(west, vec(5, 0, 2), vec(14, 0, 2), nil, 0, 8)
	require.True(t, status.Succeed())
	assert.True(t, hit.Reached())
	assert.Equal(t, []DtPolyRef{west, polyRef(mesh, refs[1], 0)}, hit.Path)

	hit, status = q.Raycast(west, vec(5, 0, 8), vec(14, 0, 8), nil, 0, 8)
	require.True(t, status.Succeed())
	assert.True(t, hit.Reached())
	assert.Equal(t, []DtPolyRef{west, polyRef(mesh, refs[1], 2)}, hit.Path)
}

func TestRaycastInvalidInput(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)

	_, status := q.Raycast(0, vec(2, 0, 2), vec(8, 0, 2), nil, 0, 8)
	assert.True(t, status.Failed())

	_, status = q.Raycast(a, vec(2, 0, 2), vec(8, 0, 2), nil, 0, -1)
	assert.True(t, status.Detail(DT_INVALID_PARAM))

	end := vec(8, 0, 2)
	end[0] = float32(math.Inf(1))
	_, status = q.Raycast(a, vec(2, 0, 2), end, nil, 0, 8)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
}

func TestFindDistanceToWall(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)
	b := polyRef(mesh, refs[0], 1)

	dist, pos, normal, status := q.FindDistanceToWall(a, vec(1, 0, 2), 10, nil)
	require.True(t, status.Succeed())
	assert.InDelta(t, 1.0, dist, 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, 2}, pos[:], 1e-5)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, normal[:], 1e-5)

	// Tile borders without a neighbour tile are walls too.
	dist, pos, normal, status = q.FindDistanceToWall(b, vec(6, 0, 2.5), 10, nil)
	require.True(t, status.Succeed())
	assert.InDelta(t, 2.5, dist, 1e-5)
	assert.InDeltaSlice(t, []float32{6, 0, 0}, pos[:], 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, normal[:], 1e-5)

	dist, pos, normal, status = q.FindDistanceToWall(a, vec(2, 0, 2), 0.5, nil)
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.5, dist, 1e-5)
	assert.Zero(t, pos)
	assert.Zero(t, normal)
}

func TestFindDistanceToWallHonoursFilter(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, lTile())
	q := newTestQuery(t, mesh)
	a := polyRef(mesh, refs[0], 0)
	b := polyRef(mesh, refs[0], 1)
	require.True(t, mesh.SetPolyFlags(b, 0x02).Succeed())
	filter := NewDtQueryFilter()
	filter.SetExcludeFlags(0x02)

	dist, pos, normal, status := q.FindDistanceToWall(a, vec(4, 0, 2), 10, filter)
	require.True(t, status.Succeed())
	assert.InDelta(t, 1.0, dist, 1e-5)
	assert.InDeltaSlice(t, []float32{5, 0, 2}, pos[:], 1e-5)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, normal[:], 1e-5)

	_, _, _, status = q.FindDistanceToWall(a, vec(4, 0, 2), -1, nil)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
	_, _, _, status = q.FindDistanceToWall(b, vec(6, 0, 2), 1, filter)
	assert.True(t, status.Detail(DT_FILTERED_OUT))
}

func TestFindPolysAroundShape(t *testing.T) {
	mesh, refs := newTestMesh(t, 1, gridTile(0, 0, 3))
	q := newTestQuery(t, mesh)
	center := polyRef(mesh, refs[0], 4)
	east := polyRef(mesh, refs[0], 5)

	shape := []common.Vec3{vec(4, 0, 4.5), vec(4, 0, 5.5), vec(9, 0, 5.5), vec(9, 0, 4.5)}
	polys, parents, costs, status := q.FindPolysAroundShape(center, shape, nil, 16)
	require.True(t, status.Succeed())
	assert.Equal(t, []DtPolyRef{center, east}, polys)
	assert.Equal(t, []DtPolyRef{0, center}, parents)
	assert.Zero(t, costs[0])
	assert.Greater(t, costs[1], float32(0))

	_, _, _, status = q.FindPolysAroundShape(center, shape[:2], nil, 16)
	assert.True(t, status.Detail(DT_INVALID_PARAM))
}
