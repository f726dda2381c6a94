package detour

import (
	"math"
	"sort"
	"testing"

	"github.com/gorustyt/navquery/common"
	"github.com/stretchr/testify/require"
)

const (
	testTileSize  = 10
	testQuantize  = 10 // 1 / cell size
	testClimb     = 0.5
	testPolyFlags = 0x01
)

type testOffMesh struct {
	start, end [3]float32
	rad        float32
	bidir      bool
	flags      uint16
	area       uint8
	userID     uint32
}

// testTile describes a flat tile the way the mesh builder would hand it over.
// Polygons list vertex indices with a positive xz winding.
type testTile struct {
	x, y     int32
	verts    []float32
	polys    [][]uint16
	areas    []uint8
	flags    []uint16
	offMesh  []testOffMesh
	noBV     bool
	noDetail bool
}

func testParams(maxTiles int32) *NavMeshParams {
	return &NavMeshParams{TileWidth: testTileSize, TileHeight: testTileSize, MaxTiles: maxTiles, MaxPolys: 64}
}

func (tt *testTile) bounds() (bmin, bmax [3]float32) {
	bmin = [3]float32{float32(tt.x) * testTileSize, -1, float32(tt.y) * testTileSize}
	bmax = [3]float32{bmin[0] + testTileSize, 1, bmin[2] + testTileSize}
	return bmin, bmax
}

func borderSide(va, vb []float32, bmin, bmax [3]float32) (uint16, bool) {
	switch {
	case va[0] == bmax[0] && vb[0] == bmax[0]:
		return 0, true
	case va[2] == bmax[2] && vb[2] == bmax[2]:
		return 2, true
	case va[0] == bmin[0] && vb[0] == bmin[0]:
		return 4, true
	case va[2] == bmin[2] && vb[2] == bmin[2]:
		return 6, true
	}
	return 0, false
}

func classifyOffMeshPoint(pt []float32, bmin, bmax [3]float32) uint8 {
	const (
		xp = 1 << 0
		zp = 1 << 1
		xm = 1 << 2
		zm = 1 << 3
	)
	outcode := 0
	if pt[0] >= bmax[0] {
		outcode |= xp
	}
	if pt[2] >= bmax[2] {
		outcode |= zp
	}
	if pt[0] < bmin[0] {
		outcode |= xm
	}
	if pt[2] < bmin[2] {
		outcode |= zm
	}
	switch outcode {
	case xp:
		return 0
	case xp | zp:
		return 1
	case zp:
		return 2
	case xm | zp:
		return 3
	case xm:
		return 4
	case xm | zm:
		return 5
	case zm:
		return 6
	case xp | zm:
		return 7
	}
	return 0xff
}

type bvItem struct {
	bmin, bmax [3]uint16
	i          int32
}

func subdivideBV(items []bvItem, nodes []DtBVNode) []DtBVNode {
	icur := len(nodes)
	nodes = append(nodes, DtBVNode{})
	if len(items) == 1 {
		nodes[icur] = DtBVNode{Bmin: items[0].bmin, Bmax: items[0].bmax, I: items[0].i}
		return nodes
	}
	bmin, bmax := items[0].bmin, items[0].bmax
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
	axis := 0
	for k := 1; k < 3; k++ {
		if bmax[k]-bmin[k] > bmax[axis]-bmin[axis] {
			axis = k
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].bmin[axis] < items[b].bmin[axis] })
	split := len(items) / 2
	nodes = subdivideBV(items[:split], nodes)
	nodes = subdivideBV(items[split:], nodes)
	nodes[icur] = DtBVNode{Bmin: bmin, Bmax: bmax, I: -int32(len(nodes) - icur)}
	return nodes
}

func (tt *testTile) build() *NavMeshData {
	bmin, bmax := tt.bounds()
	verts := append([]float32(nil), tt.verts...)
	ground := len(tt.polys)

	type edge struct{ a, b uint16 }
	owner := map[edge]int{}
	for i, p := range tt.polys {
		for j := range p {
			owner[edge{p[j], p[(j+1)%len(p)]}] = i
		}
	}

	polys := make([]DtPoly, 0, ground+len(tt.offMesh))
	for i, p := range tt.polys {
		var poly DtPoly
		poly.VertCount = uint8(len(p))
		poly.Flags = testPolyFlags
		if i < len(tt.flags) {
			poly.Flags = tt.flags[i]
		}
		if i < len(tt.areas) {
			poly.SetArea(tt.areas[i])
		}
		poly.SetType(DT_POLYTYPE_GROUND)
		for j := range p {
			poly.Verts[j] = p[j]
			a, b := p[j], p[(j+1)%len(p)]
			if nei, ok := owner[edge{b, a}]; ok {
				poly.Neis[j] = uint16(nei + 1)
				continue
			}
			if side, ok := borderSide(common.GetVert3(verts, a), common.GetVert3(verts, b), bmin, bmax); ok {
				poly.Neis[j] = DT_EXT_LINK | side
			}
		}
		polys = append(polys, poly)
	}

	cons := make([]DtOffMeshConnection, 0, len(tt.offMesh))
	for i, om := range tt.offMesh {
		base := uint16(len(verts) / 3)
		verts = append(verts, om.start[:]...)
		verts = append(verts, om.end[:]...)
		var poly DtPoly
		poly.VertCount = 2
		poly.Verts[0] = base
		poly.Verts[1] = base + 1
		poly.Flags = om.flags
		poly.SetArea(om.area)
		poly.SetType(DT_POLYTYPE_OFFMESH_CONNECTION)
		polys = append(polys, poly)

		con := DtOffMeshConnection{
			Rad:    om.rad,
			Poly:   uint16(ground + i),
			Side:   classifyOffMeshPoint(om.end[:], bmin, bmax),
			UserId: om.userID,
		}
		copy(con.Pos[:3], om.start[:])
		copy(con.Pos[3:], om.end[:])
		if om.bidir {
			con.Flags = DT_OFFMESH_CON_BIDIR
		}
		cons = append(cons, con)
	}

	var dmeshes []DtPolyDetail
	var dtris []uint8
	if !tt.noDetail {
		for _, p := range tt.polys {
			nv := len(p)
			dmeshes = append(dmeshes, DtPolyDetail{TriBase: uint32(len(dtris) / 4), TriCount: uint8(nv - 2)})
			for j := 2; j < nv; j++ {
				flags := uint8(DT_DETAIL_EDGE_BOUNDARY << 2)
				if j == 2 {
					flags |= DT_DETAIL_EDGE_BOUNDARY
				}
				if j == nv-1 {
					flags |= DT_DETAIL_EDGE_BOUNDARY << 4
				}
				dtris = append(dtris, 0, uint8(j-1), uint8(j), flags)
			}
		}
	}

	var bvtree []DtBVNode
	if !tt.noBV && ground > 0 {
		items := make([]bvItem, ground)
		for i, p := range tt.polys {
			pmin := []float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
			pmax := []float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
			for _, vi := range p {
				common.Vmin(pmin, common.GetVert3(verts, vi))
				common.Vmax(pmax, common.GetVert3(verts, vi))
			}
			items[i].i = int32(i)
			for k := 0; k < 3; k++ {
				items[i].bmin[k] = uint16(math.Floor(float64((pmin[k] - bmin[k]) * testQuantize)))
				items[i].bmax[k] = uint16(math.Ceil(float64((pmax[k] - bmin[k]) * testQuantize)))
			}
		}
		bvtree = subdivideBV(items, nil)
	}

	header := &DtMeshHeader{
		Magic:           DT_NAVMESH_MAGIC,
		Version:         DT_NAVMESH_VERSION,
		X:               tt.x,
		Y:               tt.y,
		PolyCount:       int32(len(polys)),
		VertCount:       int32(len(verts) / 3),
		MaxLinkCount:    int32(len(polys)*DT_VERTS_PER_POLYGON*2 + len(cons)*4 + 8),
		DetailMeshCount: int32(len(dmeshes)),
		DetailTriCount:  int32(len(dtris) / 4),
		BvNodeCount:     int32(len(bvtree)),
		OffMeshConCount: int32(len(cons)),
		OffMeshBase:     int32(ground),
		WalkableHeight:  2,
		WalkableRadius:  0.5,
		WalkableClimb:   testClimb,
		Bmin:            bmin,
		Bmax:            bmax,
		BvQuantFactor:   testQuantize,
	}
	return &NavMeshData{
		Header:      header,
		NavVerts:    verts,
		NavPolys:    polys,
		NavDMeshes:  dmeshes,
		NavDTris:    dtris,
		NavBvtree:   bvtree,
		OffMeshCons: cons,
	}
}

// gridTile covers the whole tile with n*n unit quads. Cell (i, k) spans
// x in [i, i+1] and z in [k, k+1] cell units and is polygon k*n+i.
func gridTile(x, y int32, n int) *testTile {
	tt := &testTile{x: x, y: y}
	cell := float32(testTileSize) / float32(n)
	ox := float32(x) * testTileSize
	oz := float32(y) * testTileSize
	vid := func(i, k int) uint16 { return uint16(i*(n+1) + k) }
	for i := 0; i <= n; i++ {
		for k := 0; k <= n; k++ {
			tt.verts = append(tt.verts, ox+float32(i)*cell, 0, oz+float32(k)*cell)
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			tt.polys = append(tt.polys, []uint16{vid(i, k), vid(i, k+1), vid(i+1, k+1), vid(i+1, k)})
		}
	}
	return tt
}

// lTile is three quads of size 5: A=[0,5]x[0,5], B=[5,10]x[0,5], C=[5,10]x[5,10].
func lTile() *testTile {
	return &testTile{
		verts: []float32{
			0, 0, 0,
			0, 0, 5,
			5, 0, 5,
			5, 0, 0,
			10, 0, 5,
			10, 0, 0,
			5, 0, 10,
			10, 0, 10,
		},
		polys: [][]uint16{{0, 1, 2, 3}, {3, 2, 4, 5}, {2, 6, 7, 4}},
	}
}

// offMeshPair returns two tiles that only connect through an off-mesh
// connection from (7,0,5) to (13,0,5).
func offMeshPair(bidir bool) (*testTile, *testTile) {
	a := &testTile{
		x:     0,
		verts: []float32{0, 0, 0, 0, 0, 10, 8, 0, 10, 8, 0, 0},
		polys: [][]uint16{{0, 1, 2, 3}},
		offMesh: []testOffMesh{{
			start:  [3]float32{7, 0, 5},
			end:    [3]float32{13, 0, 5},
			rad:    0.5,
			bidir:  bidir,
			flags:  testPolyFlags,
			userID: 42,
		}},
	}
	b := &testTile{
		x:     1,
		verts: []float32{12, 0, 0, 12, 0, 10, 20, 0, 10, 20, 0, 0},
		polys: [][]uint16{{0, 1, 2, 3}},
	}
	return a, b
}

func newTestMesh(t *testing.T, maxTiles int32, tiles ...*testTile) (*DtNavMesh, []DtTileRef) {
	t.Helper()
	mesh, status := NewDtNavMesh(testParams(maxTiles))
	require.True(t, status.Succeed(), status.String())
	refs := make([]DtTileRef, 0, len(tiles))
	for _, tt := range tiles {
		ref, status := mesh.AddTile(tt.build(), 0)
		require.True(t, status.Succeed(), status.String())
		refs = append(refs, ref)
	}
	return mesh, refs
}

func newTestQuery(t *testing.T, mesh *DtNavMesh) *DtNavMeshQuery {
	t.Helper()
	q, status := NewDtNavMeshQuery(mesh, 2048)
	require.True(t, status.Succeed(), status.String())
	return q
}

func polyRef(mesh *DtNavMesh, tileRef DtTileRef, ip int) DtPolyRef {
	return mesh.GetPolyRefBase(mesh.GetTileByRef(tileRef)) | DtPolyRef(ip)
}

func vec(x, y, z float32) common.Vec3 { return common.Vec3{x, y, z} }
