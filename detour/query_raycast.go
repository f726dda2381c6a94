package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
)

// Raycast options.
const (
	DT_RAYCAST_USE_COSTS = 0x01 ///< Accumulate the filtered path cost along the ray.
)

// RaycastHit describes where a ray cast along the surface stopped.
type RaycastHit struct {
	// T is the hit parameter along the ray, math.MaxFloat32 when the ray
	// reached the end position without hitting a wall.
	T float32

	// HitNormal is the normal of the wall that was hit.
	HitNormal common.Vec3

	// HitEdgeIndex is the edge of the last polygon crossed or hit by the ray.
	HitEdgeIndex int

	// Path holds the visited polygons, starting with startRef.
	Path []DtPolyRef

	// PathCost is the cost up to the hit point. Only set with DT_RAYCAST_USE_COSTS.
	PathCost float32
}

// Reached reports whether the ray got to the end position.
func (h *RaycastHit) Reached() bool { return h.T == math.MaxFloat32 }

// / Casts a 'walkability' ray along the surface of the navigation mesh from
// / the start position toward the end position.
// /  @param[in]		startRef	The reference id of the start polygon.
// /  @param[in]		startPos	A position within the start polygon representing
// /  								the start of the ray. [(x, y, z)]
// /  @param[in]		endPos		The position to cast the ray toward. [(x, y, z)]
// /  @param[in]		filter		The polygon filter to apply to the query. [opt]
// /  @param[in]		options		Govern how the raycast behaves. See DT_RAYCAST_USE_COSTS.
// /  @param[in]		maxPath		The maximum number of polygons Path can hold.
// /
// / The ray is a 2D check on the xz-plane: the y of the end position is
// / ignored, which makes it suited to short distance checks only.
// / If 0 < T < 1 the wall was hit at startPos + (endPos - startPos) * T.
// / T of zero means startPos lies on the wall. A path longer than maxPath is
// / filled from the start and carries DT_BUFFER_TOO_SMALL.
func (q *DtNavMeshQuery) Raycast(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter *DtQueryFilter, options int, maxPath int) (*RaycastHit, DtStatus) {
	if maxPath < 0 || !vec3Finite(startPos) || !vec3Finite(endPos) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	tile, poly, status := q.checkStartPoly(startRef, filter)
	if status.Failed() {
		return nil, status
	}

	hit := &RaycastHit{}
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	var dir, curPos, lastPos [3]float32
	common.Vsub(dir[:], endPos[:], startPos[:])
	curPos = startPos

	status = DT_SUCCESS
	curRef := startRef
	for curRef != 0 {
		// Cast ray against current polygon.
		nv := int(poly.VertCount)
		for i := 0; i < nv; i++ {
			copy(verts[i*3:i*3+3], common.GetVert3(tile.Verts, poly.Verts[i]))
		}
		_, tmax, _, segMax, ok := dtIntersectSegmentPoly2D(startPos[:], endPos[:], verts[:], nv)
		if !ok {
			// Could not hit the polygon, keep the old t and report hit.
			return hit, status
		}
		hit.HitEdgeIndex = segMax

		// Keep track of furthest t so far.
		if tmax > hit.T {
			hit.T = tmax
		}

		if len(hit.Path) < maxPath {
			hit.Path = append(hit.Path, curRef)
		} else {
			status |= DT_BUFFER_TOO_SMALL
		}

		// Ray end is completely inside the polygon.
		if segMax == -1 {
			hit.T = math.MaxFloat32
			if options&DT_RAYCAST_USE_COSTS != 0 {
				hit.PathCost += filter.GetCost(curPos[:], endPos[:], poly)
			}
			return hit, status
		}

		// Follow neighbours.
		nextRef, nextTile, nextPoly := q.raycastNeighbour(tile, poly, segMax, startPos, endPos, tmax, filter)

		if options&DT_RAYCAST_USE_COSTS != 0 {
			// Intersection point at the far end of the polygon, with the
			// height taken from the crossed edge.
			lastPos = curPos
			for k := 0; k < 3; k++ {
				curPos[k] = startPos[k] + dir[k]*hit.T
			}
			e1 := verts[segMax*3 : segMax*3+3]
			e2 := verts[((segMax+1)%nv)*3 : ((segMax+1)%nv)*3+3]
			var eDir, diff [3]float32
			common.Vsub(eDir[:], e2, e1)
			common.Vsub(diff[:], curPos[:], e1)
			var s float32
			if common.Sqr(eDir[0]) > common.Sqr(eDir[2]) {
				s = diff[0] / eDir[0]
			} else if eDir[2] != 0 {
				s = diff[2] / eDir[2]
			}
			curPos[1] = e1[1] + eDir[1]*s
			hit.PathCost += filter.GetCost(lastPos[:], curPos[:], poly)
		}

		if nextRef == 0 {
			// No neighbour, we hit a wall.
			va := verts[segMax*3 : segMax*3+3]
			vb := verts[((segMax+1)%nv)*3 : ((segMax+1)%nv)*3+3]
			hit.HitNormal = common.Vec3{vb[2] - va[2], 0, -(vb[0] - va[0])}
			dtVnormalize(hit.HitNormal[:])
			return hit, status
		}

		// No hit, advance to neighbour polygon.
		curRef = nextRef
		tile = nextTile
		poly = nextPoly
	}
	return hit, status
}

// raycastNeighbour finds the passable polygon on the other side of edge,
// checking that tile border portals actually contain the crossing point.
func (q *DtNavMeshQuery) raycastNeighbour(tile *DtMeshTile, poly *DtPoly, edge int,
	startPos, endPos common.Vec3, tmax float32, filter *DtQueryFilter) (DtPolyRef, *DtMeshTile, *DtPoly) {
	for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
		link := &tile.Links[i]

		// Find link which contains this edge.
		if int(link.Edge) != edge || link.Ref == 0 {
			continue
		}
		nextTile, nextPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)

		// Skip off-mesh connections.
		if nextPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		if !filter.PassFilter(nextPoly) {
			continue
		}

		// Internal links and tile links spanning the whole edge are accepted.
		if link.Side == 0xff || (link.Bmin == 0 && link.Bmax == 255) {
			return link.Ref, nextTile, nextPoly
		}

		// Check that the intersection lies inside the link portal.
		left := common.GetVert3(tile.Verts, poly.Verts[link.Edge])
		right := common.GetVert3(tile.Verts, poly.Verts[(int(link.Edge)+1)%int(poly.VertCount)])
		axis := -1
		switch link.Side {
		case 0, 4:
			axis = 2
		case 2, 6:
			axis = 0
		}
		if axis < 0 {
			continue
		}
		const s = 1.0 / 255.0
		lmin := left[axis] + (right[axis]-left[axis])*(float32(link.Bmin)*s)
		lmax := left[axis] + (right[axis]-left[axis])*(float32(link.Bmax)*s)
		if lmin > lmax {
			lmin, lmax = lmax, lmin
		}
		x := startPos[axis] + (endPos[axis]-startPos[axis])*tmax
		if x >= lmin && x <= lmax {
			return link.Ref, nextTile, nextPoly
		}
	}
	return 0, nil, nil
}
