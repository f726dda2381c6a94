package detour

import (
	"github.com/gorustyt/navquery/common"
)

// polyArea returns the xz area of a ground polygon.
func polyArea(tile *DtMeshTile, poly *DtPoly) float32 {
	var area float32
	va := common.GetVert3(tile.Verts, poly.Verts[0])
	for j := 2; j < int(poly.VertCount); j++ {
		vb := common.GetVert3(tile.Verts, poly.Verts[j-1])
		vc := common.GetVert3(tile.Verts, poly.Verts[j])
		area += common.TriArea2D(va, vb, vc)
	}
	return area
}

// randomPointInPoly picks a uniformly distributed point inside the polygon
// and snaps its height to the detail surface.
func (q *DtNavMeshQuery) randomPointInPoly(ref DtPolyRef, tile *DtMeshTile, poly *DtPoly, frand func() float32) common.Vec3 {
	var verts [3 * DT_VERTS_PER_POLYGON]float32
	var areas [DT_VERTS_PER_POLYGON]float32
	nv := int(poly.VertCount)
	for j := 0; j < nv; j++ {
		copy(verts[j*3:j*3+3], common.GetVert3(tile.Verts, poly.Verts[j]))
	}

	s := frand()
	t := frand()
	pt := dtRandomPointInConvexPoly(verts[:], nv, areas[:], s, t)

	if h, ok := q.m_nav.GetPolyHeight(tile, poly, DtDecodePolyIdPoly(ref), pt); ok {
		pt[1] = h
	} else {
		// Rounding can put the sample a hair outside the detail mesh.
		pt, _ = q.m_nav.ClosestPointOnPoly(ref, pt)
	}
	return common.ToVec3(pt)
}

// / Returns a random location on the navmesh.
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		frand			Function returning a random number [0..1). [opt]
// /
// / Polygons are chosen with a probability proportional to their area across
// / all loaded tiles, so the returned points are uniformly distributed over
// / the passable surface.
func (q *DtNavMeshQuery) FindRandomPoint(filter *DtQueryFilter, frand func() float32) (randomRef DtPolyRef, randomPt common.Vec3, status DtStatus) {
	filter = q.filterOrDefault(filter)
	if frand == nil {
		frand = q.rand
	}

	var (
		polyTile *DtMeshTile
		poly     *DtPoly
		polyRef  DtPolyRef
		areaSum  float32
	)
	for i := 0; i < int(q.m_nav.GetMaxTiles()); i++ {
		tile := q.m_nav.GetTile(i)
		if tile.Header == nil {
			continue
		}
		// Choose random polygon weighted by area, using reservoir sampling.
		base := q.m_nav.GetPolyRefBase(tile)
		for j := 0; j < int(tile.Header.PolyCount); j++ {
			p := &tile.Polys[j]
			// Do not return off-mesh connection polygons.
			if p.GetType() != DT_POLYTYPE_GROUND {
				continue
			}
			// Must pass filter
			if !filter.PassFilter(p) {
				continue
			}

			area := polyArea(tile, p)
			if area <= 0 {
				continue
			}
			areaSum += area
			u := frand()
			if u*areaSum <= area {
				polyTile = tile
				poly = p
				polyRef = base | DtPolyRef(j)
			}
		}
	}
	if poly == nil {
		return 0, randomPt, DT_FAILURE | DT_NOT_FOUND
	}
	return polyRef, q.randomPointInPoly(polyRef, polyTile, poly, frand), DT_SUCCESS
}

// / Returns a random location on the navmesh within the reach of specified location.
// /  @param[in]		startRef		The reference id of the polygon where the search starts.
// /  @param[in]		centerPos		The center of the search circle. [(x, y, z)]
// /  @param[in]		maxRadius		The radius of the search circle. [Units: wu]
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		frand			Function returning a random number [0..1). [opt]
// /
// / Polygons are visited like in FindPolysAroundCircle and sampled by area.
// / The location is not exactly constrained by the circle, but it limits
// / the visited polygons.
func (q *DtNavMeshQuery) FindRandomPointAroundCircle(startRef DtPolyRef, centerPos common.Vec3, maxRadius float32,
	filter *DtQueryFilter, frand func() float32) (randomRef DtPolyRef, randomPt common.Vec3, status DtStatus) {
	if !vec3Finite(centerPos) || maxRadius < 0 || !common.IsFinite(maxRadius) {
		return 0, randomPt, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	if frand == nil {
		frand = q.rand
	}
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		return 0, randomPt, status
	}

	q.m_nodePool.Clear()
	q.m_openList.Clear()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = centerPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Push(startNode)

	status = DT_SUCCESS
	radiusSqr := common.Sqr(maxRadius)
	var areaSum float32

	var (
		randomTile    *DtMeshTile
		randomPoly    *DtPoly
		randomPolyRef DtPolyRef
	)

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Pop()
		bestNode.Flags &^= DT_NODE_OPEN
		bestNode.Flags |= DT_NODE_CLOSED

		// Get poly and tile.
		// The API input has been checked already, skip checking internal data.
		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		// Place random locations on on ground.
		if bestPoly.GetType() == DT_POLYTYPE_GROUND {
			// Calc area of the polygon.
			area := polyArea(bestTile, bestPoly)
			// Choose random polygon weighted by area, using reservoir sampling.
			areaSum += area
			u := frand()
			if u*areaSum <= area {
				randomTile = bestTile
				randomPoly = bestPoly
				randomPolyRef = bestRef
			}
		}

		// Get parent poly and tile.
		var parentRef DtPolyRef
		if parent := q.m_nodePool.GetNodeAtIdx(bestNode.Pidx); parent != nil {
			parentRef = parent.Id
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			// Skip invalid neighbours and do not follow back to parent.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Expand to neighbour
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			// Do not advance if the polygon is excluded by the filter.
			if !filter.PassFilter(neighbourPoly) {
				continue
			}

			// Find edge and calc distance to the edge.
			va, vb, st := q.getPortalPoints(bestRef, bestPoly, bestTile, neighbourRef, neighbourPoly, neighbourTile)
			if st.Failed() {
				continue
			}

			// If the circle is not touching the next polygon, skip it.
			if _, distSqr := DtDistancePtSegSqr2D(centerPos[:], va, vb); distSqr > radiusSqr {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				status |= DT_OUT_OF_NODES
				continue
			}

			if (neighbourNode.Flags & DT_NODE_CLOSED) != 0 {
				continue
			}

			// Cost
			if neighbourNode.Flags == 0 {
				common.Vlerp(neighbourNode.Pos[:], va, vb, 0.5)
			}

			total := bestNode.Total + common.Vdist(bestNode.Pos[:], neighbourNode.Pos[:])

			// The node is already in open list and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_OPEN) != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &^= DT_NODE_CLOSED
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Total = total

			if (neighbourNode.Flags & DT_NODE_OPEN) != 0 {
				q.m_openList.Modify(neighbourNode)
			} else {
				neighbourNode.Flags = DT_NODE_OPEN
				q.m_openList.Push(neighbourNode)
			}
		}
	}

	if randomPoly == nil {
		return 0, randomPt, DT_FAILURE | DT_NOT_FOUND
	}
	return randomPolyRef, q.randomPointInPoly(randomPolyRef, randomTile, randomPoly, frand), status
}
