package detour

import (
	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

// / Finds the polygons along the navigation graph that touch the specified circle.
// /  @param[in]		startRef		The reference id of the polygon where the search starts.
// /  @param[in]		centerPos		The center of the search circle. [(x, y, z)]
// /  @param[in]		radius			The radius of the search circle.
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		maxResult		The maximum number of polygons the result arrays can hold.
// / @return The polygons found, their parents (zero for the start polygon)
// / and the path cost from the circle center to each of them.
// /
// / The search is a Dijkstra expansion from startRef, so results come out in
// / non-decreasing cost order. A polygon is only entered when the circle
// / touches the portal leading into it. The search keeps expanding after
// / maxResult is reached so GetPathFromDijkstraSearch sees the whole tree.
func (q *DtNavMeshQuery) FindPolysAroundCircle(startRef DtPolyRef, centerPos common.Vec3, radius float32,
	filter *DtQueryFilter, maxResult int) (resultRef, resultParent []DtPolyRef, resultCost []float32, status DtStatus) {
	if maxResult < 0 || !vec3Finite(centerPos) || radius < 0 || !common.IsFinite(radius) {
		return nil, nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		return nil, nil, nil, status
	}

	radiusSqr := common.Sqr(radius)
	touches := func(va, vb []float32) bool {
		_, distSqr := DtDistancePtSegSqr2D(centerPos[:], va, vb)
		return distSqr <= radiusSqr
	}
	return q.findPolysAround(startRef, centerPos, filter, maxResult, touches, "circle")
}

// / Finds the polygons along the navigation graph that touch the specified convex polygon.
// /  @param[in]		startRef		The reference id of the polygon where the search starts.
// /  @param[in]		verts			The vertices of the convex polygon, wound like the mesh polygons.
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		maxResult		The maximum number of polygons the result arrays can hold.
// /
// / The search starts at the centroid of the shape and otherwise works like
// / FindPolysAroundCircle: a polygon is entered when its portal overlaps the
// / shape on the xz-plane.
func (q *DtNavMeshQuery) FindPolysAroundShape(startRef DtPolyRef, verts []common.Vec3,
	filter *DtQueryFilter, maxResult int) (resultRef, resultParent []DtPolyRef, resultCost []float32, status DtStatus) {
	if maxResult < 0 || len(verts) < 3 || len(verts) > DT_VERTS_PER_POLYGON*4 {
		return nil, nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	flat := make([]float32, 0, len(verts)*3)
	var centerPos common.Vec3
	for _, v := range verts {
		if !vec3Finite(v) {
			return nil, nil, nil, DT_FAILURE | DT_INVALID_PARAM
		}
		flat = append(flat, v[:]...)
		centerPos = centerPos.Add(v)
	}
	centerPos = centerPos.Mul(1 / float32(len(verts)))

	filter = q.filterOrDefault(filter)
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		return nil, nil, nil, status
	}

	touches := func(va, vb []float32) bool {
		tmin, tmax, _, _, ok := dtIntersectSegmentPoly2D(va, vb, flat, len(verts))
		return ok && tmin <= 1 && tmax >= 0
	}
	return q.findPolysAround(startRef, centerPos, filter, maxResult, touches, "shape")
}

// findPolysAround runs the Dijkstra expansion shared by the circle and
// shape queries. touches decides whether a portal may be crossed.
func (q *DtNavMeshQuery) findPolysAround(startRef DtPolyRef, centerPos common.Vec3, filter *DtQueryFilter,
	maxResult int, touches func(va, vb []float32) bool, kind string) (resultRef, resultParent []DtPolyRef, resultCost []float32, status DtStatus) {
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
	outOfNodes := false

	for !q.m_openList.Empty() {
		bestNode := q.m_openList.Pop()
		bestNode.Flags &^= DT_NODE_OPEN
		bestNode.Flags |= DT_NODE_CLOSED

		// Get poly and tile.
		// The API input has been checked already, skip checking internal data.
		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		// Get parent poly and tile.
		var parentRef DtPolyRef
		if parent := q.m_nodePool.GetNodeAtIdx(bestNode.Pidx); parent != nil {
			parentRef = parent.Id
		}

		if len(resultRef) < maxResult {
			resultRef = append(resultRef, bestRef)
			resultParent = append(resultParent, parentRef)
			resultCost = append(resultCost, bestNode.Total)
		} else {
			status |= DT_BUFFER_TOO_SMALL
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

			// If the search area is not touching the next polygon, skip it.
			if !touches(va, vb) {
				continue
			}

			neighbourNode := q.m_nodePool.GetNode(neighbourRef, 0)
			if neighbourNode == nil {
				outOfNodes = true
				continue
			}

			if (neighbourNode.Flags & DT_NODE_CLOSED) != 0 {
				continue
			}

			// Cost
			if neighbourNode.Flags == 0 {
				common.Vlerp(neighbourNode.Pos[:], va, vb, 0.5)
			}

			cost := filter.GetCost(bestNode.Pos[:], neighbourNode.Pos[:], neighbourPoly)
			total := bestNode.Total + cost

			// The node is already in open list and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_OPEN) != 0 && total >= neighbourNode.Total {
				continue
			}

			neighbourNode.Id = neighbourRef
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

	if outOfNodes {
		status |= DT_OUT_OF_NODES
		q.log.Debug(kind+" search ran out of nodes",
			zap.Uint64("start", uint64(startRef)), zap.Int("nodes", q.m_nodePool.GetNodeCount()))
	}
	return resultRef, resultParent, resultCost, status
}
