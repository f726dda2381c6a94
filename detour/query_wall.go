package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

// / Finds the distance from the specified position to the nearest polygon wall.
// /  @param[in]		startRef		The reference id of the polygon containing centerPos.
// /  @param[in]		centerPos		The center of the search circle. [(x, y, z)]
// /  @param[in]		maxRadius		The radius of the search circle.
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// / @return The distance to the nearest wall, the nearest position on the
// / wall and the normal pointing from the wall toward centerPos.
// /
// / A wall is an edge without a passable neighbour. The search expands from
// / startRef over the polygons touched by the shrinking circle. When no wall
// / is within maxRadius hitDist equals maxRadius and hitPos and hitNormal are
// / zero. hitPos is not adjusted using the height detail data.
func (q *DtNavMeshQuery) FindDistanceToWall(startRef DtPolyRef, centerPos common.Vec3, maxRadius float32,
	filter *DtQueryFilter) (hitDist float32, hitPos, hitNormal common.Vec3, status DtStatus) {
	if !vec3Finite(centerPos) || maxRadius < 0 || !common.IsFinite(maxRadius) {
		return 0, hitPos, hitNormal, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		return 0, hitPos, hitNormal, status
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
	hit := false
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

		// Hit test walls.
		nv := int(bestPoly.VertCount)
		for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
			if !q.isWallEdge(bestTile, bestPoly, j, filter) {
				continue
			}

			// Calc distance to the edge.
			vj := common.GetVert3(bestTile.Verts, bestPoly.Verts[j])
			vi := common.GetVert3(bestTile.Verts, bestPoly.Verts[i])
			tseg, distSqr := DtDistancePtSegSqr2D(centerPos[:], vj, vi)

			// Edge is too far, skip.
			if distSqr > radiusSqr {
				continue
			}

			// Hit wall, update radius.
			radiusSqr = distSqr
			hit = true
			common.Vlerp(hitPos[:], vj, vi, tseg)
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			// Skip invalid neighbours and do not follow back to parent.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Expand to neighbour.
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)

			// Skip off-mesh connections.
			if neighbourPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
				continue
			}

			// Calc distance to the edge.
			va := common.GetVert3(bestTile.Verts, bestPoly.Verts[link.Edge])
			vb := common.GetVert3(bestTile.Verts, bestPoly.Verts[(int(link.Edge)+1)%nv])

			// If the circle is not touching the next polygon, skip it.
			if _, distSqr := DtDistancePtSegSqr2D(centerPos[:], va, vb); distSqr > radiusSqr {
				continue
			}

			if !filter.PassFilter(neighbourPoly) {
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
				mid, st := q.getEdgeMidPoint(bestRef, bestPoly, bestTile, neighbourRef, neighbourPoly, neighbourTile)
				if st.Failed() {
					continue
				}
				copy(neighbourNode.Pos[:], mid)
			}

			total := bestNode.Total + common.Vdist(bestNode.Pos[:], neighbourNode.Pos[:])

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

	if hit {
		common.Vsub(hitNormal[:], centerPos[:], hitPos[:])
		if common.VlenSqr(hitNormal[:]) > 0 {
			dtVnormalize(hitNormal[:])
		}
	}
	if outOfNodes {
		status |= DT_OUT_OF_NODES
		q.log.Debug("wall search ran out of nodes",
			zap.Uint64("start", uint64(startRef)), zap.Int("nodes", q.m_nodePool.GetNodeCount()))
	}
	return float32(math.Sqrt(float64(radiusSqr))), hitPos, hitNormal, status
}

// isWallEdge reports whether edge j of poly has no passable neighbour.
func (q *DtNavMeshQuery) isWallEdge(tile *DtMeshTile, poly *DtPoly, j int, filter *DtQueryFilter) bool {
	if poly.Neis[j]&DT_EXT_LINK != 0 {
		// Tile border.
		for k := poly.FirstLink; k != DT_NULL_LINK; k = tile.Links[k].Next {
			link := &tile.Links[k]
			if int(link.Edge) == j {
				if link.Ref != 0 {
					_, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
					if filter.PassFilter(neiPoly) {
						return false
					}
				}
				break
			}
		}
		return true
	}
	if poly.Neis[j] != 0 {
		// Internal edge
		idx := int(poly.Neis[j] - 1)
		return !filter.PassFilter(&tile.Polys[idx])
	}
	return true
}
