package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
)

const moveMaxStack = 48

// / Moves from the start to the end position constrained to the navigation mesh.
// /  @param[in]		startRef		The reference id of the start polygon.
// /  @param[in]		startPos		A position of the mover within the start polygon. [(x, y, x)]
// /  @param[in]		endPos			The desired end position of the mover. [(x, y, z)]
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		maxVisited		The maximum number of polygons the visited array can hold.
// / @return The reachable position closest to endPos and the polygons
// / visited from the start polygon to the polygon containing it.
// /
// / The search only explores polygons near the segment between the two
// / positions and is meant for small movements. The returned position keeps
// / the height of its source; use GetPolyHeight to place it on the surface.
func (q *DtNavMeshQuery) MoveAlongSurface(startRef DtPolyRef, startPos, endPos common.Vec3,
	filter *DtQueryFilter, maxVisited int) (resultPos common.Vec3, visited []DtPolyRef, status DtStatus) {
	if maxVisited <= 0 || !vec3Finite(startPos) || !vec3Finite(endPos) {
		return resultPos, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		return resultPos, nil, status
	}

	status = DT_SUCCESS

	var stack [moveMaxStack]*DtNode
	nstack := 0

	q.m_tinyNodePool.Clear()

	startNode := q.m_tinyNodePool.GetNode(startRef, 0)
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.Id = startRef
	startNode.Flags = DT_NODE_CLOSED
	stack[nstack] = startNode
	nstack++

	bestPos := startPos
	bestDist := float32(math.MaxFloat32)
	var bestNode *DtNode

	// Search constraints
	var searchPos [3]float32
	common.Vlerp(searchPos[:], startPos[:], endPos[:], 0.5)
	searchRadSqr := common.Sqr(common.Vdist(startPos[:], endPos[:])/2.0 + 0.001)

	var verts [DT_VERTS_PER_POLYGON * 3]float32

	for nstack > 0 {
		// Pop front.
		curNode := stack[0]
		copy(stack[:nstack-1], stack[1:nstack])
		nstack--

		// Get poly and tile.
		// The API input has been checked already, skip checking internal data.
		curRef := curNode.Id
		curTile, curPoly := q.m_nav.GetTileAndPolyByRefUnsafe(curRef)

		// Collect vertices.
		nverts := int(curPoly.VertCount)
		for i := 0; i < nverts; i++ {
			copy(verts[i*3:i*3+3], common.GetVert3(curTile.Verts, curPoly.Verts[i]))
		}

		// If target is inside the poly, stop search.
		if dtPointInPolygon(endPos[:], verts[:], nverts) {
			bestNode = curNode
			bestPos = endPos
			break
		}

		// Find wall edges and find nearest point inside the walls.
		for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
			// Find links to neighbours.
			const maxNeis = 8
			var neis [maxNeis]DtPolyRef
			nneis := 0

			if curPoly.Neis[j]&DT_EXT_LINK != 0 {
				// Tile border.
				for k := curPoly.FirstLink; k != DT_NULL_LINK; k = curTile.Links[k].Next {
					link := &curTile.Links[k]
					if int(link.Edge) == j && link.Ref != 0 {
						_, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
						if filter.PassFilter(neiPoly) && nneis < maxNeis {
							neis[nneis] = link.Ref
							nneis++
						}
					}
				}
			} else if curPoly.Neis[j] != 0 {
				idx := uint32(curPoly.Neis[j] - 1)
				ref := q.m_nav.GetPolyRefBase(curTile) | DtPolyRef(idx)
				if filter.PassFilter(&curTile.Polys[idx]) {
					// Internal edge, encode id.
					neis[nneis] = ref
					nneis++
				}
			}

			vj := verts[j*3 : j*3+3]
			vi := verts[i*3 : i*3+3]
			if nneis == 0 {
				// Wall edge, calc distance.
				tseg, distSqr := DtDistancePtSegSqr2D(endPos[:], vj, vi)
				if distSqr < bestDist {
					// Update nearest distance.
					common.Vlerp(bestPos[:], vj, vi, tseg)
					bestDist = distSqr
					bestNode = curNode
				}
				continue
			}

			for k := 0; k < nneis; k++ {
				neighbourNode := q.m_tinyNodePool.GetNode(neis[k], 0)
				if neighbourNode == nil {
					continue
				}
				// Skip if already visited.
				if neighbourNode.Flags&DT_NODE_CLOSED != 0 {
					continue
				}

				// Skip the link if it is too far from search constraint.
				if _, distSqr := DtDistancePtSegSqr2D(searchPos[:], vj, vi); distSqr > searchRadSqr {
					continue
				}

				// Mark as the node as visited and push to queue.
				if nstack < moveMaxStack {
					neighbourNode.Pidx = q.m_tinyNodePool.GetNodeIdx(curNode)
					neighbourNode.Flags |= DT_NODE_CLOSED
					stack[nstack] = neighbourNode
					nstack++
				}
			}
		}
	}

	if bestNode != nil {
		// Reverse the path.
		var prev *DtNode
		node := bestNode
		for node != nil {
			next := q.m_tinyNodePool.GetNodeAtIdx(node.Pidx)
			node.Pidx = q.m_tinyNodePool.GetNodeIdx(prev)
			prev = node
			node = next
		}

		// Store result
		for node = prev; node != nil; node = q.m_tinyNodePool.GetNodeAtIdx(node.Pidx) {
			if len(visited) >= maxVisited {
				status |= DT_BUFFER_TOO_SMALL
				break
			}
			visited = append(visited, node.Id)
		}
	}

	return bestPos, visited, status
}
