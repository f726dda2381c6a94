package detour

import (
	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

// / Finds a path from the start polygon to the end polygon.
// /  @param[in]		startRef	The reference id of the start polygon.
// /  @param[in]		endRef		The reference id of the end polygon.
// /  @param[in]		startPos	A position within the start polygon. [(x, y, z)]
// /  @param[in]		endPos		A position within the end polygon. [(x, y, z)]
// /  @param[in]		filter		The polygon filter to apply to the query. [opt]
// /  @param[in]		maxPath		The maximum number of polygons the path can contain. [Limit: >= 1]
// /
// / If the end polygon cannot be reached the path to the polygon nearest to
// / endPos is returned with DT_PARTIAL_RESULT. DT_OUT_OF_NODES is added when
// / the node pool ran dry. A path longer than maxPath keeps its first maxPath
// / polygons and carries DT_BUFFER_TOO_SMALL.
// /
// / A rejected start or end polygon returns the status of that check
// / (DT_INVALID_PARAM, plus DT_FILTERED_OUT when the filter excluded it).
// / The start is checked first and the failing side is logged at debug level.
func (q *DtNavMeshQuery) FindPath(startRef, endRef DtPolyRef, startPos, endPos common.Vec3,
	filter *DtQueryFilter, maxPath int) ([]DtPolyRef, DtStatus) {
	if maxPath <= 0 || !vec3Finite(startPos) || !vec3Finite(endPos) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	if _, _, status := q.checkStartPoly(startRef, filter); status.Failed() {
		q.logRejectedPoly("start", startRef, status)
		return nil, status
	}
	if _, _, status := q.checkStartPoly(endRef, filter); status.Failed() {
		q.logRejectedPoly("end", endRef, status)
		return nil, status
	}

	if startRef == endRef {
		return []DtPolyRef{startRef}, DT_SUCCESS
	}

	q.m_nodePool.Clear()
	q.m_openList.Clear()

	startNode := q.m_nodePool.GetNode(startRef, 0)
	startNode.Pos = startPos
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = common.Vdist(startPos[:], endPos[:]) * H_SCALE
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.m_openList.Push(startNode)

	lastBestNode := startNode
	lastBestNodeCost := startNode.Total

	outOfNodes := false

	for !q.m_openList.Empty() {
		// Remove node from open list and put it in closed list.
		bestNode := q.m_openList.Pop()
		bestNode.Flags &^= DT_NODE_OPEN
		bestNode.Flags |= DT_NODE_CLOSED

		// Reached the goal, stop searching.
		if bestNode.Id == endRef {
			lastBestNode = bestNode
			break
		}

		// Get current poly and tile.
		// The API input has been checked already, skip checking internal data.
		bestRef := bestNode.Id
		bestTile, bestPoly := q.m_nav.GetTileAndPolyByRefUnsafe(bestRef)

		// Get parent poly and tile.
		var parentRef DtPolyRef
		if parent := q.m_nodePool.GetNodeAtIdx(bestNode.Pidx); parent != nil {
			parentRef = parent.Id
		}

		for i := bestPoly.FirstLink; i != DT_NULL_LINK; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref

			// Skip invalid ids and do not expand back to where we came from.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			// Get neighbour poly and tile.
			neighbourTile, neighbourPoly := q.m_nav.GetTileAndPolyByRefUnsafe(neighbourRef)
			if !filter.PassFilter(neighbourPoly) {
				continue
			}

			// deal explicitly with crossing tile boundaries
			var crossSide uint8
			if link.Side != 0xff {
				crossSide = link.Side >> 1
			}

			// get the node
			neighbourNode := q.m_nodePool.GetNode(neighbourRef, crossSide)
			if neighbourNode == nil {
				outOfNodes = true
				continue
			}

			// If the node is visited the first time, calculate node position.
			if neighbourNode.Flags == 0 {
				mid, status := q.getEdgeMidPoint(bestRef, bestPoly, bestTile, neighbourRef, neighbourPoly, neighbourTile)
				if status.Failed() {
					continue
				}
				copy(neighbourNode.Pos[:], mid)
			}

			// Calculate cost and heuristic.
			var cost, heuristic float32

			// Special case for last node.
			if neighbourRef == endRef {
				// Cost
				curCost := filter.GetCost(bestNode.Pos[:], neighbourNode.Pos[:], neighbourPoly)
				endCost := filter.GetCost(neighbourNode.Pos[:], endPos[:], neighbourPoly)
				cost = bestNode.Cost + curCost + endCost
				heuristic = 0
			} else {
				// Cost
				curCost := filter.GetCost(bestNode.Pos[:], neighbourNode.Pos[:], neighbourPoly)
				cost = bestNode.Cost + curCost
				heuristic = common.Vdist(neighbourNode.Pos[:], endPos[:]) * H_SCALE
			}

			total := cost + heuristic

			// The node is already in open list and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_OPEN) != 0 && total >= neighbourNode.Total {
				continue
			}
			// The node is already visited and process, and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_CLOSED) != 0 && total >= neighbourNode.Total {
				continue
			}

			// Add or update the node.
			neighbourNode.Pidx = q.m_nodePool.GetNodeIdx(bestNode)
			neighbourNode.Id = neighbourRef
			neighbourNode.Flags &^= DT_NODE_CLOSED
			neighbourNode.Cost = cost
			neighbourNode.Total = total

			if (neighbourNode.Flags & DT_NODE_OPEN) != 0 {
				// Already in open, update node location.
				q.m_openList.Modify(neighbourNode)
			} else {
				// Put the node in open list.
				neighbourNode.Flags |= DT_NODE_OPEN
				q.m_openList.Push(neighbourNode)
			}

			// Update nearest node to target so far.
			if heuristic < lastBestNodeCost {
				lastBestNodeCost = heuristic
				lastBestNode = neighbourNode
			}
		}
	}

	path, status := q.getPathToNode(lastBestNode, maxPath)

	if lastBestNode.Id != endRef {
		status |= DT_PARTIAL_RESULT
	}
	if outOfNodes {
		status |= DT_OUT_OF_NODES
	}
	if status.Detail(DT_PARTIAL_RESULT | DT_OUT_OF_NODES) {
		q.log.Debug("find path incomplete",
			zap.Uint64("start", uint64(startRef)), zap.Uint64("end", uint64(endRef)),
			zap.Int("nodes", q.m_nodePool.GetNodeCount()), zap.Stringer("status", status))
	}
	return path, status
}

// getPathToNode walks the parent chain of endNode. When the chain is longer
// than maxPath only the polygons nearest the start are kept.
func (q *DtNavMeshQuery) getPathToNode(endNode *DtNode, maxPath int) ([]DtPolyRef, DtStatus) {
	// Find the length of the entire path.
	length := 0
	for curNode := endNode; curNode != nil; curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx) {
		length++
	}

	// If the path cannot be fully stored then advance to the last node we will be able to store.
	curNode := endNode
	writeCount := length
	for ; writeCount > maxPath; writeCount-- {
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	// Write path
	path := make([]DtPolyRef, writeCount)
	for i := writeCount - 1; i >= 0; i-- {
		path[i] = curNode.Id
		curNode = q.m_nodePool.GetNodeAtIdx(curNode.Pidx)
	}

	if length > maxPath {
		return path, DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return path, DT_SUCCESS
}

// / Gets a path from the explored nodes in the previous search.
// /  @param[in]		endRef		The reference id of the end polygon.
// /  @param[in]		maxPath		The maximum number of polygons the path array can hold. [Limit: >= 1]
// / The result is only valid right after FindPolysAroundCircle or FindPath,
// / before any other search reuses the node pool.
func (q *DtNavMeshQuery) GetPathFromDijkstraSearch(endRef DtPolyRef, maxPath int) ([]DtPolyRef, DtStatus) {
	if !q.m_nav.IsValidPolyRef(endRef) {
		return nil, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	if maxPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	endNode := q.m_nodePool.FindNode(endRef, 0)
	if endNode == nil || (endNode.Flags&DT_NODE_CLOSED) == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	return q.getPathToNode(endNode, maxPath)
}

func (q *DtNavMeshQuery) logRejectedPoly(side string, ref DtPolyRef, status DtStatus) {
	q.log.Debug("find path rejected polygon",
		zap.String("side", side), zap.Uint64("ref", uint64(ref)), zap.Stringer("status", status))
}
