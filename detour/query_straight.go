package detour

import "github.com/gorustyt/navquery/common"

// / Vertex flags returned by DtNavMeshQuery.FindStraightPath.
const (
	DT_STRAIGHTPATH_START              = 0x01 ///< The vertex is the start position in the path.
	DT_STRAIGHTPATH_END                = 0x02 ///< The vertex is the end position in the path.
	DT_STRAIGHTPATH_OFFMESH_CONNECTION = 0x04 ///< The vertex is the start of an off-mesh connection.
)

// / Options for DtNavMeshQuery.FindStraightPath.
const (
	DT_STRAIGHTPATH_AREA_CROSSINGS = 0x01 ///< Add a vertex at every polygon edge crossing where area changes.
	DT_STRAIGHTPATH_ALL_CROSSINGS  = 0x02 ///< Add a vertex at every polygon edge crossing.
)

// StraightPathPoint is one corner of a string-pulled path.
type StraightPathPoint struct {
	Pos   common.Vec3
	Flags uint8
	// The polygon entered at this point, zero for the end point.
	Ref DtPolyRef
}

type straightPath struct {
	points []StraightPathPoint
	max    int
}

func (sp *straightPath) appendVertex(pos []float32, flags uint8, ref DtPolyRef) DtStatus {
	if n := len(sp.points); n > 0 && common.Vequal(sp.points[n-1].Pos[:], pos) {
		// The vertices are equal, update flags and poly.
		sp.points[n-1].Flags = flags
		sp.points[n-1].Ref = ref
		return DT_IN_PROGRESS
	}
	sp.points = append(sp.points, StraightPathPoint{Pos: common.ToVec3(pos), Flags: flags, Ref: ref})

	// If there is no space to append more vertices, return.
	if len(sp.points) >= sp.max {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	// If reached end of path, return.
	if flags == DT_STRAIGHTPATH_END {
		return DT_SUCCESS
	}
	return DT_IN_PROGRESS
}

func (sp *straightPath) bufferStatus() DtStatus {
	if len(sp.points) >= sp.max {
		return DT_BUFFER_TOO_SMALL
	}
	return 0
}

// appendPortals adds the crossings of the segment from the last vertex to
// endPos with the portals path[startIdx..endIdx].
func (q *DtNavMeshQuery) appendPortals(sp *straightPath, startIdx, endIdx int, endPos []float32, path []DtPolyRef, options int) DtStatus {
	startPos := sp.points[len(sp.points)-1].Pos
	// Append or update last vertex
	for i := startIdx; i < endIdx; i++ {
		// Calculate portal
		from := path[i]
		fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}
		to := path[i+1]
		toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}
		left, right, status := q.getPortalPoints(from, fromPoly, fromTile, to, toPoly, toTile)
		if status.Failed() {
			break
		}

		if options&DT_STRAIGHTPATH_AREA_CROSSINGS != 0 {
			// Skip intersection if only area crossings are requested.
			if fromPoly.GetArea() == toPoly.GetArea() {
				continue
			}
		}

		// Append intersection
		if _, t, ok := dtIntersectSegSeg2D(startPos[:], endPos, left, right); ok {
			pt := make([]float32, 3)
			common.Vlerp(pt, left, right, t)
			if status := sp.appendVertex(pt, 0, path[i+1]); status != DT_IN_PROGRESS {
				return status
			}
		}
	}
	return DT_IN_PROGRESS
}

// / Finds the straight path from the start to the end position within the polygon corridor.
// /  @param[in]		startPos			Path start position. [(x, y, z)]
// /  @param[in]		endPos				Path end position. [(x, y, z)]
// /  @param[in]		path				An array of polygon references that represent the path corridor.
// /  @param[in]		maxStraightPath		The maximum number of points the straight path can hold.  [Limit: > 0]
// /  @param[in]		options				Query options. (see: #dtStraightPathOptions)
// /
// / The start and end positions are clamped to the first and last polygon of
// / the corridor. The first point carries DT_STRAIGHTPATH_START, the last one
// / DT_STRAIGHTPATH_END. When a portal of the corridor cannot be resolved the
// / path so far is returned with DT_PARTIAL_RESULT.
func (q *DtNavMeshQuery) FindStraightPath(startPos, endPos common.Vec3, path []DtPolyRef,
	maxStraightPath int, options int) ([]StraightPathPoint, DtStatus) {
	if !vec3Finite(startPos) || !vec3Finite(endPos) || len(path) == 0 || path[0] == 0 || maxStraightPath <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	pathSize := len(path)

	closestStartPos, status := q.ClosestPointOnPolyBoundary(path[0], startPos)
	if status.Failed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	closestEndPos, status := q.ClosestPointOnPolyBoundary(path[pathSize-1], endPos)
	if status.Failed() {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	sp := &straightPath{max: maxStraightPath, points: make([]StraightPathPoint, 0, min(maxStraightPath, pathSize+2))}
	crossings := options&(DT_STRAIGHTPATH_AREA_CROSSINGS|DT_STRAIGHTPATH_ALL_CROSSINGS) != 0

	// Add start point.
	if status := sp.appendVertex(closestStartPos[:], DT_STRAIGHTPATH_START, path[0]); status != DT_IN_PROGRESS {
		return sp.points, status
	}

	if pathSize > 1 {
		portalApex := closestStartPos
		portalLeft := portalApex
		portalRight := portalApex
		apexIndex := 0
		leftIndex := 0
		rightIndex := 0

		var leftPolyType, rightPolyType uint8

		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < pathSize; i++ {
			var left, right common.Vec3
			var toType uint8

			if i+1 < pathSize {
				// Next portal.
				l, r, pt, ok := q.portalWithType(path[i], path[i+1])
				if !ok {
					// Failed to get portal points, in practice this means that path[i+1] is invalid polygon.
					// Clamp the end point to path[i], and return the path so far.
					clamped, status := q.ClosestPointOnPolyBoundary(path[i], endPos)
					if status.Failed() {
						// This should only happen when the first polygon is invalid.
						return sp.points, DT_FAILURE | DT_INVALID_PARAM
					}

					// Append portals along the current straight path segment.
					if crossings {
						// Ignore status return value as we're just about to return anyway.
						q.appendPortals(sp, apexIndex, i, clamped[:], path, options)
					}

					// Ignore status return value as we're just about to return anyway.
					sp.appendVertex(clamped[:], 0, path[i])

					return sp.points, DT_SUCCESS | DT_PARTIAL_RESULT | sp.bufferStatus()
				}
				left, right, toType = l, r, pt

				// If starting really close the portal, advance.
				if i == 0 {
					if _, d := DtDistancePtSegSqr2D(portalApex[:], left[:], right[:]); d < common.Sqr(float32(0.001)) {
						continue
					}
				}
			} else {
				// End of the path.
				left = closestEndPos
				right = closestEndPos
				toType = DT_POLYTYPE_GROUND
			}

			// Right vertex.
			if common.TriArea2D(portalApex[:], portalRight[:], right[:]) <= 0.0 {
				if common.Vequal(portalApex[:], portalRight[:]) || common.TriArea2D(portalApex[:], portalLeft[:], right[:]) > 0.0 {
					portalRight = right
					rightPolyRef = 0
					if i+1 < pathSize {
						rightPolyRef = path[i+1]
					}
					rightPolyType = toType
					rightIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						if status := q.appendPortals(sp, apexIndex, leftIndex, portalLeft[:], path, options); status != DT_IN_PROGRESS {
							return sp.points, status
						}
					}

					portalApex = portalLeft
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if leftPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					// Append or update vertex
					if status := sp.appendVertex(portalApex[:], flags, leftPolyRef); status != DT_IN_PROGRESS {
						return sp.points, status
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}

			// Left vertex.
			if common.TriArea2D(portalApex[:], portalLeft[:], left[:]) >= 0.0 {
				if common.Vequal(portalApex[:], portalLeft[:]) || common.TriArea2D(portalApex[:], portalRight[:], left[:]) < 0.0 {
					portalLeft = left
					leftPolyRef = 0
					if i+1 < pathSize {
						leftPolyRef = path[i+1]
					}
					leftPolyType = toType
					leftIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						if status := q.appendPortals(sp, apexIndex, rightIndex, portalRight[:], path, options); status != DT_IN_PROGRESS {
							return sp.points, status
						}
					}

					portalApex = portalRight
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					} else if rightPolyType == DT_POLYTYPE_OFFMESH_CONNECTION {
						flags = DT_STRAIGHTPATH_OFFMESH_CONNECTION
					}

					// Append or update vertex
					if status := sp.appendVertex(portalApex[:], flags, rightPolyRef); status != DT_IN_PROGRESS {
						return sp.points, status
					}

					portalLeft = portalApex
					portalRight = portalApex
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}
		}

		// Append portals along the current straight path segment.
		if crossings {
			if status := q.appendPortals(sp, apexIndex, pathSize-1, closestEndPos[:], path, options); status != DT_IN_PROGRESS {
				return sp.points, status
			}
		}
	}

	// Ignore status return value as we're just about to return anyway.
	sp.appendVertex(closestEndPos[:], DT_STRAIGHTPATH_END, 0)

	return sp.points, DT_SUCCESS | sp.bufferStatus()
}

// portalWithType resolves the portal between two polygons and the type of
// the polygon being entered.
func (q *DtNavMeshQuery) portalWithType(from, to DtPolyRef) (left, right common.Vec3, toType uint8, ok bool) {
	fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
	if status.Failed() {
		return left, right, 0, false
	}
	toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
	if status.Failed() {
		return left, right, 0, false
	}
	l, r, status := q.getPortalPoints(from, fromPoly, fromTile, to, toPoly, toTile)
	if status.Failed() {
		return left, right, 0, false
	}
	return common.ToVec3(l), common.ToVec3(r), toPoly.GetType(), true
}
