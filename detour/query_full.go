package detour

import (
	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

// FullPath is the result of FindFullPath.
type FullPath struct {
	StartRef DtPolyRef
	EndRef   DtPolyRef
	Corridor []DtPolyRef
	Points   []StraightPathPoint
}

// / Finds a straight path between two world positions.
// /  @param[in]		startPos		Path start position. [(x, y, z)]
// /  @param[in]		endPos			Path end position. [(x, y, z)]
// /  @param[in]		halfExtents		The search distance used to locate the end polygons. [(x, y, z)]
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		maxPolys		The maximum corridor length.
// /  @param[in]		maxStraightPath	The maximum number of straight path points.
// /  @param[in]		options			Straight path options. (see: #dtStraightPathOptions)
// /
// / The positions are snapped to their nearest polygons, the corridor is
// / searched and then string pulled. The first failing step stops the
// / pipeline and its status is returned with a nil path. Warnings of the
// / steps (partial result, truncation, out of nodes) are merged into the
// / returned status.
func (q *DtNavMeshQuery) FindFullPath(startPos, endPos, halfExtents common.Vec3, filter *DtQueryFilter,
	maxPolys, maxStraightPath int, options int) (*FullPath, DtStatus) {
	filter = q.filterOrDefault(filter)

	startRef, startPt, _, status := q.FindNearestPoly(startPos, halfExtents, filter)
	if status.Failed() {
		return nil, status
	}
	endRef, endPt, _, status := q.FindNearestPoly(endPos, halfExtents, filter)
	if status.Failed() {
		return nil, status
	}

	corridor, pathStatus := q.FindPath(startRef, endRef, startPt, endPt, filter, maxPolys)
	if pathStatus.Failed() {
		return nil, pathStatus
	}

	// In case of partial path, make sure the end point is clamped to the last polygon.
	if last := corridor[len(corridor)-1]; last != endRef {
		closest, _, status := q.ClosestPointOnPoly(last, endPt)
		if status.Failed() {
			return nil, status
		}
		endPt = closest
	}

	points, straightStatus := q.FindStraightPath(startPt, endPt, corridor, maxStraightPath, options)
	if straightStatus.Failed() {
		return nil, straightStatus
	}

	status = DT_SUCCESS | (pathStatus & DT_STATUS_DETAIL_MASK) | (straightStatus & DT_STATUS_DETAIL_MASK)
	if status.Detail(DT_PARTIAL_RESULT) {
		q.log.Debug("full path is partial",
			zap.Uint64("start", uint64(startRef)), zap.Uint64("end", uint64(endRef)),
			zap.Int("corridor", len(corridor)), zap.Int("points", len(points)))
	}
	return &FullPath{StartRef: startRef, EndRef: endRef, Corridor: corridor, Points: points}, status
}

// WallSegment is an edge of a polygon. Ref is zero for walls and the
// neighbour polygon for portals.
type WallSegment struct {
	Start common.Vec3
	End   common.Vec3
	Ref   DtPolyRef
}

type dtSegInterval struct {
	ref        DtPolyRef
	tmin, tmax int16
}

func insertInterval(ints []dtSegInterval, maxInts int, tmin, tmax int16, ref DtPolyRef) []dtSegInterval {
	if len(ints)+1 > maxInts {
		return ints
	}
	// Find insertion point.
	idx := 0
	for idx < len(ints) {
		if tmax <= ints[idx].tmin {
			break
		}
		idx++
	}
	// Move current results.
	ints = append(ints, dtSegInterval{})
	copy(ints[idx+1:], ints[idx:])
	// Store
	ints[idx] = dtSegInterval{ref: ref, tmin: tmin, tmax: tmax}
	return ints
}

// / Returns the segments of the polygon boundary.
// /  @param[in]		ref				The reference id of the polygon.
// /  @param[in]		filter			The polygon filter to apply to the query. [opt]
// /  @param[in]		maxSegments		The maximum number of segments to return.
// /  @param[in]		storePortals	Also return the portal segments leading to passable neighbours.
// /
// / A polygon edge shared with a passable neighbour is a portal. Tile border
// / edges are split into the parts covered by neighbour links and the wall
// / parts left between them.
func (q *DtNavMeshQuery) GetPolyWallSegments(ref DtPolyRef, filter *DtQueryFilter, maxSegments int, storePortals bool) ([]WallSegment, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return nil, status
	}
	if maxSegments < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)

	const maxInterval = 16
	var intsBuf [maxInterval]dtSegInterval
	var segs []WallSegment

	status = DT_SUCCESS
	appendSeg := func(vj, vi []float32, tmin, tmax float32, segRef DtPolyRef) {
		if len(segs) >= maxSegments {
			status |= DT_BUFFER_TOO_SMALL
			return
		}
		var seg WallSegment
		common.Vlerp(seg.Start[:], vj, vi, tmin)
		common.Vlerp(seg.End[:], vj, vi, tmax)
		seg.Ref = segRef
		segs = append(segs, seg)
	}

	nv := int(poly.VertCount)
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		vj := common.GetVert3(tile.Verts, poly.Verts[j])
		vi := common.GetVert3(tile.Verts, poly.Verts[i])

		// Skip non-solid edges.
		ints := intsBuf[:0]
		if poly.Neis[j]&DT_EXT_LINK != 0 {
			// Tile border.
			for k := poly.FirstLink; k != DT_NULL_LINK; k = tile.Links[k].Next {
				link := &tile.Links[k]
				if int(link.Edge) == j && link.Ref != 0 {
					_, neiPoly := q.m_nav.GetTileAndPolyByRefUnsafe(link.Ref)
					if filter.PassFilter(neiPoly) {
						ints = insertInterval(ints, maxInterval, int16(link.Bmin), int16(link.Bmax), link.Ref)
					}
				}
			}
		} else {
			// Internal edge
			var neiRef DtPolyRef
			if poly.Neis[j] != 0 {
				idx := uint32(poly.Neis[j] - 1)
				neiRef = q.m_nav.GetPolyRefBase(tile) | DtPolyRef(idx)
				if !filter.PassFilter(&tile.Polys[idx]) {
					neiRef = 0
				}
			}

			// If the edge leads to another polygon and portals are not stored, skip.
			if neiRef != 0 && !storePortals {
				continue
			}
			appendSeg(vj, vi, 0, 1, neiRef)
			continue
		}

		// Add sentinels
		ints = insertInterval(ints, maxInterval, -1, 0, 0)
		ints = insertInterval(ints, maxInterval, 255, 256, 0)

		// Store segments.
		for k := 1; k < len(ints); k++ {
			// Portal segment.
			if storePortals && ints[k].ref != 0 {
				appendSeg(vj, vi, float32(ints[k].tmin)/255.0, float32(ints[k].tmax)/255.0, ints[k].ref)
			}

			// Wall segment.
			imin := ints[k-1].tmax
			imax := ints[k].tmin
			if imin != imax {
				appendSeg(vj, vi, float32(imin)/255.0, float32(imax)/255.0, 0)
			}
		}
	}
	return segs, status
}
