package detour

import (
	"math"
	"math/rand"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

const H_SCALE = 0.999 // Search heuristic scale.

// DtNavMeshQuery runs searches against a DtNavMesh. It owns the node
// pools and the open list used by every search, so an instance must not
// be shared between goroutines; create one per worker instead.
type DtNavMeshQuery struct {
	m_nav          *DtNavMesh     ///< Pointer to navmesh data.
	m_tinyNodePool *DtNodePool    ///< Pointer to small node pool.
	m_nodePool     *DtNodePool    ///< Pointer to node pool.
	m_openList     *DtNodeQueue   ///< Pointer to open list queue.
	m_filter       *DtQueryFilter ///< Used when a caller passes a nil filter.

	rand func() float32
	log  *zap.Logger
}

type QueryOption func(*DtNavMeshQuery)

// WithLogger sets the logger used for search diagnostics.
func WithLogger(l *zap.Logger) QueryOption {
	return func(q *DtNavMeshQuery) {
		if l != nil {
			q.log = l
		}
	}
}

// WithRandSource sets the default random source of the random point queries.
func WithRandSource(r *rand.Rand) QueryOption {
	return func(q *DtNavMeshQuery) {
		if r != nil {
			q.rand = r.Float32
		}
	}
}

// / Initializes the query object.
// /  @param[in]		nav			Pointer to the DtNavMesh object to use for all queries.
// /  @param[in]		maxNodes	Maximum number of search nodes. [Limits: 0 < value <= 65534]
func NewDtNavMeshQuery(nav *DtNavMesh, maxNodes int, opts ...QueryOption) (*DtNavMeshQuery, DtStatus) {
	if nav == nil || maxNodes <= 0 || maxNodes > DT_MAX_NODES {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	q := &DtNavMeshQuery{
		m_nav:          nav,
		m_nodePool:     NewDtNodePool(maxNodes, int(common.NextPow2(uint32(maxNodes/4)))),
		m_tinyNodePool: NewDtNodePool(64, 32),
		m_openList:     NewDtNodeQueue(maxNodes),
		m_filter:       NewDtQueryFilter(),
		rand:           rand.New(rand.NewSource(1)).Float32,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, DT_SUCCESS
}

// / Gets the navigation mesh the query object is using.
func (q *DtNavMeshQuery) GetAttachedNavMesh() *DtNavMesh {
	return q.m_nav
}

// / Gets the node pool used by the last search.
func (q *DtNavMeshQuery) GetNodePool() *DtNodePool {
	return q.m_nodePool
}

func (q *DtNavMeshQuery) filterOrDefault(filter *DtQueryFilter) *DtQueryFilter {
	if filter == nil {
		return q.m_filter
	}
	return filter
}

func vec3Finite(v common.Vec3) bool {
	return common.Visfinite(v[:])
}

// checkStartPoly validates a reference and tests it against the filter.
func (q *DtNavMeshQuery) checkStartPoly(ref DtPolyRef, filter *DtQueryFilter) (*DtMeshTile, *DtPoly, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return nil, nil, status
	}
	if !filter.PassFilter(poly) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_FILTERED_OUT
	}
	return tile, poly, DT_SUCCESS
}

// / Returns true if the polygon reference is valid and passes the filter restrictions.
func (q *DtNavMeshQuery) IsValidPolyRef(ref DtPolyRef, filter *DtQueryFilter) bool {
	_, _, status := q.checkStartPoly(ref, q.filterOrDefault(filter))
	return status.Succeed()
}

// / Returns true if the polygon reference is in the closed list.
func (q *DtNavMeshQuery) IsInClosedList(ref DtPolyRef) bool {
	for _, n := range q.m_nodePool.FindNodes(ref, DT_MAX_STATES_PER_NODE) {
		if n.Flags&DT_NODE_CLOSED != 0 {
			return true
		}
	}
	return false
}

// / Provides custom polygon query behavior.
// / Process is called for each batch of unique polygons touched by the search
// / area in DtNavMeshQuery.QueryPolygonsWith. It can be called multiple times
// / for a single query.
type DtPolyQuery interface {
	Process(tile *DtMeshTile, polys []*DtPoly, refs []DtPolyRef)
}

type dtCollectPolysQuery struct {
	m_polys    []DtPolyRef
	m_maxPolys int
	m_overflow bool
}

func (c *dtCollectPolysQuery) Process(_ *DtMeshTile, _ []*DtPoly, refs []DtPolyRef) {
	numLeft := c.m_maxPolys - len(c.m_polys)
	toCopy := len(refs)
	if toCopy > numLeft {
		c.m_overflow = true
		toCopy = numLeft
	}
	c.m_polys = append(c.m_polys, refs[:toCopy]...)
}

type dtFindNearestPolyQuery struct {
	m_query              *DtNavMeshQuery
	m_center             []float32
	m_nearestDistanceSqr float32
	m_nearestRef         DtPolyRef
	m_nearestPoint       []float32
	m_overPoly           bool
}

func (n *dtFindNearestPolyQuery) Process(tile *DtMeshTile, _ []*DtPoly, refs []DtPolyRef) {
	for _, ref := range refs {
		closestPtPoly, posOverPoly := n.m_query.m_nav.ClosestPointOnPoly(ref, n.m_center)

		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		var diff [3]float32
		common.Vsub(diff[:], n.m_center, closestPtPoly)
		var d float32
		if posOverPoly {
			d = common.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = common.VlenSqr(diff[:])
		}

		if d < n.m_nearestDistanceSqr {
			n.m_nearestPoint = closestPtPoly
			n.m_nearestDistanceSqr = d
			n.m_nearestRef = ref
			n.m_overPoly = posOverPoly
		}
	}
}

// queryPolygonsInTile feeds the passable polygons overlapping the box to
// query in batches.
func (q *DtNavMeshQuery) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax []float32, filter *DtQueryFilter, query DtPolyQuery) {
	const batchSize = 32
	var polyRefs [batchSize]DtPolyRef
	var polys [batchSize]*DtPoly
	n := 0
	q.m_nav.queryPolygonsInTile(tile, qmin, qmax, func(ref DtPolyRef, poly *DtPoly) bool {
		if !filter.PassFilter(poly) {
			return true
		}
		polyRefs[n] = ref
		polys[n] = poly
		n++
		if n == batchSize {
			query.Process(tile, polys[:n], polyRefs[:n])
			n = 0
		}
		return true
	})
	// Process the last polygons that didn't make a full batch.
	if n > 0 {
		query.Process(tile, polys[:n], polyRefs[:n])
	}
}

// / Finds polygons that overlap the search box and hands them to query.
// /  @param[in]		center		The center of the search box. [(x, y, z)]
// /  @param[in]		halfExtents	The search distance along each axis. [(x, y, z)]
// /  @param[in]		filter		The polygon filter to apply to the query. [opt]
// /  @param[in]		query		The query. Polygons found will be batched together and passed to this query.
func (q *DtNavMeshQuery) QueryPolygonsWith(center, halfExtents common.Vec3, filter *DtQueryFilter, query DtPolyQuery) DtStatus {
	if !vec3Finite(center) || !vec3Finite(halfExtents) || halfExtents.X() < 0 || halfExtents.Y() < 0 || halfExtents.Z() < 0 || query == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	filter = q.filterOrDefault(filter)
	bmin := center.Sub(halfExtents)
	bmax := center.Add(halfExtents)

	// Find tiles the query touches.
	minx, miny := q.m_nav.CalcTileLoc(bmin[:])
	maxx, maxy := q.m_nav.CalcTileLoc(bmax[:])
	for y := miny; y <= maxy; y++ {
		for x := minx; x <= maxx; x++ {
			for _, tile := range q.m_nav.GetTilesAt(x, y) {
				q.queryPolygonsInTile(tile, bmin[:], bmax[:], filter, query)
			}
		}
	}
	return DT_SUCCESS
}

// / Finds polygons that overlap the search box.
// / When more than maxPolys polygons match, the first ones encountered are
// / returned with DT_BUFFER_TOO_SMALL.
func (q *DtNavMeshQuery) QueryPolygons(center, halfExtents common.Vec3, filter *DtQueryFilter, maxPolys int) ([]DtPolyRef, DtStatus) {
	if maxPolys < 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	collector := &dtCollectPolysQuery{m_maxPolys: maxPolys}
	status := q.QueryPolygonsWith(center, halfExtents, filter, collector)
	if status.Failed() {
		return nil, status
	}
	if collector.m_overflow {
		status |= DT_BUFFER_TOO_SMALL
	}
	return collector.m_polys, status
}

// / Finds the polygon nearest to the specified center point.
// / A point directly over a polygon within walkable climb height wins over a
// / strictly closer point off the polygon.
// / @return The polygon, the nearest point on it, and whether center is over it.
// / Fails with DT_NOT_FOUND when no passable polygon overlaps the search box.
func (q *DtNavMeshQuery) FindNearestPoly(center, halfExtents common.Vec3, filter *DtQueryFilter) (nearestRef DtPolyRef, nearestPt common.Vec3, isOverPoly bool, status DtStatus) {
	query := &dtFindNearestPolyQuery{
		m_query:              q,
		m_center:             center[:],
		m_nearestDistanceSqr: math.MaxFloat32,
	}
	status = q.QueryPolygonsWith(center, halfExtents, filter, query)
	if status.Failed() {
		return 0, nearestPt, false, status
	}
	if query.m_nearestRef == 0 {
		return 0, nearestPt, false, DT_FAILURE | DT_NOT_FOUND
	}
	return query.m_nearestRef, common.ToVec3(query.m_nearestPoint), query.m_overPoly, DT_SUCCESS
}

// / Finds the closest point on the specified polygon.
// / posOverPoly is true when pos is over the polygon.
func (q *DtNavMeshQuery) ClosestPointOnPoly(ref DtPolyRef, pos common.Vec3) (closest common.Vec3, posOverPoly bool, status DtStatus) {
	if !q.m_nav.IsValidPolyRef(ref) {
		return closest, false, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	if !vec3Finite(pos) {
		return closest, false, DT_FAILURE | DT_INVALID_PARAM
	}
	pt, over := q.m_nav.ClosestPointOnPoly(ref, pos[:])
	return common.ToVec3(pt), over, DT_SUCCESS
}

// / Returns a point on the boundary closest to the source point if the source
// / point is outside the polygon's xz-bounds, otherwise the source point itself.
// / Faster than ClosestPointOnPoly since it does not use the detail mesh.
func (q *DtNavMeshQuery) ClosestPointOnPolyBoundary(ref DtPolyRef, pos common.Vec3) (common.Vec3, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return common.Vec3{}, status
	}
	if !vec3Finite(pos) {
		return common.Vec3{}, DT_FAILURE | DT_INVALID_PARAM
	}
	closest := q.closestPointOnPolyBoundary(tile, poly, pos[:])
	return common.ToVec3(closest), DT_SUCCESS
}

func (q *DtNavMeshQuery) closestPointOnPolyBoundary(tile *DtMeshTile, poly *DtPoly, pos []float32) []float32 {
	// Collect vertices.
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	var edged, edget [DT_VERTS_PER_POLYGON]float32
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		copy(verts[i*3:i*3+3], common.GetVert3(tile.Verts, poly.Verts[i]))
	}

	closest := make([]float32, 3)
	if dtDistancePtPolyEdgesSqr(pos, verts[:], nv, edged[:], edget[:]) {
		// Point is inside the polygon, return the point.
		copy(closest, pos)
		return closest
	}
	// Point is outside the polygon, dtClamp to nearest edge.
	dmin := edged[0]
	imin := 0
	for i := 1; i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin*3 : imin*3+3]
	vb := verts[((imin+1)%nv)*3 : ((imin+1)%nv)*3+3]
	common.Vlerp(closest, va, vb, edget[imin])
	return closest
}

// / Gets the height of the polygon at the provided position using the height detail.
// / Fails with DT_INVALID_PARAM when the position is not over the polygon.
func (q *DtNavMeshQuery) GetPolyHeight(ref DtPolyRef, pos common.Vec3) (float32, DtStatus) {
	tile, poly, status := q.m_nav.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	if !common.Visfinite2D(pos[:]) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// We used to return success for offmesh connections, but the
	// getPolyHeight in DetourNavMesh does not do this, so special
	// case it here.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := common.GetVert3(tile.Verts, poly.Verts[0])
		v1 := common.GetVert3(tile.Verts, poly.Verts[1])
		t, _ := DtDistancePtSegSqr2D(pos[:], v0, v1)
		return v0[1] + (v1[1]-v0[1])*t, DT_SUCCESS
	}

	if h, ok := q.m_nav.GetPolyHeight(tile, poly, DtDecodePolyIdPoly(ref), pos[:]); ok {
		return h, DT_SUCCESS
	}
	return 0, DT_FAILURE | DT_INVALID_PARAM
}

// / Returns portal points between two polygons.
func (q *DtNavMeshQuery) GetPortalPoints(from, to DtPolyRef) (left, right common.Vec3, status DtStatus) {
	fromTile, fromPoly, status := q.m_nav.GetTileAndPolyByRef(from)
	if status.Failed() {
		return left, right, status
	}
	toTile, toPoly, status := q.m_nav.GetTileAndPolyByRef(to)
	if status.Failed() {
		return left, right, status
	}
	l, r, status := q.getPortalPoints(from, fromPoly, fromTile, to, toPoly, toTile)
	if status.Failed() {
		return left, right, status
	}
	return common.ToVec3(l), common.ToVec3(r), status
}

func (q *DtNavMeshQuery) getPortalPoints(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) (left, right []float32, status DtStatus) {
	// Find the link that points to the 'to' polygon.
	var link *DtLink
	for i := fromPoly.FirstLink; i != DT_NULL_LINK; i = fromTile.Links[i].Next {
		if fromTile.Links[i].Ref == to {
			link = &fromTile.Links[i]
			break
		}
	}
	if link == nil {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	left = make([]float32, 3)
	right = make([]float32, 3)

	// Handle off-mesh connections.
	if fromPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v := common.GetVert3(fromTile.Verts, fromPoly.Verts[link.Edge])
		copy(left, v)
		copy(right, v)
		return left, right, DT_SUCCESS
	}

	if toPoly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		for i := toPoly.FirstLink; i != DT_NULL_LINK; i = toTile.Links[i].Next {
			if toTile.Links[i].Ref == from {
				v := common.GetVert3(toTile.Verts, toPoly.Verts[toTile.Links[i].Edge])
				copy(left, v)
				copy(right, v)
				return left, right, DT_SUCCESS
			}
		}
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}

	// Find portal vertices.
	v0 := common.GetVert3(fromTile.Verts, fromPoly.Verts[link.Edge])
	v1 := common.GetVert3(fromTile.Verts, fromPoly.Verts[(int(link.Edge)+1)%int(fromPoly.VertCount)])
	copy(left, v0)
	copy(right, v1)

	// If the link is at tile boundary, dtClamp the vertices to
	// the link width.
	if link.Side != 0xff {
		// Unpack portal limits.
		if link.Bmin != 0 || link.Bmax != 255 {
			const s = 1.0 / 255.0
			tmin := float32(link.Bmin) * s
			tmax := float32(link.Bmax) * s
			common.Vlerp(left, v0, v1, tmin)
			common.Vlerp(right, v0, v1, tmax)
		}
	}
	return left, right, DT_SUCCESS
}

// getEdgeMidPoint returns the middle of the portal between two polygons.
func (q *DtNavMeshQuery) getEdgeMidPoint(from DtPolyRef, fromPoly *DtPoly, fromTile *DtMeshTile,
	to DtPolyRef, toPoly *DtPoly, toTile *DtMeshTile) ([]float32, DtStatus) {
	left, right, status := q.getPortalPoints(from, fromPoly, fromTile, to, toPoly, toTile)
	if status.Failed() {
		return nil, status
	}
	mid := make([]float32, 3)
	common.Vlerp(mid, left, right, 0.5)
	return mid, DT_SUCCESS
}

// / Returns the middle point of the portal between two adjacent polygons.
func (q *DtNavMeshQuery) GetEdgeMidPoint(from, to DtPolyRef) (common.Vec3, DtStatus) {
	left, right, status := q.GetPortalPoints(from, to)
	if status.Failed() {
		return common.Vec3{}, status
	}
	return left.Add(right).Mul(0.5), DT_SUCCESS
}
