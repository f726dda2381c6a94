package detour

import "github.com/gorustyt/navquery/common"

// / Defines polygon filtering and traversal costs for navigation mesh query operations.
// / A polygon is passable when (flags & include) != 0 and (flags & exclude) == 0.
// / Queries never modify the filter they are given.
type DtQueryFilter struct {
	m_areaCost     [DT_MAX_AREAS]float32 ///< Cost per area type. (Used by default implementation.)
	m_includeFlags uint16                ///< Flags for polygons that can be visited. (Used by default implementation.)
	m_excludeFlags uint16                ///< Flags for polygons that should not be visited. (Used by default implementation.)
}

// NewDtQueryFilter returns the default filter: every flag included,
// nothing excluded and unit cost for all areas.
func NewDtQueryFilter() *DtQueryFilter {
	f := &DtQueryFilter{m_includeFlags: 0xffff}
	for i := range f.m_areaCost {
		f.m_areaCost[i] = 1.0
	}
	return f
}

// / Returns true if the polygon can be visited.  (I.e. Is traversable.)
func (f *DtQueryFilter) PassFilter(poly *DtPoly) bool {
	return (poly.Flags&f.m_includeFlags) != 0 && (poly.Flags&f.m_excludeFlags) == 0
}

// / Returns cost to move from the beginning to the end of a line segment
// / that enters the polygon poly.
func (f *DtQueryFilter) GetCost(pa, pb []float32, poly *DtPoly) float32 {
	return common.Vdist(pa, pb) * f.m_areaCost[poly.GetArea()]
}

// / Returns the traversal cost of the area. Ids outside [0, DT_MAX_AREAS) are rejected.
func (f *DtQueryFilter) GetAreaCost(i int) (float32, DtStatus) {
	if i < 0 || i >= DT_MAX_AREAS {
		return 0, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_AREA
	}
	return f.m_areaCost[i], DT_SUCCESS
}

// / Sets the traversal cost of the area. Ids outside [0, DT_MAX_AREAS) are rejected.
func (f *DtQueryFilter) SetAreaCost(i int, cost float32) DtStatus {
	if i < 0 || i >= DT_MAX_AREAS {
		return DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_AREA
	}
	f.m_areaCost[i] = cost
	return DT_SUCCESS
}

// / Returns the include flags for the filter.
func (f *DtQueryFilter) GetIncludeFlags() uint16 { return f.m_includeFlags }

// / Sets the include flags for the filter.
func (f *DtQueryFilter) SetIncludeFlags(flags uint16) { f.m_includeFlags = flags }

// / Returns the exclude flags for the filter.
func (f *DtQueryFilter) GetExcludeFlags() uint16 { return f.m_excludeFlags }

// / Sets the exclude flags for the filter.
func (f *DtQueryFilter) SetExcludeFlags(flags uint16) { f.m_excludeFlags = flags }
