package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
)

// DtDistancePtSegSqr2D returns the parameter of the closest point on pq to
// pt and the squared xz distance to it.
func DtDistancePtSegSqr2D(pt, p, q []float32) (t float32, distSqr float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return t, dx*dx + dz*dz
}

// / Derives the centroid of a convex polygon.
func dtCalcPolyCenter(tile *DtMeshTile, poly *DtPoly) []float32 {
	tc := make([]float32, 3)
	for j := 0; j < int(poly.VertCount); j++ {
		common.Vadd(tc, tc, common.GetVert3(tile.Verts, poly.Verts[j]))
	}
	common.Vscale(tc, tc, 1.0/float32(poly.VertCount))
	return tc
}

func dtClosestHeightPointTriangle(p, a, b, c []float32) (h float32, ok bool) {
	const EPS = 1e-6
	var v0, v1, v2 [3]float32
	common.Vsub(v0[:], c, a)
	common.Vsub(v1[:], b, a)
	common.Vsub(v2[:], p, a)

	// Compute scaled barycentric coordinates
	denom := v0[0]*v1[2] - v0[2]*v1[0]
	if common.Abs(denom) < EPS {
		return 0, false
	}
	u := v1[2]*v2[0] - v1[0]*v2[2]
	v := v0[0]*v2[2] - v0[2]*v2[0]

	if denom < 0 {
		denom = -denom
		u = -u
		v = -v
	}

	// If point lies inside the triangle, return interpolated ycoord.
	if u >= 0.0 && v >= 0.0 && (u+v) <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

func dtOppositeTile(side int32) int32 { return (side + 4) & 0x7 }

// / Determines if two quantized axis-aligned bounding boxes overlap.
func dtOverlapQuantBounds(amin, amax, bmin, bmax [3]uint16) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	if amin[2] > bmax[2] || amax[2] < bmin[2] {
		return false
	}
	return true
}

// dtPointInPolygon tests pt against the polygon on the xz-plane.
func dtPointInPolygon(pt, verts []float32, nverts int) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := common.GetVert3(verts, i)
		vj := common.GetVert3(verts, j)
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
	}
	return c
}

// dtDistancePtPolyEdgesSqr reports whether pt is inside the polygon and
// fills ed/et with the squared distance and segment parameter per edge.
func dtDistancePtPolyEdgesSqr(pt, verts []float32, nverts int, ed, et []float32) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := common.GetVert3(verts, i)
		vj := common.GetVert3(verts, j)
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		et[j], ed[j] = DtDistancePtSegSqr2D(pt, vj, vi)
	}
	return c
}

// Returns a random point in a convex polygon.
// Adapted from Graphics Gems article.
func dtRandomPointInConvexPoly(pts []float32, npts int, areas []float32, s, t float32) []float32 {
	// Calc triangle araes
	areasum := float32(0.0)
	for i := 2; i < npts; i++ {
		areas[i] = common.TriArea2D(common.GetVert3(pts, 0), common.GetVert3(pts, i-1), common.GetVert3(pts, i))
		areasum += max(0.001, areas[i])
	}
	// Find sub triangle weighted by area.
	thr := s * areasum
	acc := float32(0.0)
	u := float32(1.0)
	tri := npts - 1
	for i := 2; i < npts; i++ {
		dacc := areas[i]
		if thr >= acc && thr < (acc+dacc) {
			u = (thr - acc) / dacc
			tri = i
			break
		}
		acc += dacc
	}

	v := float32(math.Sqrt(float64(t)))

	a := 1 - v
	b := (1 - u) * v
	c := u * v
	pa := common.GetVert3(pts, 0)
	pb := common.GetVert3(pts, tri-1)
	pc := common.GetVert3(pts, tri)

	pt := make([]float32, 3)
	pt[0] = a*pa[0] + b*pb[0] + c*pc[0]
	pt[1] = a*pa[1] + b*pb[1] + c*pc[1]
	pt[2] = a*pa[2] + b*pb[2] + c*pc[2]
	return pt
}

func vperpXZ(a, b []float32) float32 { return a[0]*b[2] - a[2]*b[0] }

func dtIntersectSegSeg2D(ap, aq, bp, bq []float32) (s, t float32, ok bool) {
	var u, v, w [3]float32
	common.Vsub(u[:], aq, ap)
	common.Vsub(v[:], bq, bp)
	common.Vsub(w[:], ap, bp)
	d := vperpXZ(u[:], v[:])
	if common.Abs(d) < 1e-6 {
		return 0, 0, false
	}
	s = vperpXZ(v[:], w[:]) / d
	t = vperpXZ(u[:], w[:]) / d
	return s, t, true
}

// dtVperp2D is the xz-plane perp product (u.z*v.x - u.x*v.z).
func dtVperp2D(u, v []float32) float32 { return u[2]*v[0] - u[0]*v[2] }

// dtIntersectSegmentPoly2D clips the segment p0-p1 against a convex polygon
// on the xz-plane. segMin/segMax are the entering and leaving edge indices,
// -1 when the segment starts or ends inside the polygon.
func dtIntersectSegmentPoly2D(p0, p1, verts []float32, nverts int) (tmin, tmax float32, segMin, segMax int, ok bool) {
	const EPS = 0.000001
	tmin, tmax = 0, 1
	segMin, segMax = -1, -1

	var dir, edge, diff [3]float32
	common.Vsub(dir[:], p1, p0)
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		common.Vsub(edge[:], verts[i*3:i*3+3], verts[j*3:j*3+3])
		common.Vsub(diff[:], p0, verts[j*3:j*3+3])
		n := dtVperp2D(edge[:], diff[:])
		d := dtVperp2D(dir[:], edge[:])
		if common.Abs(d) < EPS {
			// Parallel to this edge.
			if n < 0 {
				return tmin, tmax, segMin, segMax, false
			}
			continue
		}
		t := n / d
		if d < 0 {
			// Entering across this edge.
			if t > tmin {
				tmin = t
				segMin = j
				if tmin > tmax {
					return tmin, tmax, segMin, segMax, false
				}
			}
		} else {
			// Leaving across this edge.
			if t < tmax {
				tmax = t
				segMax = j
				if tmax < tmin {
					return tmin, tmax, segMin, segMax, false
				}
			}
		}
	}
	return tmin, tmax, segMin, segMax, true
}

// dtVnormalize scales v to unit length in place.
func dtVnormalize(v []float32) {
	d := float32(1.0 / math.Sqrt(float64(v[0]*v[0]+v[1]*v[1]+v[2]*v[2])))
	v[0] *= d
	v[1] *= d
	v[2] *= d
}
