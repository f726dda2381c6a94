package detour

import (
	"math"

	"github.com/gorustyt/navquery/common"
	"go.uber.org/zap"
)

// DtNavMesh owns a grid of tiles and the links between their polygons.
// Queries only read from it; tile add/remove and the poly flag/area
// setters must be serialized by the caller.
type DtNavMesh struct {
	m_params                  NavMeshParams
	m_orig                    [3]float32    ///< Origin of the tile (0,0)
	m_tileWidth, m_tileHeight float32       ///< Dimensions of each tile.
	m_maxTiles                int32         ///< Max number of tiles.
	m_tileLutSize             int32         ///< Tile hash lookup size (must be pot).
	m_tileLutMask             int32         ///< Tile hash lookup mask.
	m_posLookup               []*DtMeshTile ///< Tile hash lookup.
	m_nextFree                *DtMeshTile   ///< Freelist of tiles.
	m_tiles                   []DtMeshTile  ///< List of tiles.

	log *zap.Logger
}

type NavMeshOption func(*DtNavMesh)

// WithMeshLogger sets the logger used for tile management events.
func WithMeshLogger(l *zap.Logger) NavMeshOption {
	return func(m *DtNavMesh) {
		if l != nil {
			m.log = l
		}
	}
}

// / Initializes the navigation mesh for tiled use.
// /  @param[in]	params		Initialization parameters.
// / @return The status flags for the operation.
func NewDtNavMesh(params *NavMeshParams, opts ...NavMeshOption) (*DtNavMesh, DtStatus) {
	if params == nil || params.MaxTiles <= 0 || params.MaxTiles > 1<<DT_TILE_BITS ||
		params.MaxPolys <= 0 || params.MaxPolys > 1<<DT_POLY_BITS ||
		!(params.TileWidth > 0) || !(params.TileHeight > 0) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	mesh := &DtNavMesh{log: zap.NewNop()}
	for _, opt := range opts {
		opt(mesh)
	}
	mesh.m_params = *params
	mesh.m_orig = params.Orig
	mesh.m_tileWidth = params.TileWidth
	mesh.m_tileHeight = params.TileHeight

	// Init tiles
	mesh.m_maxTiles = params.MaxTiles
	mesh.m_tileLutSize = int32(common.NextPow2(uint32(params.MaxTiles / 4)))
	if mesh.m_tileLutSize == 0 {
		mesh.m_tileLutSize = 1
	}
	mesh.m_tileLutMask = mesh.m_tileLutSize - 1
	mesh.m_posLookup = make([]*DtMeshTile, mesh.m_tileLutSize)
	mesh.m_tiles = make([]DtMeshTile, mesh.m_maxTiles)
	for i := mesh.m_maxTiles - 1; i >= 0; i-- {
		tile := &mesh.m_tiles[i]
		tile.salt = 1
		tile.index = uint32(i)
		tile.Next = mesh.m_nextFree
		mesh.m_nextFree = tile
	}
	return mesh, DT_SUCCESS
}

// / Initializes the navigation mesh for single tile use.
func NewDtNavMeshSingle(data *NavMeshData, opts ...NavMeshOption) (*DtNavMesh, DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return nil, 0, DT_FAILURE | DT_INVALID_PARAM
	}
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return nil, 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return nil, 0, DT_FAILURE | DT_WRONG_VERSION
	}
	params := NavMeshParams{
		Orig:       header.Bmin,
		TileWidth:  header.Bmax[0] - header.Bmin[0],
		TileHeight: header.Bmax[2] - header.Bmin[2],
		MaxTiles:   1,
		MaxPolys:   max(header.PolyCount, 1),
	}
	mesh, status := NewDtNavMesh(&params, opts...)
	if status.Failed() {
		return nil, 0, status
	}
	ref, status := mesh.AddTile(data, 0)
	if status.Failed() {
		return nil, 0, status
	}
	return mesh, ref, status
}

func (mesh *DtNavMesh) GetParams() NavMeshParams {
	return mesh.m_params
}

// / The maximum number of tiles supported by the navigation mesh.
func (mesh *DtNavMesh) GetMaxTiles() int32 {
	return mesh.m_maxTiles
}

// / Gets the tile at the specified index. Tiles without data have a nil Header.
func (mesh *DtNavMesh) GetTile(i int) *DtMeshTile {
	return &mesh.m_tiles[i]
}

func computeTileHash(x, y, mask int32) int32 {
	const h1 uint32 = 0x8da6b343 // Large multiplicative constants;
	const h2 uint32 = 0xd8163841 // here arbitrarily chosen primes
	n := h1*uint32(x) + h2*uint32(y)
	return int32(n & uint32(mask))
}

func (mesh *DtNavMesh) CalcTileLoc(pos []float32) (tx, ty int32) {
	tx = int32(math.Floor(float64((pos[0] - mesh.m_orig[0]) / mesh.m_tileWidth)))
	ty = int32(math.Floor(float64((pos[2] - mesh.m_orig[2]) / mesh.m_tileHeight)))
	return tx, ty
}

// / Gets the tile at the specified grid location.
// / @return The tile, or nil if the tile does not exist.
func (mesh *DtNavMesh) GetTileAt(x, y, layer int32) *DtMeshTile {
	h := computeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y && tile.Header.Layer == layer {
			return tile
		}
	}
	return nil
}

// / Gets all tiles at the specified grid location. (All layers.)
func (mesh *DtNavMesh) GetTilesAt(x, y int32) (tiles []*DtMeshTile) {
	h := computeTileHash(x, y, mesh.m_tileLutMask)
	for tile := mesh.m_posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y {
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

func (mesh *DtNavMesh) getNeighbourTilesAt(x, y int32, side int32) []*DtMeshTile {
	nx, ny := x, y
	switch side {
	case 0:
		nx++
	case 1:
		nx++
		ny++
	case 2:
		ny++
	case 3:
		nx--
		ny++
	case 4:
		nx--
	case 5:
		nx--
		ny--
	case 6:
		ny--
	case 7:
		nx++
		ny--
	}
	return mesh.GetTilesAt(nx, ny)
}

func (mesh *DtNavMesh) GetTileRefAt(x, y, layer int32) DtTileRef {
	return mesh.GetTileRef(mesh.GetTileAt(x, y, layer))
}

func (mesh *DtNavMesh) GetTileRef(tile *DtMeshTile) DtTileRef {
	if tile == nil {
		return 0
	}
	return DtTileRef(DtEncodePolyId(tile.salt, tile.index, 0))
}

// / Gets the tile for the specified tile reference, or nil if the reference is stale.
func (mesh *DtNavMesh) GetTileByRef(ref DtTileRef) *DtMeshTile {
	if ref == 0 {
		return nil
	}
	tileIndex := DtDecodePolyIdTile(DtPolyRef(ref))
	tileSalt := DtDecodePolyIdSalt(DtPolyRef(ref))
	if int(tileIndex) >= int(mesh.m_maxTiles) {
		return nil
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil
	}
	return tile
}

// / Gets the polygon reference for the tile's base polygon.
func (mesh *DtNavMesh) GetPolyRefBase(tile *DtMeshTile) DtPolyRef {
	if tile == nil {
		return 0
	}
	return DtEncodePolyId(tile.salt, tile.index, 0)
}

// / Gets the tile and polygon for the specified polygon reference.
func (mesh *DtNavMesh) GetTileAndPolyByRef(ref DtPolyRef) (*DtMeshTile, *DtPoly, DtStatus) {
	if ref == 0 {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	salt, it, ip := DtDecodePolyId(ref)
	if it >= uint32(mesh.m_maxTiles) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	tile := &mesh.m_tiles[it]
	if tile.salt != salt || tile.Header == nil {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	if ip >= uint32(tile.Header.PolyCount) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_REF
	}
	return tile, &tile.Polys[ip], DT_SUCCESS
}

// / Returns the tile and polygon for a polygon reference already known to be valid.
func (mesh *DtNavMesh) GetTileAndPolyByRefUnsafe(ref DtPolyRef) (*DtMeshTile, *DtPoly) {
	_, it, ip := DtDecodePolyId(ref)
	tile := &mesh.m_tiles[it]
	return tile, &tile.Polys[ip]
}

// / Checks the validity of a polygon reference.
func (mesh *DtNavMesh) IsValidPolyRef(ref DtPolyRef) bool {
	_, _, status := mesh.GetTileAndPolyByRef(ref)
	return status.Succeed()
}

// / Adds a tile to the navigation mesh.
// /  @param[in]		data		Data for the new tile mesh.
// /  @param[in]		lastRef		The desired reference for the tile. (When reloading a tile.) [opt]
// / @return The tile reference and the status flags for the operation.
func (mesh *DtNavMesh) AddTile(data *NavMeshData, lastRef DtTileRef) (DtTileRef, DtStatus) {
	if data == nil || data.Header == nil {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	header := data.Header
	if header.Magic != DT_NAVMESH_MAGIC {
		return 0, DT_FAILURE | DT_WRONG_MAGIC
	}
	if header.Version != DT_NAVMESH_VERSION {
		return 0, DT_FAILURE | DT_WRONG_VERSION
	}
	if !data.countsMatch() || header.PolyCount > mesh.m_params.MaxPolys {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}

	// Make sure the location is free.
	if mesh.GetTileAt(header.X, header.Y, header.Layer) != nil {
		return 0, DT_FAILURE | DT_ALREADY_OCCUPIED
	}

	// Allocate a tile.
	var tile *DtMeshTile
	if lastRef == 0 {
		if mesh.m_nextFree != nil {
			tile = mesh.m_nextFree
			mesh.m_nextFree = tile.Next
			tile.Next = nil
		}
	} else {
		// Try to relocate the tile to specific index with same salt.
		tileIndex := DtDecodePolyIdTile(DtPolyRef(lastRef))
		if tileIndex >= uint32(mesh.m_maxTiles) {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}
		// Try to find the specific tile id from the free list.
		target := &mesh.m_tiles[tileIndex]
		var prev *DtMeshTile
		tile = mesh.m_nextFree
		for tile != nil && tile != target {
			prev = tile
			tile = tile.Next
		}
		// Could not find the correct location.
		if tile != target {
			return 0, DT_FAILURE | DT_OUT_OF_MEMORY
		}
		// Remove from freelist
		if prev == nil {
			mesh.m_nextFree = tile.Next
		} else {
			prev.Next = tile.Next
		}
		// Restore salt.
		tile.salt = DtDecodePolyIdSalt(DtPolyRef(lastRef))
	}
	if tile == nil {
		return 0, DT_FAILURE | DT_OUT_OF_MEMORY
	}

	// Insert tile into the position lut.
	h := computeTileHash(header.X, header.Y, mesh.m_tileLutMask)
	tile.Next = mesh.m_posLookup[h]
	mesh.m_posLookup[h] = tile

	tile.Header = header
	tile.Verts = data.NavVerts
	tile.Polys = data.NavPolys
	tile.DetailMeshes = data.NavDMeshes
	tile.DetailVerts = data.NavDVerts
	tile.DetailTris = data.NavDTris
	tile.BvTree = data.NavBvtree
	tile.OffMeshCons = data.OffMeshCons
	tile.Data = data

	// Build links freelist
	tile.Links = make([]DtLink, header.MaxLinkCount)
	tile.linksFreeList = DT_NULL_LINK
	if header.MaxLinkCount > 0 {
		tile.linksFreeList = 0
		for i := range tile.Links {
			tile.Links[i].Next = uint32(i + 1)
		}
		tile.Links[len(tile.Links)-1].Next = DT_NULL_LINK
	}

	mesh.connectIntLinks(tile)

	// Base off-mesh connections to their starting polygons and connect connections inside the tile.
	mesh.baseOffMeshLinks(tile)
	mesh.connectExtOffMeshLinks(tile, tile, -1)

	// Connect with layers in current tile.
	for _, nei := range mesh.GetTilesAt(header.X, header.Y) {
		if nei == tile {
			continue
		}
		mesh.connectExtLinks(tile, nei, -1)
		mesh.connectExtLinks(nei, tile, -1)
		mesh.connectExtOffMeshLinks(tile, nei, -1)
		mesh.connectExtOffMeshLinks(nei, tile, -1)
	}

	// Connect with neighbour tiles.
	for i := int32(0); i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(header.X, header.Y, i) {
			mesh.connectExtLinks(tile, nei, i)
			mesh.connectExtLinks(nei, tile, dtOppositeTile(i))
			mesh.connectExtOffMeshLinks(tile, nei, i)
			mesh.connectExtOffMeshLinks(nei, tile, dtOppositeTile(i))
		}
	}

	ref := mesh.GetTileRef(tile)
	mesh.log.Info("tile added",
		zap.Int32("x", header.X), zap.Int32("y", header.Y), zap.Int32("layer", header.Layer),
		zap.Int32("polys", header.PolyCount), zap.Uint64("ref", uint64(ref)))
	return ref, DT_SUCCESS
}

// / Removes the specified tile from the navigation mesh. The tile data is
// / returned to the caller and all references into the tile become stale.
func (mesh *DtNavMesh) RemoveTile(ref DtTileRef) (*NavMeshData, DtStatus) {
	if ref == 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tileIndex := DtDecodePolyIdTile(DtPolyRef(ref))
	tileSalt := DtDecodePolyIdSalt(DtPolyRef(ref))
	if tileIndex >= uint32(mesh.m_maxTiles) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile := &mesh.m_tiles[tileIndex]
	if tile.salt != tileSalt || tile.Header == nil {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	// Remove tile from hash lookup.
	h := computeTileHash(tile.Header.X, tile.Header.Y, mesh.m_tileLutMask)
	var prev *DtMeshTile
	for cur := mesh.m_posLookup[h]; cur != nil; cur = cur.Next {
		if cur == tile {
			if prev != nil {
				prev.Next = cur.Next
			} else {
				mesh.m_posLookup[h] = cur.Next
			}
			break
		}
		prev = cur
	}

	// Remove connections to neighbour tiles.
	for _, nei := range mesh.GetTilesAt(tile.Header.X, tile.Header.Y) {
		if nei == tile {
			continue
		}
		mesh.unconnectLinks(nei, tile)
	}
	for i := int32(0); i < 8; i++ {
		for _, nei := range mesh.getNeighbourTilesAt(tile.Header.X, tile.Header.Y, i) {
			mesh.unconnectLinks(nei, tile)
		}
	}

	data := tile.Data
	x, y := tile.Header.X, tile.Header.Y

	// Reset tile.
	tile.Header = nil
	tile.Data = nil
	tile.Polys = nil
	tile.Verts = nil
	tile.Links = nil
	tile.DetailMeshes = nil
	tile.DetailVerts = nil
	tile.DetailTris = nil
	tile.BvTree = nil
	tile.OffMeshCons = nil
	tile.linksFreeList = DT_NULL_LINK

	// Update salt, salt should never be zero.
	tile.salt = (tile.salt + 1) & dtSaltMask
	if tile.salt == 0 {
		tile.salt++
	}

	// Add to free list.
	tile.Next = mesh.m_nextFree
	mesh.m_nextFree = tile

	mesh.log.Info("tile removed", zap.Int32("x", x), zap.Int32("y", y), zap.Uint64("ref", uint64(ref)))
	return data, DT_SUCCESS
}

// countsMatch checks the array sizes against the header and every index
// the queries follow without bounds checks.
func (d *NavMeshData) countsMatch() bool {
	h := d.Header
	if len(d.NavVerts) != int(h.VertCount)*3 || len(d.NavPolys) != int(h.PolyCount) ||
		len(d.NavDMeshes) != int(h.DetailMeshCount) ||
		len(d.NavDVerts) != int(h.DetailVertCount)*3 || len(d.NavDTris) != int(h.DetailTriCount)*4 ||
		len(d.NavBvtree) != int(h.BvNodeCount) || len(d.OffMeshCons) != int(h.OffMeshConCount) {
		return false
	}
	if h.OffMeshBase < 0 || h.OffMeshBase > h.PolyCount || h.DetailMeshCount > h.PolyCount {
		return false
	}
	if len(d.NavDMeshes) != 0 && len(d.NavDMeshes) < int(h.OffMeshBase) {
		return false
	}
	for i := range d.NavPolys {
		p := &d.NavPolys[i]
		if int(p.VertCount) > DT_VERTS_PER_POLYGON {
			return false
		}
		for j := 0; j < int(p.VertCount); j++ {
			if int(p.Verts[j]) >= int(h.VertCount) {
				return false
			}
			// Internal neighbours are stored as index+1.
			if nei := p.Neis[j]; nei != 0 && nei&DT_EXT_LINK == 0 && int(nei-1) >= int(h.PolyCount) {
				return false
			}
		}
	}
	for i := range d.NavDMeshes {
		dm := &d.NavDMeshes[i]
		if int(dm.VertBase)+int(dm.VertCount) > int(h.DetailVertCount) ||
			int(dm.TriBase)+int(dm.TriCount) > int(h.DetailTriCount) {
			return false
		}
		// Triangle indices address the polygon vertices first, then the detail vertices.
		nv := int(d.NavPolys[i].VertCount) + int(dm.VertCount)
		for k := 0; k < int(dm.TriCount); k++ {
			t := d.NavDTris[(int(dm.TriBase)+k)*4:]
			if int(t[0]) >= nv || int(t[1]) >= nv || int(t[2]) >= nv {
				return false
			}
		}
	}
	for i := range d.NavBvtree {
		n := d.NavBvtree[i].I
		if n >= h.PolyCount {
			return false
		}
		// Escape indices must land inside the tree.
		if n < 0 && i-int(n) > len(d.NavBvtree) {
			return false
		}
	}
	for i := range d.OffMeshCons {
		if int(d.OffMeshCons[i].Poly) >= int(h.PolyCount) {
			return false
		}
	}
	return true
}

func allocLink(tile *DtMeshTile) uint32 {
	if tile.linksFreeList == DT_NULL_LINK {
		return DT_NULL_LINK
	}
	link := tile.linksFreeList
	tile.linksFreeList = tile.Links[link].Next
	return link
}

func freeLink(tile *DtMeshTile, link uint32) {
	tile.Links[link].Next = tile.linksFreeList
	tile.linksFreeList = link
}

func (mesh *DtNavMesh) warnOutOfLinks(tile *DtMeshTile, where string) {
	mesh.log.Warn("tile ran out of links",
		zap.String("stage", where),
		zap.Int32("x", tile.Header.X), zap.Int32("y", tile.Header.Y),
		zap.Int32("maxLinks", tile.Header.MaxLinkCount))
}

func (mesh *DtNavMesh) connectIntLinks(tile *DtMeshTile) {
	base := mesh.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		poly.FirstLink = DT_NULL_LINK
		if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}

		// Build edge links backwards so that the links will be
		// in the linked list from lowest index to highest.
		for j := int(poly.VertCount) - 1; j >= 0; j-- {
			// Skip hard and non-internal edges.
			if poly.Neis[j] == 0 || (poly.Neis[j]&DT_EXT_LINK) != 0 {
				continue
			}
			idx := allocLink(tile)
			if idx == DT_NULL_LINK {
				mesh.warnOutOfLinks(tile, "internal")
				return
			}
			link := &tile.Links[idx]
			link.Ref = base | DtPolyRef(poly.Neis[j]-1)
			link.Edge = uint8(j)
			link.Side = 0xff
			link.Bmin = 0
			link.Bmax = 0
			// Add to linked list.
			link.Next = poly.FirstLink
			poly.FirstLink = idx
		}
	}
}

func (mesh *DtNavMesh) baseOffMeshLinks(tile *DtMeshTile) {
	base := mesh.GetPolyRefBase(tile)

	// Base off-mesh connection start points.
	for i := range tile.OffMeshCons {
		con := &tile.OffMeshCons[i]
		poly := &tile.Polys[con.Poly]

		halfExtents := []float32{con.Rad, tile.Header.WalkableClimb, con.Rad}

		// Find polygon to connect to.
		p := con.Pos[0:3] // First vertex
		ref, nearestPt := mesh.findNearestPolyInTile(tile, p, halfExtents)
		if ref == 0 {
			continue
		}
		// findNearestPoly may return too optimistic results, further check to make sure.
		if common.Sqr(nearestPt[0]-p[0])+common.Sqr(nearestPt[2]-p[2]) > common.Sqr(con.Rad) {
			continue
		}
		// Make sure the location is on current mesh.
		copy(common.GetVert3(tile.Verts, poly.Verts[0]), nearestPt)

		// Link off-mesh connection to target poly.
		idx := allocLink(tile)
		if idx == DT_NULL_LINK {
			mesh.warnOutOfLinks(tile, "offmesh base")
			return
		}
		link := &tile.Links[idx]
		link.Ref = ref
		link.Edge = 0
		link.Side = 0xff
		link.Bmin = 0
		link.Bmax = 0
		link.Next = poly.FirstLink
		poly.FirstLink = idx

		// Start end-point is always connect back to off-mesh connection.
		tidx := allocLink(tile)
		if tidx == DT_NULL_LINK {
			mesh.warnOutOfLinks(tile, "offmesh base")
			return
		}
		landPoly := &tile.Polys[DtDecodePolyIdPoly(ref)]
		link = &tile.Links[tidx]
		link.Ref = base | DtPolyRef(con.Poly)
		link.Edge = 0xff
		link.Side = 0xff
		link.Bmin = 0
		link.Bmax = 0
		link.Next = landPoly.FirstLink
		landPoly.FirstLink = tidx
	}
}

func (mesh *DtNavMesh) connectExtOffMeshLinks(tile, target *DtMeshTile, side int32) {
	// Connect off-mesh links.
	// We are interested on links which land from target tile to this tile.
	oppositeSide := uint8(0xff)
	if side != -1 {
		oppositeSide = uint8(dtOppositeTile(side))
	}

	for i := range target.OffMeshCons {
		targetCon := &target.OffMeshCons[i]
		if targetCon.Side != oppositeSide {
			continue
		}

		targetPoly := &target.Polys[targetCon.Poly]
		// Skip off-mesh connections which start location could not be connected at all.
		if targetPoly.FirstLink == DT_NULL_LINK {
			continue
		}

		halfExtents := []float32{targetCon.Rad, target.Header.WalkableClimb, targetCon.Rad}

		// Find polygon to connect to.
		p := targetCon.Pos[3:6]
		ref, nearestPt := mesh.findNearestPolyInTile(tile, p, halfExtents)
		if ref == 0 {
			continue
		}
		// findNearestPoly may return too optimistic results, further check to make sure.
		if common.Sqr(nearestPt[0]-p[0])+common.Sqr(nearestPt[2]-p[2]) > common.Sqr(targetCon.Rad) {
			continue
		}
		// Make sure the location is on current mesh.
		copy(common.GetVert3(target.Verts, targetPoly.Verts[1]), nearestPt)

		// Link off-mesh connection to target poly.
		idx := allocLink(target)
		if idx == DT_NULL_LINK {
			mesh.warnOutOfLinks(target, "offmesh landing")
			return
		}
		link := &target.Links[idx]
		link.Ref = ref
		link.Edge = 1
		link.Side = oppositeSide
		link.Bmin = 0
		link.Bmax = 0
		link.Next = targetPoly.FirstLink
		targetPoly.FirstLink = idx

		// Link target poly to off-mesh connection.
		if targetCon.Flags&DT_OFFMESH_CON_BIDIR != 0 {
			tidx := allocLink(tile)
			if tidx == DT_NULL_LINK {
				mesh.warnOutOfLinks(tile, "offmesh landing")
				return
			}
			landPoly := &tile.Polys[DtDecodePolyIdPoly(ref)]
			link = &tile.Links[tidx]
			link.Ref = mesh.GetPolyRefBase(target) | DtPolyRef(targetCon.Poly)
			link.Edge = 0xff
			link.Side = 0xff
			if side != -1 {
				link.Side = uint8(side)
			}
			link.Bmin = 0
			link.Bmax = 0
			link.Next = landPoly.FirstLink
			landPoly.FirstLink = tidx
		}
	}
}

func (mesh *DtNavMesh) connectExtLinks(tile, target *DtMeshTile, side int32) {
	// Connect border links.
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			// Skip non-portal edges.
			if (poly.Neis[j] & DT_EXT_LINK) == 0 {
				continue
			}
			dir := int32(poly.Neis[j] & 0xff)
			if side != -1 && dir != side {
				continue
			}

			// Create new links
			va := common.GetVert3(tile.Verts, poly.Verts[j])
			vb := common.GetVert3(tile.Verts, poly.Verts[(j+1)%nv])
			nei, neia := mesh.findConnectingPolys(va, vb, target, dtOppositeTile(dir), 4)
			for k := range nei {
				idx := allocLink(tile)
				if idx == DT_NULL_LINK {
					mesh.warnOutOfLinks(tile, "external")
					return
				}
				link := &tile.Links[idx]
				link.Ref = nei[k]
				link.Edge = uint8(j)
				link.Side = uint8(dir)
				link.Next = poly.FirstLink
				poly.FirstLink = idx

				// Compress portal limits to a byte value.
				var tmin, tmax float32
				if dir == 0 || dir == 4 {
					tmin = (neia[k*2+0] - va[2]) / (vb[2] - va[2])
					tmax = (neia[k*2+1] - va[2]) / (vb[2] - va[2])
				} else {
					tmin = (neia[k*2+0] - va[0]) / (vb[0] - va[0])
					tmax = (neia[k*2+1] - va[0]) / (vb[0] - va[0])
				}
				if tmin > tmax {
					tmin, tmax = tmax, tmin
				}
				link.Bmin = uint8(math.Round(float64(common.Clamp(tmin, 0, 1) * 255)))
				link.Bmax = uint8(math.Round(float64(common.Clamp(tmax, 0, 1) * 255)))
			}
		}
	}
}

func (mesh *DtNavMesh) unconnectLinks(tile, target *DtMeshTile) {
	targetNum := target.index
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		j := poly.FirstLink
		pj := uint32(DT_NULL_LINK)
		for j != DT_NULL_LINK {
			if DtDecodePolyIdTile(tile.Links[j].Ref) == targetNum {
				// Remove link.
				nj := tile.Links[j].Next
				if pj == DT_NULL_LINK {
					poly.FirstLink = nj
				} else {
					tile.Links[pj].Next = nj
				}
				freeLink(tile, j)
				j = nj
			} else {
				// Advance
				pj = j
				j = tile.Links[j].Next
			}
		}
	}
}

func (mesh *DtNavMesh) findConnectingPolys(va, vb []float32, tile *DtMeshTile, side int32, maxcon int) (con []DtPolyRef, conarea []float32) {
	amin, amax := calcSlabEndPoints(va, vb, side)
	apos := getSlabCoord(va, side)

	// Remove links pointing to 'side' and compact the links array.
	m := uint16(DT_EXT_LINK | side)
	base := mesh.GetPolyRefBase(tile)

	for i := range tile.Polys {
		poly := &tile.Polys[i]
		nv := int(poly.VertCount)
		for j := 0; j < nv; j++ {
			// Skip edges which do not point to the right side.
			if poly.Neis[j] != m {
				continue
			}
			vc := common.GetVert3(tile.Verts, poly.Verts[j])
			vd := common.GetVert3(tile.Verts, poly.Verts[(j+1)%nv])
			bpos := getSlabCoord(vc, side)

			// Segments are not close enough.
			if common.Abs(apos-bpos) > 0.01 {
				continue
			}

			// Check if the segments touch.
			bmin, bmax := calcSlabEndPoints(vc, vd, side)
			if !overlapSlabs(amin, amax, bmin, bmax, 0.01, tile.Header.WalkableClimb) {
				continue
			}

			// Add return value.
			if len(con) < maxcon {
				conarea = append(conarea, max(amin[0], bmin[0]), min(amax[0], bmax[0]))
				con = append(con, base|DtPolyRef(i))
			}
			break
		}
	}
	return con, conarea
}

func overlapSlabs(amin, amax, bmin, bmax []float32, px, py float32) bool {
	// Check for horizontal overlap.
	// The segment is shrunken a little so that slabs which touch
	// at end points are not connected.
	minx := max(amin[0]+px, bmin[0]+px)
	maxx := min(amax[0]-px, bmax[0]-px)
	if minx > maxx {
		return false
	}

	// Check vertical overlap.
	ad := (amax[1] - amin[1]) / (amax[0] - amin[0])
	ak := amin[1] - ad*amin[0]
	bd := (bmax[1] - bmin[1]) / (bmax[0] - bmin[0])
	bk := bmin[1] - bd*bmin[0]
	aminy := ad*minx + ak
	amaxy := ad*maxx + ak
	bminy := bd*minx + bk
	bmaxy := bd*maxx + bk
	dmin := bminy - aminy
	dmax := bmaxy - amaxy

	// Crossing segments always overlap.
	if dmin*dmax < 0 {
		return true
	}

	// Check for overlap at endpoints.
	thr := common.Sqr(py * 2)
	return dmin*dmin <= thr || dmax*dmax <= thr
}

func getSlabCoord(va []float32, side int32) float32 {
	if side == 0 || side == 4 {
		return va[0]
	} else if side == 2 || side == 6 {
		return va[2]
	}
	return 0
}

func calcSlabEndPoints(va, vb []float32, side int32) (bmin, bmax []float32) {
	bmin, bmax = make([]float32, 2), make([]float32, 2)
	if side == 0 || side == 4 {
		if va[2] < vb[2] {
			bmin[0], bmin[1] = va[2], va[1]
			bmax[0], bmax[1] = vb[2], vb[1]
		} else {
			bmin[0], bmin[1] = vb[2], vb[1]
			bmax[0], bmax[1] = va[2], va[1]
		}
	} else if side == 2 || side == 6 {
		if va[0] < vb[0] {
			bmin[0], bmin[1] = va[0], va[1]
			bmax[0], bmax[1] = vb[0], vb[1]
		} else {
			bmin[0], bmin[1] = vb[0], vb[1]
			bmax[0], bmax[1] = va[0], va[1]
		}
	}
	return bmin, bmax
}

// queryPolygonsInTile collects the ground polygons of a tile whose bounds
// overlap the query box, walking the BV tree when the tile has one.
func (mesh *DtNavMesh) queryPolygonsInTile(tile *DtMeshTile, qmin, qmax []float32, fn func(ref DtPolyRef, poly *DtPoly) bool) {
	base := mesh.GetPolyRefBase(tile)
	if len(tile.BvTree) > 0 {
		tbmin := tile.Header.Bmin[:]
		tbmax := tile.Header.Bmax[:]
		qfac := tile.Header.BvQuantFactor

		// Calculate quantized box
		var bmin, bmax [3]uint16
		// dtClamp query box to world box.
		minx := common.Clamp(qmin[0], tbmin[0], tbmax[0]) - tbmin[0]
		miny := common.Clamp(qmin[1], tbmin[1], tbmax[1]) - tbmin[1]
		minz := common.Clamp(qmin[2], tbmin[2], tbmax[2]) - tbmin[2]
		maxx := common.Clamp(qmax[0], tbmin[0], tbmax[0]) - tbmin[0]
		maxy := common.Clamp(qmax[1], tbmin[1], tbmax[1]) - tbmin[1]
		maxz := common.Clamp(qmax[2], tbmin[2], tbmax[2]) - tbmin[2]
		// Quantize
		bmin[0] = uint16(qfac*minx) & 0xfffe
		bmin[1] = uint16(qfac*miny) & 0xfffe
		bmin[2] = uint16(qfac*minz) & 0xfffe
		bmax[0] = uint16(qfac*maxx+1) | 1
		bmax[1] = uint16(qfac*maxy+1) | 1
		bmax[2] = uint16(qfac*maxz+1) | 1

		// Traverse tree
		for i := 0; i < len(tile.BvTree); {
			node := &tile.BvTree[i]
			overlap := dtOverlapQuantBounds(bmin, bmax, node.Bmin, node.Bmax)
			isLeafNode := node.I >= 0

			if isLeafNode && overlap {
				if !fn(base|DtPolyRef(node.I), &tile.Polys[node.I]) {
					return
				}
			}

			if overlap || isLeafNode {
				i++
			} else {
				i += int(-node.I)
			}
		}
		return
	}

	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	for i := range tile.Polys {
		p := &tile.Polys[i]
		// Do not return off-mesh connection polygons.
		if p.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
			continue
		}
		// Calc polygon bounds.
		v := common.GetVert3(tile.Verts, p.Verts[0])
		copy(bmin, v)
		copy(bmax, v)
		for j := 1; j < int(p.VertCount); j++ {
			v = common.GetVert3(tile.Verts, p.Verts[j])
			common.Vmin(bmin, v)
			common.Vmax(bmax, v)
		}
		if common.OverlapBounds(qmin, qmax, bmin, bmax) {
			if !fn(base|DtPolyRef(i), p) {
				return
			}
		}
	}
}

func (mesh *DtNavMesh) findNearestPolyInTile(tile *DtMeshTile, center, halfExtents []float32) (nearest DtPolyRef, nearestPt []float32) {
	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	common.Vsub(bmin, center, halfExtents)
	common.Vadd(bmax, center, halfExtents)

	nearestDistanceSqr := float32(math.MaxFloat32)
	mesh.queryPolygonsInTile(tile, bmin, bmax, func(ref DtPolyRef, _ *DtPoly) bool {
		closestPtPoly, posOverPoly := mesh.ClosestPointOnPoly(ref, center)

		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		diff := make([]float32, 3)
		common.Vsub(diff, center, closestPtPoly)
		var d float32
		if posOverPoly {
			d = common.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = common.VlenSqr(diff)
		}
		if d < nearestDistanceSqr {
			nearestPt = closestPtPoly
			nearestDistanceSqr = d
			nearest = ref
		}
		return true
	})
	return nearest, nearestPt
}

// forEachDetailTri feeds the detail triangles of a polygon to fn. Tiles
// built without a detail mesh fall back to a fan over the polygon with the
// outer edges marked as boundary.
func forEachDetailTri(tile *DtMeshTile, poly *DtPoly, ip uint32, fn func(v [3][]float32, flags uint8) bool) {
	nv := int(poly.VertCount)
	if int(ip) < len(tile.DetailMeshes) {
		pd := &tile.DetailMeshes[ip]
		var v [3][]float32
		for j := 0; j < int(pd.TriCount); j++ {
			t := tile.DetailTris[(int(pd.TriBase)+j)*4:]
			for k := 0; k < 3; k++ {
				if int(t[k]) < nv {
					v[k] = common.GetVert3(tile.Verts, poly.Verts[t[k]])
				} else {
					v[k] = common.GetVert3(tile.DetailVerts, int(pd.VertBase)+int(t[k])-nv)
				}
			}
			if !fn(v, t[3]) {
				return
			}
		}
		return
	}
	for j := 2; j < nv; j++ {
		v := [3][]float32{
			common.GetVert3(tile.Verts, poly.Verts[0]),
			common.GetVert3(tile.Verts, poly.Verts[j-1]),
			common.GetVert3(tile.Verts, poly.Verts[j]),
		}
		flags := uint8(DT_DETAIL_EDGE_BOUNDARY << 2)
		if j == 2 {
			flags |= DT_DETAIL_EDGE_BOUNDARY
		}
		if j == nv-1 {
			flags |= DT_DETAIL_EDGE_BOUNDARY << 4
		}
		if !fn(v, flags) {
			return
		}
	}
}

func (mesh *DtNavMesh) closestPointOnDetailEdges(tile *DtMeshTile, poly *DtPoly, ip uint32, pos []float32, onlyBoundary bool) []float32 {
	const ANY_BOUNDARY_EDGE = (DT_DETAIL_EDGE_BOUNDARY << 0) | (DT_DETAIL_EDGE_BOUNDARY << 2) | (DT_DETAIL_EDGE_BOUNDARY << 4)
	dmin := float32(math.MaxFloat32)
	var tmin float32
	var pmin, pmax []float32

	forEachDetailTri(tile, poly, ip, func(v [3][]float32, flags uint8) bool {
		if onlyBoundary && (flags&ANY_BOUNDARY_EDGE) == 0 {
			return true
		}
		for k, j := 0, 2; k < 3; j, k = k, k+1 {
			if (DtGetDetailTriEdgeFlags(flags, j)&DT_DETAIL_EDGE_BOUNDARY) == 0 && onlyBoundary {
				continue
			}
			t, d := DtDistancePtSegSqr2D(pos, v[j], v[k])
			if d < dmin {
				dmin = d
				tmin = t
				pmin = v[j]
				pmax = v[k]
			}
		}
		return true
	})

	closest := make([]float32, 3)
	if pmin == nil {
		copy(closest, pos)
		return closest
	}
	common.Vlerp(closest, pmin, pmax, tmin)
	return closest
}

// / Gets the height of the polygon at the provided position using the detail
// / mesh. ok is false when the position is not over the polygon.
func (mesh *DtNavMesh) GetPolyHeight(tile *DtMeshTile, poly *DtPoly, ip uint32, pos []float32) (height float32, ok bool) {
	// Off-mesh connections do not have detail polys and getting height
	// over them does not make sense.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		return 0, false
	}

	var verts [DT_VERTS_PER_POLYGON * 3]float32
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		copy(verts[i*3:i*3+3], common.GetVert3(tile.Verts, poly.Verts[i]))
	}
	if !dtPointInPolygon(pos, verts[:], nv) {
		return 0, false
	}

	// Find height at the location.
	found := false
	forEachDetailTri(tile, poly, ip, func(v [3][]float32, _ uint8) bool {
		if h, hit := dtClosestHeightPointTriangle(pos, v[0], v[1], v[2]); hit {
			height = h
			found = true
			return false
		}
		return true
	})
	if found {
		return height, true
	}

	// If all triangle checks failed above (can happen with degenerate triangles
	// or larger floating point values) the point is on an edge, so just select
	// closest. This should almost never happen so the extra iteration here is ok.
	closest := mesh.closestPointOnDetailEdges(tile, poly, ip, pos, false)
	return closest[1], true
}

// / Finds the closest point on the specified polygon.
// / posOverPoly is true when the position is over the polygon.
func (mesh *DtNavMesh) ClosestPointOnPoly(ref DtPolyRef, pos []float32) (closest []float32, posOverPoly bool) {
	tile, poly := mesh.GetTileAndPolyByRefUnsafe(ref)
	ip := DtDecodePolyIdPoly(ref)
	closest = make([]float32, 3)
	copy(closest, pos)
	if h, ok := mesh.GetPolyHeight(tile, poly, ip, pos); ok {
		closest[1] = h
		return closest, true
	}

	// Off-mesh connections don't have detail polygons.
	if poly.GetType() == DT_POLYTYPE_OFFMESH_CONNECTION {
		v0 := common.GetVert3(tile.Verts, poly.Verts[0])
		v1 := common.GetVert3(tile.Verts, poly.Verts[1])
		t, _ := DtDistancePtSegSqr2D(pos, v0, v1)
		common.Vlerp(closest, v0, v1, t)
		return closest, false
	}

	// Outside poly that is not an offmesh connection.
	return mesh.closestPointOnDetailEdges(tile, poly, ip, pos, true), false
}

// / Gets the endpoints for an off-mesh connection, ordered by "direction of travel".
// /  @param[in]		prevRef		The reference of the polygon before the connection.
// /  @param[in]		polyRef		The reference of the off-mesh connection polygon.
func (mesh *DtNavMesh) GetOffMeshConnectionPolyEndPoints(prevRef, polyRef DtPolyRef) (startPos, endPos []float32, status DtStatus) {
	if polyRef == 0 {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	tile, poly, status := mesh.GetTileAndPolyByRef(polyRef)
	if status.Failed() {
		return nil, nil, status
	}

	// Make sure that the current poly is indeed off-mesh link.
	if poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return nil, nil, DT_FAILURE
	}

	// Figure out which way to hand out the vertices.
	idx0, idx1 := 0, 1

	// Find link that points to first vertex.
	for i := poly.FirstLink; i != DT_NULL_LINK; i = tile.Links[i].Next {
		if tile.Links[i].Edge == 0 {
			if tile.Links[i].Ref != prevRef {
				idx0, idx1 = 1, 0
			}
			break
		}
	}

	startPos = make([]float32, 3)
	endPos = make([]float32, 3)
	copy(startPos, common.GetVert3(tile.Verts, poly.Verts[idx0]))
	copy(endPos, common.GetVert3(tile.Verts, poly.Verts[idx1]))
	return startPos, endPos, DT_SUCCESS
}

// / Gets the specified off-mesh connection, or nil if the reference is not an off-mesh polygon.
func (mesh *DtNavMesh) GetOffMeshConnectionByRef(ref DtPolyRef) *DtOffMeshConnection {
	tile, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() || poly.GetType() != DT_POLYTYPE_OFFMESH_CONNECTION {
		return nil
	}
	idx := int(DtDecodePolyIdPoly(ref)) - int(tile.Header.OffMeshBase)
	if idx < 0 || idx >= len(tile.OffMeshCons) {
		return nil
	}
	return &tile.OffMeshCons[idx]
}

// / Sets the user defined flags for the specified polygon.
func (mesh *DtNavMesh) SetPolyFlags(ref DtPolyRef, flags uint16) DtStatus {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return status
	}
	poly.Flags = flags
	return DT_SUCCESS
}

// / Gets the user defined flags for the specified polygon.
func (mesh *DtNavMesh) GetPolyFlags(ref DtPolyRef) (uint16, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.Flags, DT_SUCCESS
}

// / Sets the user defined area for the specified polygon. [Limit: < #DT_MAX_AREAS]
func (mesh *DtNavMesh) SetPolyArea(ref DtPolyRef, area uint8) DtStatus {
	if area >= DT_MAX_AREAS {
		return DT_FAILURE | DT_INVALID_PARAM | DT_INVALID_AREA
	}
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return status
	}
	poly.SetArea(area)
	return DT_SUCCESS
}

// / Gets the user defined area for the specified polygon.
func (mesh *DtNavMesh) GetPolyArea(ref DtPolyRef) (uint8, DtStatus) {
	_, poly, status := mesh.GetTileAndPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.GetArea(), DT_SUCCESS
}
