package detour

const (
	/// The maximum number of vertices per navigation polygon.
	/// @ingroup detour
	DT_VERTS_PER_POLYGON = 6
	DT_NULL_LINK         = 0xffffffff

	/// A flag that indicates that an entity links to an external entity.
	/// (E.g. A polygon edge is a portal that links to another polygon.)
	DT_EXT_LINK = 0x8000

	/// A flag that indicates that an off-mesh connection can be traversed in both directions. (Is bidirectional.)
	DT_OFFMESH_CON_BIDIR = 1

	/// A magic number used to detect compatibility of navigation tile data.
	DT_NAVMESH_MAGIC = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'

	/// A version number used to detect compatibility of navigation tile data.
	DT_NAVMESH_VERSION = 7

	/// The maximum number of user defined area ids.
	/// @ingroup detour
	DT_MAX_AREAS = 64
)

const (
	/// The polygon is a standard convex polygon that is part of the surface of the mesh.
	DT_POLYTYPE_GROUND = 0
	/// The polygon is an off-mesh connection consisting of two vertices.
	DT_POLYTYPE_OFFMESH_CONNECTION = 1
)

// Detail triangle edge is part of the poly boundary
const DT_DETAIL_EDGE_BOUNDARY = 0x01

// Polygon references are 64 bit: salt in the high bits, then the tile
// index, then the polygon index.
//
//	| salt (16) | tile (28) | poly (20) |
const (
	DT_SALT_BITS = 16
	DT_TILE_BITS = 28
	DT_POLY_BITS = 20

	dtSaltMask = 1<<DT_SALT_BITS - 1
	dtTileMask = 1<<DT_TILE_BITS - 1
	dtPolyMask = 1<<DT_POLY_BITS - 1
)

// DtPolyRef is a salted reference to a polygon. Zero means none.
type DtPolyRef uint64

// DtTileRef is a salted reference to a tile. It shares the layout of
// DtPolyRef with a zero polygon index.
type DtTileRef uint64

// / Derives a standard polygon reference.
// /  @param[in]	salt	The tile's salt value.
// /  @param[in]	it		The index of the tile.
// /  @param[in]	ip		The index of the polygon within the tile.
func DtEncodePolyId(salt, it, ip uint32) DtPolyRef {
	return DtPolyRef(uint64(salt&dtSaltMask)<<(DT_POLY_BITS+DT_TILE_BITS) |
		uint64(it&dtTileMask)<<DT_POLY_BITS |
		uint64(ip&dtPolyMask))
}

// / Decodes a standard polygon reference.
func DtDecodePolyId(ref DtPolyRef) (salt, it, ip uint32) {
	salt = DtDecodePolyIdSalt(ref)
	it = DtDecodePolyIdTile(ref)
	ip = DtDecodePolyIdPoly(ref)
	return
}

// / Extracts a tile's salt value from the specified polygon reference.
func DtDecodePolyIdSalt(ref DtPolyRef) uint32 {
	return uint32(uint64(ref)>>(DT_POLY_BITS+DT_TILE_BITS)) & dtSaltMask
}

// / Extracts the tile's index from the specified polygon reference.
func DtDecodePolyIdTile(ref DtPolyRef) uint32 {
	return uint32(uint64(ref)>>DT_POLY_BITS) & dtTileMask
}

// / Extracts the polygon's index (within its tile) from the specified polygon reference.
func DtDecodePolyIdPoly(ref DtPolyRef) uint32 {
	return uint32(ref) & dtPolyMask
}

// / Defines a polygon within a DtMeshTile object.
// / @ingroup detour
type DtPoly struct {
	/// Index to first link in linked list. (Or #DT_NULL_LINK if there is no link.)
	FirstLink uint32

	/// The indices of the polygon's vertices.
	/// The actual vertices are located in DtMeshTile::verts.
	Verts [DT_VERTS_PER_POLYGON]uint16

	/// Packed data representing neighbor polygons references and flags for each edge.
	Neis [DT_VERTS_PER_POLYGON]uint16

	/// The user defined polygon flags.
	Flags uint16

	/// The number of vertices in the polygon.
	VertCount uint8

	/// The bit packed area id and polygon type.
	AreaAndtype uint8
}

// / Sets the user defined area id. [Limit: < #DT_MAX_AREAS]
func (p *DtPoly) SetArea(a uint8) { p.AreaAndtype = (p.AreaAndtype & 0xc0) | (a & 0x3f) }

// / Sets the polygon type. (See: #dtPolyTypes.)
func (p *DtPoly) SetType(t uint8) { p.AreaAndtype = (p.AreaAndtype & 0x3f) | (t << 6) }

// / Gets the user defined area id.
func (p *DtPoly) GetArea() uint8 { return p.AreaAndtype & 0x3f }

// / Gets the polygon type. (See: #dtPolyTypes)
func (p *DtPoly) GetType() uint8 { return p.AreaAndtype >> 6 }

// / Defines the location of detail sub-mesh data within a DtMeshTile.
type DtPolyDetail struct {
	VertBase  uint32 ///< The offset of the vertices in the DtMeshTile::detailVerts array.
	TriBase   uint32 ///< The offset of the triangles in the DtMeshTile::detailTris array.
	VertCount uint8  ///< The number of vertices in the sub-mesh.
	TriCount  uint8  ///< The number of triangles in the sub-mesh.
}

// Defines a link between polygons.
// / @see DtMeshTile
type DtLink struct {
	Ref  DtPolyRef ///< Neighbour reference. (The neighbor that is linked to.)
	Next uint32    ///< Index of the next link.
	Edge uint8     ///< Index of the polygon edge that owns this link.
	Side uint8     ///< If a boundary link, defines on which side the link is.
	Bmin uint8     ///< If a boundary link, defines the minimum sub-edge area.
	Bmax uint8     ///< If a boundary link, defines the maximum sub-edge area.
}

// / Bounding volume node.
// / @see DtMeshTile
type DtBVNode struct {
	Bmin [3]uint16 ///< Minimum bounds of the node's AABB. [(x, y, z)]
	Bmax [3]uint16 ///< Maximum bounds of the node's AABB. [(x, y, z)]
	I    int32     ///< The node's index. (Negative for escape sequence.)
}

// / Defines an navigation mesh off-mesh connection within a DtMeshTile object.
// / An off-mesh connection is a user defined traversable connection made up to two vertices.
type DtOffMeshConnection struct {
	/// The endpoints of the connection. [(ax, ay, az, bx, by, bz)]
	Pos [6]float32

	/// The radius of the endpoints. [Limit: >= 0]
	Rad float32

	/// The polygon reference of the connection within the tile.
	Poly uint16

	/// Link flags.
	/// @note These are not the connection's user defined flags. Those are assigned via the
	/// connection's DtPoly definition. These are link flags used for internal purposes.
	Flags uint8

	/// End point side.
	Side uint8

	/// The id of the offmesh connection. (User assigned when the navigation mesh is built.)
	UserId uint32
}

// / Provides high level information related to a DtMeshTile object.
// / @ingroup detour
type DtMeshHeader struct {
	Magic           int32  ///< Tile magic number. (Used to identify the data format.)
	Version         int32  ///< Tile data format version number.
	X               int32  ///< The x-position of the tile within the DtNavMesh tile grid. (x, y, layer)
	Y               int32  ///< The y-position of the tile within the DtNavMesh tile grid. (x, y, layer)
	Layer           int32  ///< The layer of the tile within the DtNavMesh tile grid. (x, y, layer)
	UserId          uint32 ///< The user defined id of the tile.
	PolyCount       int32  ///< The number of polygons in the tile.
	VertCount       int32  ///< The number of vertices in the tile.
	MaxLinkCount    int32  ///< The number of allocated links.
	DetailMeshCount int32  ///< The number of sub-meshes in the detail mesh.

	/// The number of unique vertices in the detail mesh. (In addition to the polygon vertices.)
	DetailVertCount int32

	DetailTriCount  int32      ///< The number of triangles in the detail mesh.
	BvNodeCount     int32      ///< The number of bounding volume nodes. (Zero if bounding volumes are disabled.)
	OffMeshConCount int32      ///< The number of off-mesh connections.
	OffMeshBase     int32      ///< The index of the first polygon which is an off-mesh connection.
	WalkableHeight  float32    ///< The height of the agents using the tile.
	WalkableRadius  float32    ///< The radius of the agents using the tile.
	WalkableClimb   float32    ///< The maximum climb height of the agents using the tile.
	Bmin            [3]float32 ///< The minimum bounds of the tile's AABB. [(x, y, z)]
	Bmax            [3]float32 ///< The maximum bounds of the tile's AABB. [(x, y, z)]

	/// The bounding volume quantization factor.
	BvQuantFactor float32
}

// / Defines a navigation mesh tile.
// / @ingroup detour
type DtMeshTile struct {
	salt uint32 ///< Counter describing modifications to the tile.

	linksFreeList uint32        ///< Index to the next free link.
	Header        *DtMeshHeader ///< The tile header.
	Polys         []DtPoly      ///< The tile polygons. [Size: DtMeshHeader::polyCount]
	Verts         []float32     ///< The tile vertices. [(x, y, z) * DtMeshHeader::vertCount]
	Links         []DtLink      ///< The tile links. [Size: DtMeshHeader::maxLinkCount]
	DetailMeshes  []DtPolyDetail

	/// The detail mesh's unique vertices. [(x, y, z) * DtMeshHeader::detailVertCount]
	DetailVerts []float32

	/// The detail mesh's triangles. [(vertA, vertB, vertC, triFlags) * DtMeshHeader::detailTriCount].
	DetailTris []uint8

	/// The tile bounding volume nodes. (Empty if bounding volumes are disabled.)
	BvTree []DtBVNode

	OffMeshCons []DtOffMeshConnection
	Next        *DtMeshTile ///< The next free tile, or the next tile in the spatial grid.
	Data        *NavMeshData

	index uint32
}

// Salt returns the tile's current generation counter.
func (t *DtMeshTile) Salt() uint32 { return t.salt }

// / Get flags for edge in detail triangle.
// / @param[in]	triFlags		The flags for the triangle (last component of detail vertices above).
// / @param[in]	edgeIndex		The index of the first vertex of the edge. For instance, if 0,
// /								returns flags for edge AB.
func DtGetDetailTriEdgeFlags(triFlags uint8, edgeIndex int) int {
	return int(triFlags>>(edgeIndex*2)) & 0x3
}

// / Configuration parameters used to define multi-tile navigation meshes.
// / @ingroup detour
type NavMeshParams struct {
	Orig       [3]float32 ///< The world space origin of the navigation mesh's tile space. [(x, y, z)]
	TileWidth  float32    ///< The width of each tile. (Along the x-axis.)
	TileHeight float32    ///< The height of each tile. (Along the z-axis.)
	MaxTiles   int32      ///< The maximum number of tiles the navigation mesh can contain.
	MaxPolys   int32      ///< The maximum number of polygons each tile can contain.
}
