package detour

import (
	"fmt"

	"github.com/gorustyt/navquery/common/rw"
)

// NavMeshData is the decoded form of a tile blob produced by the mesh
// builder. Links are not serialized; only MaxLinkCount slots are reserved
// and they are rebuilt when the tile is added to a DtNavMesh.
type NavMeshData struct {
	Header      *DtMeshHeader
	NavVerts    []float32
	NavPolys    []DtPoly
	NavDMeshes  []DtPolyDetail
	NavDVerts   []float32
	NavDTris    []uint8
	NavBvtree   []DtBVNode
	OffMeshCons []DtOffMeshConnection
}

func (d *DtMeshHeader) ToBin(w *rw.ReaderWriter) {
	rw.WriteUInt32(w, d.Magic)
	rw.WriteUInt32(w, d.Version)
	rw.WriteUInt32(w, d.X)
	rw.WriteUInt32(w, d.Y)
	rw.WriteUInt32(w, d.Layer)
	rw.WriteUInt32(w, d.UserId)
	rw.WriteUInt32(w, d.PolyCount)
	rw.WriteUInt32(w, d.VertCount)
	rw.WriteUInt32(w, d.MaxLinkCount)
	rw.WriteUInt32(w, d.DetailMeshCount)
	rw.WriteUInt32(w, d.DetailVertCount)
	rw.WriteUInt32(w, d.DetailTriCount)
	rw.WriteUInt32(w, d.BvNodeCount)
	rw.WriteUInt32(w, d.OffMeshConCount)
	rw.WriteUInt32(w, d.OffMeshBase)
	w.WriteFloat32(d.WalkableHeight)
	w.WriteFloat32(d.WalkableRadius)
	w.WriteFloat32(d.WalkableClimb)
	w.WriteFloat32s(d.Bmin[:])
	w.WriteFloat32s(d.Bmax[:])
	w.WriteFloat32(d.BvQuantFactor)
}

func (d *DtMeshHeader) FromBin(r *rw.ReaderWriter) *DtMeshHeader {
	d.Magic = r.ReadInt32()
	d.Version = r.ReadInt32()
	d.X = r.ReadInt32()
	d.Y = r.ReadInt32()
	d.Layer = r.ReadInt32()
	d.UserId = r.ReadUInt32()
	d.PolyCount = r.ReadInt32()
	d.VertCount = r.ReadInt32()
	d.MaxLinkCount = r.ReadInt32()
	d.DetailMeshCount = r.ReadInt32()
	d.DetailVertCount = r.ReadInt32()
	d.DetailTriCount = r.ReadInt32()
	d.BvNodeCount = r.ReadInt32()
	d.OffMeshConCount = r.ReadInt32()
	d.OffMeshBase = r.ReadInt32()
	d.WalkableHeight = r.ReadFloat32()
	d.WalkableRadius = r.ReadFloat32()
	d.WalkableClimb = r.ReadFloat32()
	r.ReadFloat32s(d.Bmin[:])
	r.ReadFloat32s(d.Bmax[:])
	d.BvQuantFactor = r.ReadFloat32()
	return d
}

func (d *DtPoly) ToBin(w *rw.ReaderWriter) {
	rw.WriteUInt32(w, d.FirstLink)
	w.WriteUInt16s(d.Verts[:])
	w.WriteUInt16s(d.Neis[:])
	rw.WriteUInt16(w, d.Flags)
	rw.WriteUInt8(w, d.VertCount)
	rw.WriteUInt8(w, d.AreaAndtype)
}

func (d *DtPoly) FromBin(r *rw.ReaderWriter) {
	d.FirstLink = r.ReadUInt32()
	r.ReadUInt16s(d.Verts[:])
	r.ReadUInt16s(d.Neis[:])
	d.Flags = r.ReadUInt16()
	d.VertCount = r.ReadUInt8()
	d.AreaAndtype = r.ReadUInt8()
}

// dtLinkSize is the serialized size of a DtLink.
const dtLinkSize = 16

func (d *DtPolyDetail) ToBin(w *rw.ReaderWriter) {
	rw.WriteUInt32(w, d.VertBase)
	rw.WriteUInt32(w, d.TriBase)
	rw.WriteUInt8(w, d.VertCount)
	rw.WriteUInt8(w, d.TriCount)
}

func (d *DtPolyDetail) FromBin(r *rw.ReaderWriter) {
	d.VertBase = r.ReadUInt32()
	d.TriBase = r.ReadUInt32()
	d.VertCount = r.ReadUInt8()
	d.TriCount = r.ReadUInt8()
}

func (d *DtBVNode) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt16s(d.Bmin[:])
	w.WriteUInt16s(d.Bmax[:])
	rw.WriteUInt32(w, d.I)
}

func (d *DtBVNode) FromBin(r *rw.ReaderWriter) {
	r.ReadUInt16s(d.Bmin[:])
	r.ReadUInt16s(d.Bmax[:])
	d.I = r.ReadInt32()
}

func (d *DtOffMeshConnection) ToBin(w *rw.ReaderWriter) {
	w.WriteFloat32s(d.Pos[:])
	w.WriteFloat32(d.Rad)
	rw.WriteUInt16(w, d.Poly)
	rw.WriteUInt8(w, d.Flags)
	rw.WriteUInt8(w, d.Side)
	rw.WriteUInt32(w, d.UserId)
}

func (d *DtOffMeshConnection) FromBin(r *rw.ReaderWriter) {
	r.ReadFloat32s(d.Pos[:])
	d.Rad = r.ReadFloat32()
	d.Poly = r.ReadUInt16()
	d.Flags = r.ReadUInt8()
	d.Side = r.ReadUInt8()
	d.UserId = r.ReadUInt32()
}

// ToBin serializes the tile. Every section starts on a 4 byte boundary.
func (d *NavMeshData) ToBin() []byte {
	w := rw.NewWriter()
	d.Header.ToBin(w)
	w.PadAlign4()
	w.WriteFloat32s(d.NavVerts)
	w.PadAlign4()
	for i := range d.NavPolys {
		d.NavPolys[i].ToBin(w)
	}
	w.PadAlign4()
	for i := 0; i < int(d.Header.MaxLinkCount)*dtLinkSize; i++ {
		rw.WriteUInt8(w, uint8(0))
	}
	w.PadAlign4()
	for i := range d.NavDMeshes {
		d.NavDMeshes[i].ToBin(w)
	}
	w.PadAlign4()
	w.WriteFloat32s(d.NavDVerts)
	w.PadAlign4()
	w.WriteUInt8s(d.NavDTris)
	w.PadAlign4()
	for i := range d.NavBvtree {
		d.NavBvtree[i].ToBin(w)
	}
	w.PadAlign4()
	for i := range d.OffMeshCons {
		d.OffMeshCons[i].ToBin(w)
	}
	w.PadAlign4()
	return w.GetWriteBytes()
}

// FromBin decodes a tile blob. Magic and version are checked here so a
// foreign blob fails before any section is allocated.
func (d *NavMeshData) FromBin(data []byte) error {
	r := rw.NewReader(data)
	d.Header = (&DtMeshHeader{}).FromBin(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("detour: tile header: %w", err)
	}
	if d.Header.Magic != DT_NAVMESH_MAGIC {
		return ErrWrongMagic
	}
	if d.Header.Version != DT_NAVMESH_VERSION {
		return ErrWrongVersion
	}
	if err := d.Header.validateCounts(len(data)); err != nil {
		return err
	}
	r.SkipAlign4()
	d.NavVerts = make([]float32, d.Header.VertCount*3)
	r.ReadFloat32s(d.NavVerts)
	r.SkipAlign4()
	d.NavPolys = make([]DtPoly, d.Header.PolyCount)
	for i := range d.NavPolys {
		d.NavPolys[i].FromBin(r)
	}
	r.SkipAlign4()
	r.Skip(int(d.Header.MaxLinkCount) * dtLinkSize)
	r.SkipAlign4()
	d.NavDMeshes = make([]DtPolyDetail, d.Header.DetailMeshCount)
	for i := range d.NavDMeshes {
		d.NavDMeshes[i].FromBin(r)
	}
	r.SkipAlign4()
	d.NavDVerts = make([]float32, 3*d.Header.DetailVertCount)
	r.ReadFloat32s(d.NavDVerts)
	r.SkipAlign4()
	d.NavDTris = make([]uint8, 4*d.Header.DetailTriCount)
	r.ReadUInt8s(d.NavDTris)
	r.SkipAlign4()
	d.NavBvtree = make([]DtBVNode, d.Header.BvNodeCount)
	for i := range d.NavBvtree {
		d.NavBvtree[i].FromBin(r)
	}
	r.SkipAlign4()
	d.OffMeshCons = make([]DtOffMeshConnection, d.Header.OffMeshConCount)
	for i := range d.OffMeshCons {
		d.OffMeshCons[i].FromBin(r)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("detour: tile body: %w", err)
	}
	return nil
}

// validateCounts rejects negative counts and counts that could not fit in
// a blob of the given size, before anything is allocated from them.
func (d *DtMeshHeader) validateCounts(size int) error {
	counts := []struct {
		n    int32
		unit int
	}{
		{d.VertCount, 12},
		{d.PolyCount, 32},
		{d.MaxLinkCount, dtLinkSize},
		{d.DetailMeshCount, 10},
		{d.DetailVertCount, 12},
		{d.DetailTriCount, 4},
		{d.BvNodeCount, 16},
		{d.OffMeshConCount, 36},
	}
	total := 0
	for _, c := range counts {
		if c.n < 0 {
			return fmt.Errorf("%w: negative section count %d", ErrInvalidParam, c.n)
		}
		total += int(c.n) * c.unit
	}
	if total > size {
		return fmt.Errorf("%w: sections need %d bytes, blob has %d", ErrInvalidParam, total, size)
	}
	if d.OffMeshBase < 0 || d.OffMeshBase > d.PolyCount {
		return fmt.Errorf("%w: off-mesh base %d out of range", ErrInvalidParam, d.OffMeshBase)
	}
	return nil
}
