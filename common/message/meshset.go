// Package message stores tiled navigation meshes as protobuf wire-format
// mesh sets: the mesh parameters followed by one entry per tile blob.
package message

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/gorustyt/navquery/detour"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	MeshSetMagic   = 'M'<<24 | 'S'<<16 | 'E'<<8 | 'T' // 'MSET'
	MeshSetVersion = 1
)

var (
	ErrNotMeshSet      = errors.New("message: not a mesh set")
	ErrMeshSetVersion  = errors.New("message: unsupported mesh set version")
	errTruncatedParams = errors.New("message: truncated mesh params")
)

// Field numbers of the mesh set message.
const (
	fieldParams  protowire.Number = 1
	fieldTile    protowire.Number = 2
	fieldMagic   protowire.Number = 3
	fieldVersion protowire.Number = 4
)

// Field numbers of the params message.
const (
	fieldOrigX protowire.Number = iota + 1
	fieldOrigY
	fieldOrigZ
	fieldTileWidth
	fieldTileHeight
	fieldMaxTiles
	fieldMaxPolys
)

// Field numbers of the tile message.
const (
	fieldTileRef  protowire.Number = 1
	fieldTileData protowire.Number = 2
)

// MeshSet is a serialized navigation mesh.
type MeshSet struct {
	Params detour.NavMeshParams
	Tiles  []TileEntry
}

// TileEntry is one tile blob and the reference it had when it was saved.
type TileEntry struct {
	Ref  detour.DtTileRef
	Data []byte
}

// FromNavMesh captures every loaded tile of mesh.
func FromNavMesh(mesh *detour.DtNavMesh) *MeshSet {
	set := &MeshSet{Params: mesh.GetParams()}
	for i := 0; i < int(mesh.GetMaxTiles()); i++ {
		tile := mesh.GetTile(i)
		if tile == nil || tile.Header == nil || tile.Data == nil {
			continue
		}
		set.Tiles = append(set.Tiles, TileEntry{Ref: mesh.GetTileRef(tile), Data: tile.Data.ToBin()})
	}
	return set
}

// Marshal encodes the set.
func (s *MeshSet) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMagic, protowire.VarintType)
	b = protowire.AppendVarint(b, MeshSetMagic)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, MeshSetVersion)

	b = protowire.AppendTag(b, fieldParams, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalParams(&s.Params))

	for _, t := range s.Tiles {
		var tb []byte
		tb = protowire.AppendTag(tb, fieldTileRef, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(t.Ref))
		tb = protowire.AppendTag(tb, fieldTileData, protowire.BytesType)
		tb = protowire.AppendBytes(tb, t.Data)

		b = protowire.AppendTag(b, fieldTile, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	return b
}

func marshalParams(p *detour.NavMeshParams) []byte {
	var b []byte
	appendFloat := func(num protowire.Number, v float32) {
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	appendFloat(fieldOrigX, p.Orig[0])
	appendFloat(fieldOrigY, p.Orig[1])
	appendFloat(fieldOrigZ, p.Orig[2])
	appendFloat(fieldTileWidth, p.TileWidth)
	appendFloat(fieldTileHeight, p.TileHeight)
	b = protowire.AppendTag(b, fieldMaxTiles, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.MaxTiles))
	b = protowire.AppendTag(b, fieldMaxPolys, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.MaxPolys))
	return b
}

// Unmarshal decodes a set. Unknown fields are skipped.
func Unmarshal(b []byte) (*MeshSet, error) {
	set := &MeshSet{}
	var magic, version uint64
	var haveParams bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("message: mesh set tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMagic && typ == protowire.VarintType:
			magic, n = protowire.ConsumeVarint(b)
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == fieldParams && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				if err := unmarshalParams(v, &set.Params); err != nil {
					return nil, err
				}
				haveParams = true
			}
		case num == fieldTile && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				t, err := unmarshalTile(v)
				if err != nil {
					return nil, fmt.Errorf("message: tile %d: %w", len(set.Tiles), err)
				}
				set.Tiles = append(set.Tiles, t)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("message: mesh set field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	if magic != MeshSetMagic {
		return nil, ErrNotMeshSet
	}
	if version != MeshSetVersion {
		return nil, fmt.Errorf("%w: %d", ErrMeshSetVersion, version)
	}
	if !haveParams {
		return nil, errTruncatedParams
	}
	return set, nil
}

func unmarshalParams(b []byte, p *detour.NavMeshParams) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("message: params tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num >= fieldOrigX && num <= fieldTileHeight && typ == protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f := math.Float32frombits(v)
			switch num {
			case fieldOrigX:
				p.Orig[0] = f
			case fieldOrigY:
				p.Orig[1] = f
			case fieldOrigZ:
				p.Orig[2] = f
			case fieldTileWidth:
				p.TileWidth = f
			case fieldTileHeight:
				p.TileHeight = f
			}
		case (num == fieldMaxTiles || num == fieldMaxPolys) && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if num == fieldMaxTiles {
				p.MaxTiles = int32(v)
			} else {
				p.MaxPolys = int32(v)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("message: params field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func unmarshalTile(b []byte) (TileEntry, error) {
	var t TileEntry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return t, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldTileRef && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			t.Ref = detour.DtTileRef(v)
		case num == fieldTileData && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			t.Data = append([]byte(nil), v...)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return t, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return t, nil
}

// Build creates a navigation mesh from the set, restoring every tile under
// its saved reference so stored polygon references stay valid.
func (s *MeshSet) Build(opts ...detour.NavMeshOption) (*detour.DtNavMesh, error) {
	params := s.Params
	mesh, status := detour.NewDtNavMesh(&params, opts...)
	if status.Failed() {
		return nil, fmt.Errorf("message: init mesh: %w", status.Err())
	}
	for i, t := range s.Tiles {
		if t.Ref == 0 || len(t.Data) == 0 {
			continue
		}
		data := &detour.NavMeshData{}
		if err := data.FromBin(t.Data); err != nil {
			return nil, fmt.Errorf("message: tile %d: %w", i, err)
		}
		if _, status := mesh.AddTile(data, t.Ref); status.Failed() {
			return nil, fmt.Errorf("message: add tile %d: %w", i, status.Err())
		}
	}
	return mesh, nil
}

// Load decodes b and builds the mesh it describes.
func Load(b []byte, log *zap.Logger) (*detour.DtNavMesh, error) {
	if log == nil {
		log = zap.NewNop()
	}
	set, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}
	mesh, err := set.Build(detour.WithMeshLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info("mesh set loaded",
		zap.Int("tiles", len(set.Tiles)),
		zap.Int32("maxTiles", set.Params.MaxTiles),
		zap.Int32("maxPolys", set.Params.MaxPolys))
	return mesh, nil
}

func LoadFile(path string, log *zap.Logger) (*detour.DtNavMesh, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("message: read mesh set: %w", err)
	}
	return Load(b, log)
}

func SaveFile(path string, mesh *detour.DtNavMesh) error {
	if err := os.WriteFile(path, FromNavMesh(mesh).Marshal(), 0o644); err != nil {
		return fmt.Errorf("message: write mesh set: %w", err)
	}
	return nil
}
