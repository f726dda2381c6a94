package main

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gorustyt/navquery/config"
	"github.com/gorustyt/navquery/detour"
)

// newTestRunner serves a single 10x10 quad.
func newTestRunner(t *testing.T) *runner {
	t.Helper()
	var poly detour.DtPoly
	poly.VertCount = 4
	poly.Verts = [detour.DT_VERTS_PER_POLYGON]uint16{0, 1, 2, 3}
	poly.Flags = 1
	poly.SetType(detour.DT_POLYTYPE_GROUND)
	data := &detour.NavMeshData{
		Header: &detour.DtMeshHeader{
			Magic:        detour.DT_NAVMESH_MAGIC,
			Version:      detour.DT_NAVMESH_VERSION,
			PolyCount:    1,
			VertCount:    4,
			MaxLinkCount: 8,
			Bmin:         [3]float32{0, -1, 0},
			Bmax:         [3]float32{10, 1, 10},
		},
		NavVerts: []float32{0, 0, 0, 0, 0, 10, 10, 0, 10, 10, 0, 0},
		NavPolys: []detour.DtPoly{poly},
	}
	mesh, _, status := detour.NewDtNavMeshSingle(data)
	require.True(t, status.Succeed(), status.String())

	r, err := newRunner(mesh, config.Default(), zap.NewNop(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return r
}

func runLines(t *testing.T, r *runner, args ...string) []string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.run(&buf, args))
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("1, 2.5,-3")
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 2.5, -3}, [3]float32(v))

	_, err = parseVec3("1,2")
	assert.ErrorIs(t, err, errUsage)
	_, err = parseVec3("1,x,3")
	assert.Error(t, err)
}

func TestRunnerCommands(t *testing.T) {
	r := newTestRunner(t)

	lines := runLines(t, r, "nearest", "5,0.5,5")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "at (5.000, 0.000, 5.000) over=true")

	lines = runLines(t, r, "path", "1,0,1", "9,0,9")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "(1.000, 0.000, 1.000)"))
	assert.True(t, strings.HasPrefix(lines[2], "(9.000, 0.000, 9.000)"))

	lines = runLines(t, r, "move", "1,0,1", "20,0,1")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "end (10.000, 0.000, 1.000)"), lines[0])

	assert.Len(t, runLines(t, r, "circle", "5,0,5", "3"), 1)
	assert.Len(t, runLines(t, r, "walls", "5,0,5"), 4)
	assert.Len(t, runLines(t, r, "random", "3"), 3)

	lines = runLines(t, r, "raycast", "1,0,1", "20,0,1")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "hit t=0.4737 normal (-1.000, 0.000, 0.000) edge 2"), lines[0])

	lines = runLines(t, r, "raycast", "1,0,1", "9,0,9")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "clear cost 11.314"), lines[0])

	lines = runLines(t, r, "wall", "5,0,5", "10")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "distance 5.000"), lines[0])
}

func TestRunnerErrors(t *testing.T) {
	r := newTestRunner(t)
	var buf bytes.Buffer
	assert.ErrorIs(t, r.run(&buf, nil), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"fly"}), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"path", "1,0,1"}), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"random", "0"}), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"raycast", "1,0,1"}), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"wall", "1,0,1"}), errUsage)
	assert.ErrorIs(t, r.run(&buf, []string{"nearest", "50,0,50"}), detour.ErrNotFound)
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	mesh, status := detour.NewDtNavMesh(&detour.NavMeshParams{TileWidth: 10, TileHeight: 10, MaxTiles: 1, MaxPolys: 1})
	require.True(t, status.Succeed())
	cfg := config.Default()
	cfg.Query.Crossings = "some"
	_, err := newRunner(mesh, cfg, zap.NewNop(), rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}
