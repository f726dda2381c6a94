package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gorustyt/navquery/common"
	"github.com/gorustyt/navquery/config"
	"github.com/gorustyt/navquery/detour"
)

var errUsage = errors.New("bad arguments")

type runner struct {
	query   *detour.DtNavMeshQuery
	filter  *detour.DtQueryFilter
	cfg     config.QueryConfig
	options int
	log     *zap.Logger
}

func newRunner(mesh *detour.DtNavMesh, cfg *config.Config, log *zap.Logger, rnd *rand.Rand) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filter, err := cfg.Filter.Build()
	if err != nil {
		return nil, err
	}
	options, err := cfg.Query.StraightPathOptions()
	if err != nil {
		return nil, err
	}
	query, status := detour.NewDtNavMeshQuery(mesh, cfg.Query.MaxNodes,
		detour.WithLogger(log), detour.WithRandSource(rnd))
	if status.Failed() {
		return nil, status.Err()
	}
	return &runner{query: query, filter: filter, cfg: cfg.Query, options: options, log: log}, nil
}

func (r *runner) run(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "nearest":
		return r.nearest(w, args)
	case "path":
		return r.path(w, args)
	case "move":
		return r.move(w, args)
	case "circle":
		return r.circle(w, args)
	case "walls":
		return r.walls(w, args)
	case "raycast":
		return r.raycast(w, args)
	case "wall":
		return r.wall(w, args)
	case "random":
		return r.random(w, args)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (r *runner) halfExtents() common.Vec3 {
	return common.Vec3(r.cfg.HalfExtents)
}

func (r *runner) findNearest(pos common.Vec3) (detour.DtPolyRef, common.Vec3, error) {
	ref, pt, _, status := r.query.FindNearestPoly(pos, r.halfExtents(), r.filter)
	if status.Failed() {
		return 0, pt, fmt.Errorf("nearest poly to %v: %w", pos, status.Err())
	}
	return ref, pt, nil
}

func (r *runner) nearest(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	pos, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	ref, pt, over, status := r.query.FindNearestPoly(pos, r.halfExtents(), r.filter)
	if status.Failed() {
		return status.Err()
	}
	fmt.Fprintf(w, "poly %d at %s over=%t\n", ref, formatVec3(pt), over)
	return nil
}

func (r *runner) path(w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	start, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	end, err := parseVec3(args[1])
	if err != nil {
		return err
	}
	res, status := r.query.FindFullPath(start, end, r.halfExtents(), r.filter,
		r.cfg.MaxPath, r.cfg.MaxStraightPath, r.options)
	if status.Failed() {
		return status.Err()
	}
	if warn := status.Warnings(); warn != nil {
		r.log.Warn("path is incomplete", zap.Error(warn))
	}
	fmt.Fprintf(w, "corridor %v\n", res.Corridor)
	for _, p := range res.Points {
		fmt.Fprintf(w, "%s flags=%d ref=%d\n", formatVec3(p.Pos), p.Flags, p.Ref)
	}
	return nil
}

func (r *runner) move(w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	start, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	end, err := parseVec3(args[1])
	if err != nil {
		return err
	}
	ref, startPt, err := r.findNearest(start)
	if err != nil {
		return err
	}
	pos, visited, status := r.query.MoveAlongSurface(ref, startPt, end, r.filter, r.cfg.MaxPath)
	if status.Failed() {
		return status.Err()
	}
	if len(visited) > 0 {
		if h, hs := r.query.GetPolyHeight(visited[len(visited)-1], pos); hs.Succeed() {
			pos[1] = h
		}
	}
	fmt.Fprintf(w, "end %s visited %v\n", formatVec3(pos), visited)
	return nil
}

func (r *runner) circle(w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	center, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	radius, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return fmt.Errorf("radius %q: %w", args[1], err)
	}
	ref, pt, err := r.findNearest(center)
	if err != nil {
		return err
	}
	refs, parents, costs, status := r.query.FindPolysAroundCircle(ref, pt, float32(radius), r.filter, r.cfg.MaxPath)
	if status.Failed() {
		return status.Err()
	}
	for i := range refs {
		fmt.Fprintf(w, "poly %d parent %d cost %.3f\n", refs[i], parents[i], costs[i])
	}
	return nil
}

func (r *runner) walls(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	pos, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	ref, _, err := r.findNearest(pos)
	if err != nil {
		return err
	}
	segs, status := r.query.GetPolyWallSegments(ref, r.filter, detour.DT_VERTS_PER_POLYGON, true)
	if status.Failed() {
		return status.Err()
	}
	for _, s := range segs {
		kind := "wall"
		if s.Ref != 0 {
			kind = fmt.Sprintf("portal to %d", s.Ref)
		}
		fmt.Fprintf(w, "%s %s %s\n", formatVec3(s.Start), formatVec3(s.End), kind)
	}
	return nil
}

func (r *runner) raycast(w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	start, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	end, err := parseVec3(args[1])
	if err != nil {
		return err
	}
	ref, startPt, err := r.findNearest(start)
	if err != nil {
		return err
	}
	hit, status := r.query.Raycast(ref, startPt, end, r.filter, detour.DT_RAYCAST_USE_COSTS, r.cfg.MaxPath)
	if status.Failed() {
		return status.Err()
	}
	if hit.Reached() {
		fmt.Fprintf(w, "clear cost %.3f visited %v\n", hit.PathCost, hit.Path)
		return nil
	}
	fmt.Fprintf(w, "hit t=%.4f normal %s edge %d visited %v\n", hit.T, formatVec3(hit.HitNormal), hit.HitEdgeIndex, hit.Path)
	return nil
}

func (r *runner) wall(w io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	center, err := parseVec3(args[0])
	if err != nil {
		return err
	}
	radius, err := strconv.ParseFloat(args[1], 32)
	if err != nil {
		return fmt.Errorf("radius %q: %w", args[1], err)
	}
	ref, pt, err := r.findNearest(center)
	if err != nil {
		return err
	}
	dist, pos, normal, status := r.query.FindDistanceToWall(ref, pt, float32(radius), r.filter)
	if status.Failed() {
		return status.Err()
	}
	fmt.Fprintf(w, "distance %.3f at %s normal %s\n", dist, formatVec3(pos), formatVec3(normal))
	return nil
}

func (r *runner) random(w io.Writer, args []string) error {
	count := 1
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: count %q", errUsage, args[0])
		}
		count = n
	default:
		return errUsage
	}
	for i := 0; i < count; i++ {
		ref, pt, status := r.query.FindRandomPoint(r.filter, nil)
		if status.Failed() {
			return status.Err()
		}
		fmt.Fprintf(w, "poly %d at %s\n", ref, formatVec3(pt))
	}
	return nil
}

// parseVec3 reads "x,y,z".
func parseVec3(s string) (common.Vec3, error) {
	var v common.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("%w: point %q is not x,y,z", errUsage, s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, fmt.Errorf("point %q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

func formatVec3(v common.Vec3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2])
}
