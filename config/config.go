// Package config handles engine configuration loading.
package config

import (
	"fmt"

	"github.com/gorustyt/navquery/detour"
	"github.com/gorustyt/navquery/logger"
)

// Config holds all engine settings.
type Config struct {
	MeshPath string        `yaml:"mesh_path" toml:"mesh_path"`
	Query    QueryConfig   `yaml:"query" toml:"query"`
	Filter   FilterConfig  `yaml:"filter" toml:"filter"`
	Log      logger.Config `yaml:"log" toml:"log"`
}

// QueryConfig sizes the query objects and their result buffers.
type QueryConfig struct {
	MaxNodes        int        `yaml:"max_nodes" toml:"max_nodes"`
	HalfExtents     [3]float32 `yaml:"half_extents" toml:"half_extents"` // nearest poly search box
	MaxPath         int        `yaml:"max_path" toml:"max_path"`
	MaxStraightPath int        `yaml:"max_straight_path" toml:"max_straight_path"`
	Crossings       string     `yaml:"crossings" toml:"crossings"` // "", "area" or "all"
}

// FilterConfig is the default query filter.
type FilterConfig struct {
	IncludeFlags uint16     `yaml:"include_flags" toml:"include_flags"`
	ExcludeFlags uint16     `yaml:"exclude_flags" toml:"exclude_flags"`
	AreaCosts    []AreaCost `yaml:"area_costs" toml:"area_costs"`
}

// AreaCost overrides the traversal cost of one area id.
type AreaCost struct {
	Area int     `yaml:"area" toml:"area"`
	Cost float32 `yaml:"cost" toml:"cost"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Query: QueryConfig{
			MaxNodes:        2048,
			HalfExtents:     [3]float32{2, 4, 2},
			MaxPath:         256,
			MaxStraightPath: 256,
		},
		Filter: FilterConfig{
			IncludeFlags: 0xffff,
		},
		Log: logger.DefaultConfig(),
	}
}

// Validate checks the settings a query object cannot start without.
func (c *Config) Validate() error {
	q := c.Query
	if q.MaxNodes <= 0 || q.MaxNodes > detour.DT_MAX_NODES {
		return fmt.Errorf("query.max_nodes %d out of range 1..%d", q.MaxNodes, detour.DT_MAX_NODES)
	}
	if q.MaxPath <= 0 {
		return fmt.Errorf("query.max_path must be positive, got %d", q.MaxPath)
	}
	if q.MaxStraightPath <= 0 {
		return fmt.Errorf("query.max_straight_path must be positive, got %d", q.MaxStraightPath)
	}
	for i, e := range q.HalfExtents {
		if e < 0 {
			return fmt.Errorf("query.half_extents[%d] is negative", i)
		}
	}
	if _, err := q.StraightPathOptions(); err != nil {
		return err
	}
	_, err := c.Filter.Build()
	return err
}

// StraightPathOptions maps Crossings to the FindStraightPath option bits.
func (q QueryConfig) StraightPathOptions() (int, error) {
	switch q.Crossings {
	case "", "none":
		return 0, nil
	case "area":
		return detour.DT_STRAIGHTPATH_AREA_CROSSINGS, nil
	case "all":
		return detour.DT_STRAIGHTPATH_ALL_CROSSINGS, nil
	}
	return 0, fmt.Errorf("query.crossings: unknown value %q", q.Crossings)
}

// Build creates the query filter described by f.
func (f FilterConfig) Build() (*detour.DtQueryFilter, error) {
	filter := detour.NewDtQueryFilter()
	filter.SetIncludeFlags(f.IncludeFlags)
	filter.SetExcludeFlags(f.ExcludeFlags)
	for _, ac := range f.AreaCosts {
		if err := filter.SetAreaCost(ac.Area, ac.Cost).Err(); err != nil {
			return nil, fmt.Errorf("filter.area_costs: area %d: %w", ac.Area, err)
		}
	}
	return filter, nil
}
