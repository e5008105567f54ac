// Package aggregation groups same-owner parcels into contiguous holdings and
// rebuilds the persisted aggregate table county by county.
package aggregation

import (
	"log/slog"
	"sort"

	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/geo"
)

// Member pairs a parcel row with its parsed, projection-prepared geometry.
type Member struct {
	Parcel   datastore.Parcel
	Prepared *geo.Prepared
}

// ParcelGroup is one connected component of the adjacency relation over a
// single (ownerNormalized, county) pair. Members are ordered by ascending
// parcel id.
type ParcelGroup struct {
	Members []Member
}

// ParcelIDs returns the member parcel ids in ascending order.
func (g *ParcelGroup) ParcelIDs() []uint {
	ids := make([]uint, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.Parcel.ID)
	}
	return ids
}

// Clusterer groups parcels into contiguous clusters using a fixed-distance
// adjacency test. Two parcels are adjacent when one, expanded by the buffer
// distance, would intersect the other; grouping is the transitive closure of
// that relation.
type Clusterer struct {
	bufferMeters float64
	logger       *slog.Logger
}

// NewClusterer returns a clusterer with the given adjacency buffer distance
// in meters. The buffer absorbs boundary gaps such as roads or survey error.
func NewClusterer(bufferMeters float64, logger *slog.Logger) *Clusterer {
	return &Clusterer{bufferMeters: bufferMeters, logger: logger}
}

// Cluster partitions parcels of one (ownerNormalized, county) pair into
// connected components. Parcels with null or invalid geometry are dropped
// from clustering entirely and logged; the second return value is the number
// dropped. Output is independent of input order: members are sorted by id
// before the adjacency pass and groups are ordered by their smallest id.
func (c *Clusterer) Cluster(parcels []datastore.Parcel) ([]ParcelGroup, int) {
	members := make([]Member, 0, len(parcels))
	invalid := 0
	for i := range parcels {
		g, err := geo.ParseGeoJSON(parcels[i].Geometry)
		if err != nil {
			invalid++
			if c.logger != nil {
				c.logger.Warn("dropping parcel with invalid geometry",
					"parcel_id", parcels[i].ID,
					"county", parcels[i].County,
					"owner", parcels[i].OwnerNormalized,
					"error", err)
			}
			continue
		}
		prepared, err := geo.Prepare(g)
		if err != nil {
			invalid++
			if c.logger != nil {
				c.logger.Warn("dropping parcel that failed projection",
					"parcel_id", parcels[i].ID,
					"error", err)
			}
			continue
		}
		members = append(members, Member{Parcel: parcels[i], Prepared: prepared})
	}

	if len(members) == 0 {
		return nil, invalid
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Parcel.ID < members[j].Parcel.ID
	})

	// Union-find over the pairwise adjacency relation. The bounding-box
	// prefilter keeps the quadratic pass cheap for owners with many spread
	// out parcels.
	parent := make([]int, len(members))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if find(i) == find(j) {
				continue
			}
			if !members[i].Prepared.BoundsWithin(members[j].Prepared, c.bufferMeters) {
				continue
			}
			if members[i].Prepared.WithinDistance(members[j].Prepared, c.bufferMeters) {
				union(i, j)
			}
		}
	}

	componentByRoot := make(map[int][]Member)
	roots := make([]int, 0)
	for i := range members {
		root := find(i)
		if _, seen := componentByRoot[root]; !seen {
			roots = append(roots, root)
		}
		componentByRoot[root] = append(componentByRoot[root], members[i])
	}

	// Members were id-sorted, so iterating roots in first-appearance order
	// yields groups ordered by their smallest parcel id.
	groups := make([]ParcelGroup, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, ParcelGroup{Members: componentByRoot[root]})
	}
	return groups, invalid
}
