// merger.go: geometric union of one parcel group
package aggregation

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/landcover/parcelmap/internal/errors"
	"github.com/landcover/parcelmap/internal/geo"
)

// MergeResult is the combined shape and additive acreage of one group.
type MergeResult struct {
	Combined      orb.MultiPolygon
	TotalAcres    float64
	ParcelIDs     []uint // ascending; only members present in Combined
	UnionFailures int    // members dropped because their union step failed
}

// Merger unions a cluster's member geometries into one combined shape.
type Merger struct {
	logger *slog.Logger
}

// NewMerger returns a merger.
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge unions all member geometries of a group. When unioning a specific
// member fails, that member is skipped and the union proceeds with the
// remaining members; a merge only errors when no member produced a valid
// result. Acreage is the arithmetic sum of member areas converted to acres,
// not the measured area of the unioned shape, so boundary gaps and overlaps
// cannot shrink or double-count it.
func (m *Merger) Merge(group ParcelGroup) (MergeResult, error) {
	result := MergeResult{}
	var combined orb.Geometry

	for _, member := range group.Members {
		memberGeometry := member.Prepared.Geometry()
		if combined == nil {
			combined = memberGeometry
		} else {
			merged, err := geo.Union(combined, memberGeometry)
			if err != nil {
				result.UnionFailures++
				if m.logger != nil {
					m.logger.Warn("union failed for member, skipping",
						"parcel_id", member.Parcel.ID,
						"county", member.Parcel.County,
						"error", err)
				}
				continue
			}
			combined = merged
		}
		result.ParcelIDs = append(result.ParcelIDs, member.Parcel.ID)
		result.TotalAcres += geo.Acres(member.Parcel.AreaSqm)
	}

	if combined == nil {
		return MergeResult{}, errors.Newf("no member survived the union").
			Category(errors.CategoryUnionFailure).
			Component("aggregation").
			Context("members", len(group.Members)).
			Build()
	}

	multi, err := geo.ToMultiPolygon(combined)
	if err != nil {
		return MergeResult{}, err
	}
	result.Combined = multi
	return result, nil
}
