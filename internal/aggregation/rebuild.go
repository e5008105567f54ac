// rebuild.go: per-county full-replace orchestration of the holdings table
package aggregation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/errors"
	"github.com/landcover/parcelmap/internal/geo"
	"github.com/landcover/parcelmap/internal/logging"
	"github.com/landcover/parcelmap/internal/observability/metrics"
)

// Result summarizes one county rebuild.
type Result struct {
	County            string `json:"county"`
	ClustersCreated   int    `json:"clustersCreated"`
	ParcelsProcessed  int    `json:"parcelsProcessed"`
	InvalidGeometries int    `json:"invalidGeometries"`
	UnionFailures     int    `json:"unionFailures"`
}

// Rebuilder recomputes aggregated holdings from raw parcels. A rebuild is a
// single-writer batch operation per county: concurrent rebuilds of the same
// county are serialized on a per-county mutex, while different counties run
// fully independently.
type Rebuilder struct {
	ds        datastore.Interface
	settings  *conf.Settings
	clusterer *Clusterer
	merger    *Merger
	metrics   *metrics.AggregationMetrics
	logger    *slog.Logger

	countyLocks sync.Map // county key -> *sync.Mutex
}

// New returns a rebuilder wired to the given store and settings. The metrics
// argument may be nil.
func New(ds datastore.Interface, settings *conf.Settings, m *metrics.AggregationMetrics) *Rebuilder {
	logger := logging.ForService("aggregation")
	return &Rebuilder{
		ds:        ds,
		settings:  settings,
		clusterer: NewClusterer(settings.Aggregation.BufferMeters, logger),
		merger:    NewMerger(logger),
		metrics:   m,
		logger:    logger,
	}
}

func (r *Rebuilder) countyLock(county string) *sync.Mutex {
	actual, _ := r.countyLocks.LoadOrStore(county, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// RebuildCounty destroys and rebuilds all holdings of one county. Existing
// holdings for the county are replaced atomically with the newly computed
// set; other counties are unaffected. Rebuilding with unchanged source
// parcels yields an identical holdings set.
//
// A failure while merging one owner's cluster does not abort the county-wide
// rebuild: the owner is logged, counted, and skipped.
func (r *Rebuilder) RebuildCounty(ctx context.Context, county string) (Result, error) {
	result := Result{County: county}

	if r.settings.IsCountyExcluded(county) {
		return result, errors.Newf("county %q is excluded from aggregation", county).
			Category(errors.CategoryValidation).
			Component("aggregation").
			Context("county", county).
			Build()
	}

	lock := r.countyLock(county)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	owners, err := r.ds.OwnersInCounty(county)
	if err != nil {
		return result, err
	}

	var holdings []datastore.AggregatedHolding
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return result, errors.New(err).
				Category(errors.CategoryAggregation).
				Component("aggregation").
				Context("county", county).
				Build()
		}

		parcels, err := r.ds.ParcelsForOwner(county, owner)
		if err != nil {
			return result, err
		}
		result.ParcelsProcessed += len(parcels)

		groups, invalid := r.clusterer.Cluster(parcels)
		result.InvalidGeometries += invalid

		for i := range groups {
			if len(groups[i].Members) == 1 && !r.settings.Aggregation.IncludeSingletons {
				continue
			}
			merged, err := r.merger.Merge(groups[i])
			result.UnionFailures += merged.UnionFailures
			if err != nil {
				result.UnionFailures++
				r.logger.Warn("skipping cluster that failed to merge",
					"county", county,
					"owner", owner,
					"error", err)
				continue
			}
			holding, err := buildHolding(county, owner, &merged)
			if err != nil {
				result.UnionFailures++
				r.logger.Warn("skipping cluster whose merged geometry failed to encode",
					"county", county,
					"owner", owner,
					"error", err)
				continue
			}
			holdings = append(holdings, holding)
		}
	}

	if err := r.ds.ReplaceCountyHoldings(county, holdings); err != nil {
		if r.metrics != nil {
			r.metrics.RecordRebuild(county, "error", time.Since(start).Seconds())
		}
		return result, err
	}

	result.ClustersCreated = len(holdings)

	if r.metrics != nil {
		r.metrics.RecordRebuild(county, "success", time.Since(start).Seconds())
		r.metrics.RecordRebuildCounts(county, result.ClustersCreated, result.ParcelsProcessed,
			result.InvalidGeometries, result.UnionFailures)
	}

	r.logger.Info("county rebuild complete",
		"county", county,
		"clusters_created", result.ClustersCreated,
		"parcels_processed", result.ParcelsProcessed,
		"invalid_geometries", result.InvalidGeometries,
		"union_failures", result.UnionFailures,
		"duration", time.Since(start))

	return result, nil
}

// buildHolding converts one merge result into a holdings row.
func buildHolding(county, owner string, merged *MergeResult) (datastore.AggregatedHolding, error) {
	geometry, err := geo.MarshalGeoJSON(merged.Combined)
	if err != nil {
		return datastore.AggregatedHolding{}, err
	}
	bound := merged.Combined.Bound()

	members := make([]datastore.HoldingParcel, 0, len(merged.ParcelIDs))
	for _, id := range merged.ParcelIDs {
		members = append(members, datastore.HoldingParcel{ParcelID: id})
	}

	return datastore.AggregatedHolding{
		OwnerNormalized:  owner,
		County:           county,
		ParcelCount:      len(merged.ParcelIDs),
		TotalAcres:       merged.TotalAcres,
		CombinedGeometry: geometry,
		MinLon:           bound.Min[0],
		MinLat:           bound.Min[1],
		MaxLon:           bound.Max[0],
		MaxLat:           bound.Max[1],
		Parcels:          members,
	}, nil
}

// RebuildAll rebuilds every non-excluded county present in the parcel table,
// running up to settings.Aggregation.Workers counties in parallel. A failing
// county aborts only itself; the remaining counties still rebuild, and the
// collected errors are returned joined.
func (r *Rebuilder) RebuildAll(ctx context.Context) ([]Result, error) {
	counties, err := r.ds.CountiesWithParcels()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []Result
		failed  []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Aggregation.Workers)

	for _, county := range counties {
		if r.settings.IsCountyExcluded(county) {
			r.logger.Info("skipping excluded county", "county", county)
			continue
		}
		county := county
		g.Go(func() error {
			res, err := r.RebuildCounty(gctx, county)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// county-scoped failure, keep going
				failed = append(failed, err)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].County < results[j].County })
	return results, errors.Join(failed...)
}
