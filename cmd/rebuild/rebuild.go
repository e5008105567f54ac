// Package rebuild implements the batch aggregation subcommand.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/landcover/parcelmap/internal/aggregation"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/logging"
	"github.com/landcover/parcelmap/internal/observability"
	"github.com/landcover/parcelmap/internal/owners"
)

// Command creates the rebuild command.
func Command(settings *conf.Settings) *cobra.Command {
	var all bool
	var renormalize bool

	cmd := &cobra.Command{
		Use:   "rebuild [county]",
		Short: "Rebuild aggregated holdings for a county",
		Long:  "Recompute contiguous ownership holdings from raw parcels, replacing the existing holdings of each rebuilt county.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("either a county argument or --all is required")
			}
			county := ""
			if len(args) == 1 {
				county = args[0]
			}
			return runRebuild(settings, county, all, renormalize)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Rebuild every non-excluded county")
	cmd.Flags().BoolVar(&renormalize, "renormalize", false, "Recompute normalized owner names before clustering")
	cmd.Flags().IntVar(&settings.Aggregation.Workers, "workers", viper.GetInt("aggregation.workers"), "Parallel county rebuilds with --all")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runRebuild(settings *conf.Settings, county string, all, renormalize bool) error {
	logger := logging.ForService("rebuild")

	ds, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	rebuilder := aggregation.New(ds, settings, metrics.Aggregation)
	ctx := context.Background()

	if all {
		if renormalize {
			if err := renormalizeAll(ds, settings, logger); err != nil {
				return err
			}
		}
		results, err := rebuilder.RebuildAll(ctx)
		for _, result := range results {
			printResult(result)
		}
		return err
	}

	if renormalize {
		updated, err := ds.NormalizeOwners(county, owners.Normalize)
		if err != nil {
			return err
		}
		logger.Info("owner names renormalized", "county", county, "updated", updated)
	}

	result, err := rebuilder.RebuildCounty(ctx, county)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func renormalizeAll(ds datastore.Interface, settings *conf.Settings, logger *slog.Logger) error {
	counties, err := ds.CountiesWithParcels()
	if err != nil {
		return err
	}
	for _, county := range counties {
		if settings.IsCountyExcluded(county) {
			continue
		}
		updated, err := ds.NormalizeOwners(county, owners.Normalize)
		if err != nil {
			return err
		}
		logger.Info("owner names renormalized", "county", county, "updated", updated)
	}
	return nil
}

func printResult(result aggregation.Result) {
	fmt.Printf("%s: %d clusters from %d parcels (%d invalid geometries, %d union failures)\n",
		result.County, result.ClustersCreated, result.ParcelsProcessed,
		result.InvalidGeometries, result.UnionFailures)
}
