// Package serve implements the HTTP server subcommand.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/landcover/parcelmap/internal/aggregation"
	"github.com/landcover/parcelmap/internal/api"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/logging"
	"github.com/landcover/parcelmap/internal/observability"
	"github.com/landcover/parcelmap/internal/tiles"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve vector tiles and the administrative API",
		Long:  "Start the HTTP server exposing the tile endpoint, rebuild trigger, cache control and metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Server.Port, "port", viper.GetString("server.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Server.Host, "host", viper.GetString("server.host"), "Host address to bind to")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runServer(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(settings.Main.Log.Path, "serve", slog.LevelInfo)
		if err != nil {
			logger.Warn("file logging disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			logger = fileLogger
			defer func() {
				if err := closeLogger(); err != nil {
					fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
				}
			}()
		}
	}

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

	tileServer := tiles.NewServer(ds, settings, metrics.Tiles)
	rebuilder := aggregation.New(ds, settings, metrics.Aggregation)
	controller := api.New(ds, settings, tileServer, rebuilder, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return controller.Start(ctx)
}
