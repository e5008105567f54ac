package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/landcover/parcelmap/cmd/rebuild"
	"github.com/landcover/parcelmap/cmd/serve"
	"github.com/landcover/parcelmap/internal/buildinfo"
	"github.com/landcover/parcelmap/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "parcelmap",
		Short:   "Parcel aggregation and vector tile server",
		Version: buildinfo.Version,
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		rebuild.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVar(&settings.Debug, "debug", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
