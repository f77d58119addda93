package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lookaround-map/viewer/internal/config"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "panoview"
)

var (
	// configDir is searched for the config file.
	configDir string

	SessionStartTime time.Time = time.Now()
)

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "360 degree street-level panorama viewer",
	Version:       fmt.Sprintf("%s (%s)", CurrentVersion, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+config.FileName)
	rootCmd.AddCommand(serveCmd, candidatesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
